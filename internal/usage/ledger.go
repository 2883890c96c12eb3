// Package usage implements the per-scope, per-tool, per-window quota
// ledger.
//
// Windows are fixed: [floor(now/W)*W, +W) in UTC. With the default
// W of 86400 seconds every counter resets at UTC midnight, regardless of
// when it was first used. Admission is a single conditional UPDATE that
// only succeeds while used+amount stays within limit_value, so concurrent
// requests against the same counter cannot overshoot it.
package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

// DefaultWindow is one UTC calendar day.
const DefaultWindow = 24 * time.Hour

const recordColumns = "id, scope_key, user_id, anon_key, tool, period_start, period_end, used, limit_value, created_at, updated_at"

type Ledger struct {
	db     database.Queryer
	window time.Duration
	now    func() time.Time
}

// NewLedger returns a ledger using windows of the given length, which is
// truncated to whole seconds.
func NewLedger(db database.Queryer, window time.Duration) *Ledger {
	if window < time.Second {
		window = DefaultWindow
	}
	return &Ledger{db: db, window: window.Truncate(time.Second), now: time.Now}
}

// Window returns the window containing at.
func (l *Ledger) Window(at time.Time) (start, end time.Time) {
	w := int64(l.window / time.Second)
	sec := at.Unix()
	floor := sec - sec%w
	if sec < 0 && sec%w != 0 {
		floor -= w
	}
	start = time.Unix(floor, 0).UTC()
	return start, start.Add(l.window)
}

// Record returns the counter for the current window, creating it with
// used = 0 if needed. A differing limit is written in place and used is
// kept, so a mid-window plan change takes effect immediately.
func (l *Ledger) Record(ctx context.Context, scope models.Scope, tool string, limit int) (*models.UsageRecord, error) {
	now := l.now().UTC()
	start, end := l.Window(now)
	return l.record(ctx, scope, tool, limit, start, end, now)
}

func (l *Ledger) record(ctx context.Context, scope models.Scope, tool string, limit int, start, end, now time.Time) (*models.UsageRecord, error) {
	rec, err := l.find(ctx, scope.Key(), tool, start)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		_, err = l.db.ExecContext(ctx,
			"INSERT INTO usage_records (scope_key, user_id, anon_key, tool, period_start, period_end, used, limit_value, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)",
			scope.Key(), nullable(scope.UserID), nullable(scope.AnonKey), tool, start, end, limit, now, now)
		if err != nil && !database.IsDuplicateKey(err) {
			return nil, fmt.Errorf("create usage record: %w", err)
		}
		// Either ours or a concurrent insert for the same window.
		rec, err = l.find(ctx, scope.Key(), tool, start)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("usage record for %s/%s vanished after insert", scope.Key(), tool)
		}
	}

	if rec.LimitValue != limit {
		if _, err := l.db.ExecContext(ctx,
			"UPDATE usage_records SET limit_value = ?, updated_at = ? WHERE id = ?",
			limit, now, rec.ID); err != nil {
			return nil, fmt.Errorf("update usage limit: %w", err)
		}
		rec.LimitValue = limit
		rec.UpdatedAt = now
	}
	return rec, nil
}

// Consume charges amount against the current window's counter. It fails
// with QuotaExceeded when used+amount would exceed limit_value; the
// counter is left untouched in that case.
func (l *Ledger) Consume(ctx context.Context, scope models.Scope, tool string, amount int) (*models.UsageRecord, error) {
	now := l.now().UTC()
	start, _ := l.Window(now)
	return l.consume(ctx, scope, tool, amount, start, now)
}

func (l *Ledger) consume(ctx context.Context, scope models.Scope, tool string, amount int, start, now time.Time) (*models.UsageRecord, error) {
	if amount < 1 {
		return nil, fmt.Errorf("consume %s: amount must be positive, got %d", tool, amount)
	}

	res, err := l.db.ExecContext(ctx,
		"UPDATE usage_records SET used = used + ?, updated_at = ? WHERE scope_key = ? AND tool = ? AND period_start = ? AND used + ? <= limit_value",
		amount, now, scope.Key(), tool, start, amount)
	if err != nil {
		return nil, fmt.Errorf("consume usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("consume usage: %w", err)
	}

	rec, err := l.find(ctx, scope.Key(), tool, start)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("consume %s: no usage record for %s in window %s", tool, scope.Key(), start.Format(time.RFC3339))
	}
	if affected == 0 {
		return nil, apperrors.QuotaExceeded("Daily limit reached.", rec.Used, rec.LimitValue)
	}
	return rec, nil
}

// Charge opens (or reconciles) the current window at limit and consumes
// amount from it. Both steps use the same window even across a boundary.
func (l *Ledger) Charge(ctx context.Context, scope models.Scope, tool string, limit, amount int) (*models.UsageRecord, error) {
	now := l.now().UTC()
	start, end := l.Window(now)

	if _, err := l.record(ctx, scope, tool, limit, start, end, now); err != nil {
		return nil, err
	}
	return l.consume(ctx, scope, tool, amount, start, now)
}

// Sweep deletes every record whose window ended before now - retention.
func (l *Ledger) Sweep(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := l.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	res, err := l.db.ExecContext(ctx, "DELETE FROM usage_records WHERE period_end < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep usage: %w", err)
	}
	return res.RowsAffected()
}

// SweepAnonymous deletes anonymous records of already closed windows.
func (l *Ledger) SweepAnonymous(ctx context.Context) (int64, error) {
	start, _ := l.Window(l.now().UTC())
	res, err := l.db.ExecContext(ctx,
		"DELETE FROM usage_records WHERE anon_key IS NOT NULL AND period_end <= ?", start)
	if err != nil {
		return 0, fmt.Errorf("sweep anonymous usage: %w", err)
	}
	return res.RowsAffected()
}

// Today lists the user's non-zero counters in the current window, most
// used first.
func (l *Ledger) Today(ctx context.Context, userID string) ([]models.UsageSummary, error) {
	start, _ := l.Window(l.now().UTC())
	rows, err := l.db.QueryContext(ctx,
		"SELECT tool, used, limit_value, period_end FROM usage_records WHERE scope_key = ? AND period_start = ? AND used > 0 ORDER BY used DESC, tool",
		models.UserScope(userID).Key(), start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.UsageSummary{}
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Tool, &s.Used, &s.Limit, &s.PeriodEnd); err != nil {
			return nil, err
		}
		s.PeriodEnd = s.PeriodEnd.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (l *Ledger) find(ctx context.Context, scopeKey, tool string, start time.Time) (*models.UsageRecord, error) {
	var (
		rec     models.UsageRecord
		userID  sql.NullString
		anonKey sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM usage_records WHERE scope_key = ? AND tool = ? AND period_start = ?",
		scopeKey, tool, start,
	).Scan(&rec.ID, &rec.ScopeKey, &userID, &anonKey, &rec.Tool, &rec.PeriodStart, &rec.PeriodEnd,
		&rec.Used, &rec.LimitValue, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load usage record: %w", err)
	}
	if userID.Valid {
		rec.UserID = &userID.String
	}
	if anonKey.Valid {
		rec.AnonKey = &anonKey.String
	}
	rec.PeriodStart = rec.PeriodStart.UTC()
	rec.PeriodEnd = rec.PeriodEnd.UTC()
	return &rec, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
