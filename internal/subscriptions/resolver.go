// Package subscriptions resolves which plan governs a user and manages
// subscription rows.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
	"github.com/24f2002329/caniedit/internal/plans"
)

const subscriptionColumns = "s.id, s.user_id, s.plan_id, s.status, s.current_period_start, s.current_period_end, s.created_at, s.updated_at"

// activeOrder puts open-ended subscriptions first, then the latest period
// end, then the newest row.
const activeOrder = "ORDER BY (s.current_period_end IS NULL) DESC, s.current_period_end DESC, s.created_at DESC, s.id DESC"

type Resolver struct {
	db    *database.DB
	cache *PlanCache
	log   *zap.Logger
	now   func() time.Time
}

func NewResolver(db *database.DB, cache *PlanCache, log *zap.Logger) *Resolver {
	return &Resolver{db: db, cache: cache, log: log, now: time.Now}
}

// ActivePlan returns the plan of the governing active subscription, or
// the default plan when there is none.
func (r *Resolver) ActivePlan(ctx context.Context, userID string) (*models.Plan, error) {
	cached, gen, ok, cacheErr := r.cache.Get(ctx, userID)
	if cacheErr != nil {
		r.log.Warn("Plan cache unavailable", zap.String("user_id", userID), zap.Error(cacheErr))
	} else if ok {
		return cached, nil
	}

	var p models.Plan
	err := r.db.QueryRowContext(ctx,
		"SELECT p.id, p.slug, p.name, p.daily_limit, p.created_at, p.updated_at FROM subscriptions s JOIN plans p ON p.id = s.plan_id WHERE s.user_id = ? AND s.status = ? "+activeOrder+" LIMIT 1",
		userID, models.SubscriptionActive,
	).Scan(&p.ID, &p.Slug, &p.Name, &p.DailyLimit, &p.CreatedAt, &p.UpdatedAt)

	plan := &p
	switch {
	case errors.Is(err, sql.ErrNoRows):
		plan, err = plans.NewCatalog(r.db).Default(ctx)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("resolve active plan: %w", err)
	}

	if cacheErr == nil {
		if err := r.cache.Set(ctx, userID, gen, plan); err != nil {
			r.log.Warn("Plan cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return plan, nil
}

// EnsureDefaultSubscription returns the user's most recent subscription,
// whatever its status, or creates an open-ended active starter one.
func (r *Resolver) EnsureDefaultSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub *models.Subscription
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		// 1. --- Serialize per user ---
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		// 2. --- Existing subscription wins ---
		latest, err := latestSubscription(ctx, tx, userID)
		if err != nil {
			return err
		}
		if latest != nil {
			sub = latest
			return nil
		}

		// 3. --- Create the starter subscription ---
		starter, err := plans.NewCatalog(tx).Default(ctx)
		if err != nil {
			return err
		}
		now := r.now().UTC()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO subscriptions (user_id, plan_id, status, current_period_start, current_period_end, created_at, updated_at) VALUES (?, ?, ?, ?, NULL, ?, ?)",
			userID, starter.ID, models.SubscriptionActive, now, now, now); err != nil {
			return fmt.Errorf("create starter subscription: %w", err)
		}
		sub, err = latestSubscription(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, userID)
	return sub, nil
}

// Grant makes planSlug the user's only active subscription. Previously
// active rows are marked replaced in the same transaction.
func (r *Resolver) Grant(ctx context.Context, userID, planSlug string, periodEnd *time.Time) (*models.Subscription, error) {
	var sub *models.Subscription
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		plan, err := plans.NewCatalog(tx).Get(ctx, planSlug)
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Validation(fmt.Sprintf("Unknown plan %q", planSlug))
		}
		if err != nil {
			return err
		}

		now := r.now().UTC()
		if _, err := tx.ExecContext(ctx,
			"UPDATE subscriptions SET status = ?, updated_at = ? WHERE user_id = ? AND status = ?",
			models.SubscriptionReplaced, now, userID, models.SubscriptionActive); err != nil {
			return fmt.Errorf("deactivate subscriptions: %w", err)
		}

		var end interface{}
		if periodEnd != nil {
			end = periodEnd.UTC()
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO subscriptions (user_id, plan_id, status, current_period_start, current_period_end, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			userID, plan.ID, models.SubscriptionActive, now, end, now, now); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}

		sub, err = latestSubscription(ctx, tx, userID)
		if sub != nil {
			sub.Plan = plan
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, userID)
	r.log.Info("Subscription granted",
		zap.String("user_id", userID),
		zap.String("plan", planSlug),
		zap.Int64("subscription_id", sub.ID))
	return sub, nil
}

// Summary returns the governing active subscription, if any, with the
// whole catalog.
func (r *Resolver) Summary(ctx context.Context, userID string) (*models.SubscriptionSummary, error) {
	summary := &models.SubscriptionSummary{}

	var (
		sub  models.Subscription
		plan models.Plan
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+", p.id, p.slug, p.name, p.daily_limit FROM subscriptions s JOIN plans p ON p.id = s.plan_id WHERE s.user_id = ? AND s.status = ? "+activeOrder+" LIMIT 1",
		userID, models.SubscriptionActive,
	).Scan(append(subscriptionDest(&sub), &plan.ID, &plan.Slug, &plan.Name, &plan.DailyLimit)...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load active subscription: %w", err)
	default:
		summary.Active = &models.ActiveSubscription{
			Status:           sub.Status,
			Plan:             plan,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}
	}

	list, err := plans.NewCatalog(r.db).List(ctx)
	if err != nil {
		return nil, err
	}
	summary.Plans = list
	if summary.Plans == nil {
		summary.Plans = []models.Plan{}
	}
	return summary, nil
}

func (r *Resolver) invalidate(ctx context.Context, userID string) {
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.log.Warn("Plan cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func lockUser(ctx context.Context, q database.Queryer, userID string) error {
	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM users WHERE id = ? FOR UPDATE", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("User not found")
	}
	return err
}

func latestSubscription(ctx context.Context, q database.Queryer, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := q.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions s WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id DESC LIMIT 1",
		userID,
	).Scan(subscriptionDest(&sub)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return &sub, nil
}

func subscriptionDest(s *models.Subscription) []interface{} {
	return []interface{}{
		&s.ID, &s.UserID, &s.PlanID, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	}
}
