// Package users owns account records and the two-state deletion
// lifecycle: active -> pending_deletion -> (hard deleted).
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

// DeletionGrace is how long a deletion request can still be cancelled.
const DeletionGrace = 30 * 24 * time.Hour

// SubscriptionEnsurer gives a freshly created user their starter plan.
type SubscriptionEnsurer interface {
	EnsureDefaultSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

type Service struct {
	db   *database.DB
	subs SubscriptionEnsurer
	log  *zap.Logger
	now  func() time.Time
}

func NewService(db *database.DB, subs SubscriptionEnsurer, log *zap.Logger) *Service {
	return &Service{db: db, subs: subs, log: log, now: time.Now}
}

const userColumns = "id, email, full_name, status, delete_requested_at, delete_at, created_at, updated_at"

// Sync mirrors a verified identity into the users table. New users get
// the starter subscription; existing ones get email and name refreshed
// when they drifted.
func (s *Service) Sync(ctx context.Context, id models.Identity) (*models.User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, apperrors.AuthenticationRequired("Invalid token")
	}
	now := s.now().UTC()

	user, err := s.Get(ctx, id.Subject)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO users (id, email, full_name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			id.Subject, id.Email, id.FullName, models.UserStatusActive, now, now)
		if err != nil && !database.IsDuplicateKey(err) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if err == nil {
			s.log.Info("User created", zap.String("user_id", id.Subject))
		}
		if _, err := s.subs.EnsureDefaultSubscription(ctx, id.Subject); err != nil {
			return nil, err
		}
		return s.Get(ctx, id.Subject)
	case err != nil:
		return nil, err
	}

	email := user.Email
	if id.Email != "" {
		email = id.Email
	}
	name := user.FullName
	if id.FullName != "" {
		name = id.FullName
	}
	if email == user.Email && name == user.FullName {
		return user, nil
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = ?, full_name = ?, updated_at = ? WHERE id = ?",
		email, name, now, user.ID); err != nil {
		return nil, fmt.Errorf("refresh user: %w", err)
	}
	user.Email, user.FullName, user.UpdatedAt = email, name, now
	return user, nil
}

// Get returns the user, or a NotFound error.
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Status, &u.DeleteRequestedAt, &u.DeleteAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// ProfileUpdate carries optional profile changes; nil fields are kept.
type ProfileUpdate struct {
	FullName *string
	Email    *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperrors.Validation("Invalid email address")
		}
		user.Email = email
	}

	user.UpdatedAt = s.now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = ?, full_name = ?, updated_at = ? WHERE id = ?",
		user.Email, user.FullName, user.UpdatedAt, user.ID); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// RequestDeletion moves the account to pending_deletion. Repeated
// requests return the original schedule.
func (s *Service) RequestDeletion(ctx context.Context, userID string) (*models.DeletionSchedule, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.PendingDeletion() && user.DeleteRequestedAt != nil && user.DeleteAt != nil {
		return &models.DeletionSchedule{RequestedAt: user.DeleteRequestedAt.UTC(), DeleteAt: user.DeleteAt.UTC()}, nil
	}

	now := s.now().UTC()
	schedule := &models.DeletionSchedule{RequestedAt: now, DeleteAt: now.Add(DeletionGrace)}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = ?, delete_requested_at = ?, delete_at = ?, updated_at = ? WHERE id = ?",
		models.UserStatusPendingDeletion, schedule.RequestedAt, schedule.DeleteAt, now, userID); err != nil {
		return nil, fmt.Errorf("request deletion: %w", err)
	}

	s.log.Info("Account deletion requested",
		zap.String("user_id", userID),
		zap.Time("delete_at", schedule.DeleteAt))
	return schedule, nil
}

// CancelDeletion returns a pending account to active.
func (s *Service) CancelDeletion(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.PendingDeletion() {
		return user, nil
	}

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = ?, delete_requested_at = NULL, delete_at = NULL, updated_at = ? WHERE id = ? AND status = ?",
		models.UserStatusActive, now, userID, models.UserStatusPendingDeletion); err != nil {
		return nil, fmt.Errorf("cancel deletion: %w", err)
	}
	user.Status, user.DeleteRequestedAt, user.DeleteAt, user.UpdatedAt = models.UserStatusActive, nil, nil, now
	return user, nil
}

// SweepDeleted hard-deletes accounts whose grace period has elapsed.
// Subscriptions, usage and file records go with them via ON DELETE CASCADE.
func (s *Service) SweepDeleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM users WHERE status = ? AND delete_at IS NOT NULL AND delete_at <= ?",
		models.UserStatusPendingDeletion, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep deleted users: %w", err)
	}
	return res.RowsAffected()
}
