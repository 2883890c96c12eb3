package models

import "time"

const (
	UserStatusActive          = "active"
	UserStatusPendingDeletion = "pending_deletion"
)

// User Model with Pointers for Nullable Fields. ID is the identity
// provider's subject.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// --- Deletion lifecycle ---
	DeleteRequestedAt *time.Time `json:"delete_requested_at,omitempty" db:"delete_requested_at"`
	DeleteAt          *time.Time `json:"delete_at,omitempty" db:"delete_at"`
}

// PendingDeletion reports whether the account is inside its grace period.
func (u User) PendingDeletion() bool {
	return u.Status == UserStatusPendingDeletion
}

// Identity is a verified bearer credential.
type Identity struct {
	Subject  string
	Email    string
	FullName string
}

// DeletionSchedule is returned when an account deletion is requested.
type DeletionSchedule struct {
	RequestedAt time.Time `json:"requested_at"`
	DeleteAt    time.Time `json:"delete_at"`
}
