package models

import "time"

const (
	SubscriptionActive   = "active"
	SubscriptionReplaced = "replaced"
	SubscriptionCanceled = "canceled"
)

// Subscription defines the model for the 'subscriptions' table
type Subscription struct {
	ID                 int64      `json:"id" db:"id"`
	UserID             string     `json:"user_id" db:"user_id"`
	PlanID             int64      `json:"plan_id" db:"plan_id"`
	Status             string     `json:"status" db:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end" db:"current_period_end"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	// Not in the DB, populated for the summary view.
	Plan *Plan `json:"plan,omitempty" db:"-"`
}

// ActiveSubscription is the 'active' block of the subscription summary.
type ActiveSubscription struct {
	Status           string     `json:"status"`
	Plan             Plan       `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

// SubscriptionSummary is returned by GET /users/me/subscription.
type SubscriptionSummary struct {
	Active *ActiveSubscription `json:"active"`
	Plans  []Plan              `json:"plans"`
}
