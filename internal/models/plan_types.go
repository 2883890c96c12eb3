package models

import "time"

// DefaultPlanSlug is the free tier every user falls back to.
const DefaultPlanSlug = "starter"

// Plan defines the model for the 'plans' table
type Plan struct {
	ID         int64     `json:"id" db:"id"`
	Slug       string    `json:"slug" db:"slug"`
	Name       string    `json:"name" db:"name"`
	DailyLimit int       `json:"daily_limit" db:"daily_limit"`
	CreatedAt  time.Time `json:"-" db:"created_at"`
	UpdatedAt  time.Time `json:"-" db:"updated_at"`
}

// IsDefault reports whether p is the free starter tier.
func (p Plan) IsDefault() bool {
	return p.Slug == DefaultPlanSlug
}

// PlanDefinition is one deploy-time catalog entry.
type PlanDefinition struct {
	Slug       string
	Name       string
	DailyLimit int
}
