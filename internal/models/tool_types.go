package models

import "time"

// Tool defines the model for the 'tools' table
type Tool struct {
	ID        int64     `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Category  string    `json:"category" db:"category"`
	Weight    int       `json:"weight" db:"weight"`
	IsPremium bool      `json:"is_premium" db:"is_premium"`
	CreatedAt time.Time `json:"-" db:"created_at"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

type ToolDefinition struct {
	Slug      string
	Category  string
	Weight    int
	IsPremium bool
}
