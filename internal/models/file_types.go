package models

import "time"

// FileRecord tracks who produced an artifact in the output directory.
// UserID is nil for anonymous callers.
type FileRecord struct {
	ID          int64     `json:"id" db:"id"`
	UserID      *string   `json:"-" db:"user_id"`
	Tool        string    `json:"tool" db:"tool"`
	Filename    string    `json:"filename" db:"filename"`
	StoragePath string    `json:"-" db:"storage_path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
