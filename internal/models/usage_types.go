package models

import (
	"strings"
	"time"
)

// Scope is the quota-tracking identity: a user or an anonymous key.
// Exactly one of UserID and AnonKey is set.
type Scope struct {
	UserID  string
	AnonKey string
}

func UserScope(userID string) Scope {
	return Scope{UserID: userID}
}

// AnonymousScope builds the scope for a normalized client IP.
func AnonymousScope(ip string) Scope {
	if strings.HasPrefix(ip, "anon:") {
		return Scope{AnonKey: ip}
	}
	return Scope{AnonKey: "anon:" + ip}
}

func (s Scope) IsAnonymous() bool {
	return s.UserID == ""
}

// Key is the canonical text form stored in usage_records.scope_key.
func (s Scope) Key() string {
	if s.IsAnonymous() {
		return s.AnonKey
	}
	return "user:" + s.UserID
}

// UsageRecord defines the model for the 'usage_records' table
type UsageRecord struct {
	ID          int64     `json:"id" db:"id"`
	ScopeKey    string    `json:"-" db:"scope_key"`
	UserID      *string   `json:"-" db:"user_id"`
	AnonKey     *string   `json:"-" db:"anon_key"`
	Tool        string    `json:"tool" db:"tool"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`
	Used        int       `json:"used" db:"used"`
	LimitValue  int       `json:"limit" db:"limit_value"`
	CreatedAt   time.Time `json:"-" db:"created_at"`
	UpdatedAt   time.Time `json:"-" db:"updated_at"`
}

// Remaining is the quota left in the window, never negative.
func (r UsageRecord) Remaining() int {
	if r.Used >= r.LimitValue {
		return 0
	}
	return r.LimitValue - r.Used
}

// UsageSummary is one row of GET /users/me/usage.
type UsageSummary struct {
	Tool      string    `json:"tool"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	PeriodEnd time.Time `json:"period_end"`
}
