package model

import "time"

// Setting is one persisted key/value row. The service keeps its last good
// snapshot and the rate-limit notice here.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex" json:"key"`
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RateLimitNotice is the persisted "rate limited" marker shown to clients.
type RateLimitNotice struct {
	IsLimited bool      `json:"isLimited"`
	ResetIn   int64     `json:"resetIn"` // milliseconds
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
