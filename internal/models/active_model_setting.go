package models

import "time"

// ActiveModelSetting records which vendor an administrator selected.
// Rows are append-only; the most recent one wins.
type ActiveModelSetting struct {
	ID          int64     `db:"id" json:"id"`
	ActiveModel ModelID   `db:"active_model" json:"active_model"`
	UpdatedBy   string    `db:"updated_by" json:"updated_by"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
