package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLogEntry is a metering record for one completed AI request.
// Entries are never mutated once written.
type UsageLogEntry struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	CallerID        string     `db:"caller_id" json:"caller_id"`
	ModelIdentifier ModelID    `db:"model_identifier" json:"model_identifier"`
	VendorModel     string     `db:"vendor_model" json:"vendor_model"`
	PromptType      PromptType `db:"prompt_type" json:"prompt_type"`
	TokensUsed      int        `db:"tokens_used" json:"tokens_used"`
	TokensEstimated bool       `db:"tokens_estimated" json:"tokens_estimated"`
	ResponseTimeMS  int        `db:"response_time_ms" json:"response_time_ms"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// ModelUsageSummary aggregates usage per vendor for reporting views.
type ModelUsageSummary struct {
	ModelIdentifier   ModelID `db:"model_identifier" json:"model_identifier"`
	Requests          int64   `db:"requests" json:"requests"`
	TotalTokens       int64   `db:"total_tokens" json:"total_tokens"`
	AvgResponseTimeMS float64 `db:"avg_response_time_ms" json:"avg_response_time_ms"`
}
