package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/esche888/appcollab-sub000/internal/models"
)

const insertUsageQuery = `
	INSERT INTO ai_usage_logs (
		id, caller_id, model_identifier, vendor_model, prompt_type,
		tokens_used, tokens_estimated, response_time_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// UsageRepository handles usage log database operations. Rows are
// append-only; inserting an entry twice is a no-op.
type UsageRepository struct {
	db    *DB
	cache *LRUCache[[]models.ModelUsageSummary]
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{
		db:    db,
		cache: db.summaryCache,
	}
}

func prepareEntry(entry *models.UsageLogEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

func usageArgs(entry *models.UsageLogEntry) []any {
	return []any{
		entry.ID,
		entry.CallerID,
		string(entry.ModelIdentifier),
		entry.VendorModel,
		string(entry.PromptType),
		entry.TokensUsed,
		entry.TokensEstimated,
		entry.ResponseTimeMS,
		entry.CreatedAt,
	}
}

// Create inserts a single usage entry
func (r *UsageRepository) Create(ctx context.Context, entry *models.UsageLogEntry) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	prepareEntry(entry)

	if _, err := r.db.conn.ExecContext(ctx, insertUsageQuery, usageArgs(entry)...); err != nil {
		return fmt.Errorf("failed to create usage entry: %w", err)
	}
	return nil
}

// CreateBatch inserts entries in a single transaction
func (r *UsageRepository) CreateBatch(ctx context.Context, entries []*models.UsageLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		prepareEntry(entry)
		if _, err := tx.ExecContext(ctx, insertUsageQuery, usageArgs(entry)...); err != nil {
			return fmt.Errorf("failed to insert usage entry %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (r *UsageRepository) Recent(ctx context.Context, limit int) ([]*models.UsageLogEntry, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var entries []*models.UsageLogEntry
	query := `
		SELECT id, caller_id, model_identifier, vendor_model, prompt_type,
		       tokens_used, tokens_estimated, response_time_ms, created_at
		FROM ai_usage_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	if err := r.db.conn.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage entries: %w", err)
	}
	return entries, nil
}

// SummaryByModel aggregates usage per model since the given time. since
// is truncated to the minute and results are cached briefly.
func (r *UsageRepository) SummaryByModel(ctx context.Context, since time.Time) ([]models.ModelUsageSummary, error) {
	since = since.UTC().Truncate(time.Minute)
	key := since.Format(time.RFC3339)

	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var summaries []models.ModelUsageSummary
	query := `
		SELECT model_identifier,
		       COUNT(*) AS requests,
		       COALESCE(SUM(tokens_used), 0) AS total_tokens,
		       COALESCE(AVG(response_time_ms), 0) AS avg_response_time_ms
		FROM ai_usage_logs
		WHERE created_at >= $1
		GROUP BY model_identifier
		ORDER BY model_identifier
	`

	if err := r.db.conn.SelectContext(ctx, &summaries, query, since); err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	r.cache.Set(key, summaries)
	return summaries, nil
}
