package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/esche888/appcollab-sub000/internal/models"
)

// ActiveModelRepository persists the administratively selected model.
// Every change is a new row; the newest row wins.
type ActiveModelRepository struct {
	db *DB
}

// NewActiveModelRepository creates a new active model repository
func NewActiveModelRepository(db *DB) *ActiveModelRepository {
	return &ActiveModelRepository{db: db}
}

// Latest returns the most recent setting, or ErrSettingNotFound
func (r *ActiveModelRepository) Latest(ctx context.Context) (*models.ActiveModelSetting, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var setting models.ActiveModelSetting
	query := `
		SELECT id, active_model, updated_by, updated_at
		FROM ai_model_settings
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`

	err := r.db.conn.GetContext(ctx, &setting, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get active model setting: %w", err)
	}

	return &setting, nil
}

// Save appends a new setting and fills in its ID and UpdatedAt
func (r *ActiveModelRepository) Save(ctx context.Context, setting *models.ActiveModelSetting) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO ai_model_settings (active_model, updated_by)
		VALUES ($1, $2)
		RETURNING id, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query, string(setting.ActiveModel), setting.UpdatedBy).
		Scan(&setting.ID, &setting.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save active model setting: %w", err)
	}

	return nil
}

// History returns up to limit settings, newest first
func (r *ActiveModelRepository) History(ctx context.Context, limit int) ([]*models.ActiveModelSetting, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	var settings []*models.ActiveModelSetting
	query := `
		SELECT id, active_model, updated_by, updated_at
		FROM ai_model_settings
		ORDER BY updated_at DESC, id DESC
		LIMIT $1
	`

	if err := r.db.conn.SelectContext(ctx, &settings, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list active model history: %w", err)
	}

	return settings, nil
}
