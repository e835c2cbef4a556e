package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esche888/appcollab-sub000/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg := DefaultDBConfig()
	return NewDBFromConn(sqlx.NewDb(conn, "sqlmock"), cfg), mock
}

func TestDB_Migrate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ai_model_settings")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_Health(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	db := NewDBFromConn(sqlx.NewDb(conn, "sqlmock"), DefaultDBConfig())

	mock.ExpectPing()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, db.Health(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveModelRepository_Latest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewActiveModelRepository()

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_model_settings")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "active_model", "updated_by", "updated_at"}).
			AddRow(int64(7), "openai", "admin@example.com", updated))

	setting, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), setting.ID)
	assert.Equal(t, models.ModelOpenAI, setting.ActiveModel)
	assert.Equal(t, "admin@example.com", setting.UpdatedBy)
	assert.True(t, updated.Equal(setting.UpdatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveModelRepository_LatestEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewActiveModelRepository()

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_model_settings")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "active_model", "updated_by", "updated_at"}))

	_, err := repo.Latest(context.Background())
	assert.ErrorIs(t, err, ErrSettingNotFound)
}

func TestActiveModelRepository_LatestQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewActiveModelRepository()

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_model_settings")).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Latest(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSettingNotFound))
}

func TestActiveModelRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewActiveModelRepository()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ai_model_settings")).
		WithArgs("gemini", "ops").
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at"}).AddRow(int64(3), now))

	setting := &models.ActiveModelSetting{ActiveModel: models.ModelGemini, UpdatedBy: "ops"}
	require.NoError(t, repo.Save(context.Background(), setting))

	assert.Equal(t, int64(3), setting.ID)
	assert.True(t, now.Equal(setting.UpdatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveModelRepository_History(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewActiveModelRepository()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "active_model", "updated_by", "updated_at"}).
			AddRow(int64(2), "claude", "b", now).
			AddRow(int64(1), "openai", "a", now.Add(-time.Hour)))

	history, err := repo.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ModelClaude, history[0].ActiveModel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_usage_logs")).
		WithArgs(sqlmock.AnyArg(), "user-1", "claude", "claude-x", "gap-analysis", 42, false, 120, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.UsageLogEntry{
		CallerID:        "user-1",
		ModelIdentifier: models.ModelClaude,
		VendorModel:     "claude-x",
		PromptType:      models.PromptGapAnalysis,
		TokensUsed:      42,
		ResponseTimeMS:  120,
	}
	require.NoError(t, repo.Create(context.Background(), entry))

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_CreateBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_usage_logs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_usage_logs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entries := []*models.UsageLogEntry{
		{ModelIdentifier: models.ModelOpenAI, PromptType: models.PromptSkillMatching},
		{ModelIdentifier: models.ModelGemini, PromptType: models.PromptProjectSummary},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_CreateBatchRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_usage_logs")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), []*models.UsageLogEntry{{ModelIdentifier: models.ModelClaude}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_SummaryByModelIsCached(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	since := time.Date(2026, 3, 1, 10, 15, 42, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY model_identifier")).
		WithArgs(since.Truncate(time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"model_identifier", "requests", "total_tokens", "avg_response_time_ms"}).
			AddRow("claude", int64(4), int64(800), 350.5).
			AddRow("openai", int64(1), int64(90), 120.0))

	first, err := repo.SummaryByModel(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, models.ModelClaude, first[0].ModelIdentifier)
	assert.Equal(t, int64(800), first[0].TotalTokens)

	// same minute: served from cache, no second query expected
	second, err := repo.SummaryByModel(context.Background(), since.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_Recent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_usage_logs")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "caller_id", "model_identifier", "vendor_model", "prompt_type",
			"tokens_used", "tokens_estimated", "response_time_ms", "created_at",
		}).AddRow(id.String(), "u", "gemini", "gemini-2.0-flash", "project-summary", 11, true, 300, now))

	entries, err := repo.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.True(t, entries[0].TokensEstimated)
	assert.Equal(t, models.PromptProjectSummary, entries[0].PromptType)
}

func TestLRUCache(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", 3)     // evicts b

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "expired")

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
