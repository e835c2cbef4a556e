package main

import (
	"context"
	"fmt"

	"github.com/esche888/appcollab-sub000/internal/completion"
	"github.com/esche888/appcollab-sub000/internal/config"
	"github.com/esche888/appcollab-sub000/internal/httpapi"
	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/prompts"
	"github.com/esche888/appcollab-sub000/internal/providers"
	"github.com/esche888/appcollab-sub000/internal/queue"
	"github.com/esche888/appcollab-sub000/internal/storage"
	"github.com/esche888/appcollab-sub000/internal/usage"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// recorderCloser is a usage.Recorder that can flush on shutdown
type recorderCloser interface {
	usage.Recorder
	Close(ctx context.Context) error
}

// app holds every long-lived component built from configuration
type app struct {
	cfg      *config.Config
	db       *storage.DB
	registry *providers.Registry
	service  *completion.Service
	usage    *storage.UsageRepository
	worker   *usage.Worker
	running  bool
	recorder recorderCloser
	queue    queue.Queue[models.UsageLogEntry]
	dlq      queue.DeadLetterQueue[models.UsageLogEntry]
	logger   *utils.Logger
}

// appMode selects how usage entries are delivered
type appMode int

const (
	// modeServer queues usage and persists it from a background worker
	modeServer appMode = iota
	// modeCLI writes usage directly to the database
	modeCLI
)

// newApp wires storage, providers, templates and the completion service.
// Without database.url the active model lives in memory and usage is dropped.
func newApp(cfg *config.Config, mode appMode) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: utils.NewLogger("gateway"),
	}

	var settings completion.SettingsStore
	if cfg.Database.URL != "" {
		db, err := storage.NewDB(storage.DBConfig{
			URL:              cfg.Database.URL,
			MaxOpenConns:     cfg.Database.MaxOpenConns,
			MaxIdleConns:     cfg.Database.MaxIdleConns,
			ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime:  cfg.Database.ConnMaxIdleTime,
			QueryTimeout:     cfg.Database.QueryTimeout,
			SummaryCacheSize: storage.DefaultDBConfig().SummaryCacheSize,
			SummaryCacheTTL:  storage.DefaultDBConfig().SummaryCacheTTL,
		})
		if err != nil {
			return nil, err
		}
		a.db = db
		a.usage = db.NewUsageRepository()
		settings = db.NewActiveModelRepository()
	} else {
		a.logger.Warn("database.url not set; active model is kept in memory and usage is not persisted")
		settings = completion.NewMemorySettings()
	}

	if err := a.buildRecorder(mode); err != nil {
		a.close(context.Background())
		return nil, err
	}

	fallback, err := cfg.FallbackOrder()
	if err != nil {
		a.close(context.Background())
		return nil, err
	}

	a.registry = providers.BuildRegistry(cfg.AI)
	resolver := completion.NewResolver(a.registry, settings, fallback)

	var recorder usage.Recorder = usage.NopRecorder{}
	if a.recorder != nil {
		recorder = a.recorder
	}

	a.service = completion.NewService(resolver, a.registry, prompts.NewFileStore(cfg.AI.PromptDir), recorder, completion.Options{
		RequestTimeout: cfg.AI.RequestTimeout,
		Defaults:       providers.CompletionOptions{MaxTokens: cfg.AI.MaxTokens},
	})

	a.logger.Info("AI providers configured", "available", a.registry.ListAvailable())
	return a, nil
}

func (a *app) buildRecorder(mode appMode) error {
	if a.usage == nil {
		return nil
	}

	if mode == modeCLI {
		a.recorder = usage.NewStoreRecorder(a.usage, a.cfg.Usage.EnqueueTimeout)
		return nil
	}

	qcfg := a.queueConfig()
	q, dlq, err := queue.New[models.UsageLogEntry](qcfg)
	if err != nil {
		return fmt.Errorf("creating usage queue: %w", err)
	}
	a.queue, a.dlq = q, dlq
	a.worker = usage.NewWorker(q, dlq, a.usage, qcfg)
	a.recorder = usage.NewQueueRecorder(q, a.cfg.Usage.EnqueueTimeout)
	return nil
}

func (a *app) queueConfig() *queue.Config {
	qcfg := queue.DefaultConfig(a.cfg.Usage.QueueName)
	qcfg.BatchSize = a.cfg.Usage.BatchSize
	qcfg.BatchTimeout = a.cfg.Usage.BatchTimeout
	qcfg.MaxRetries = a.cfg.Usage.MaxRetries
	qcfg.RetryBackoff = a.cfg.Usage.RetryBackoff
	qcfg.RedisAddr = a.cfg.Redis.Address
	qcfg.RedisPassword = a.cfg.Redis.Password
	qcfg.RedisDB = a.cfg.Redis.DB
	return qcfg
}

// startWorker begins draining the usage queue into the database
func (a *app) startWorker(ctx context.Context) {
	if a.worker == nil || a.running {
		return
	}
	a.worker.Start(ctx)
	a.running = true
}

// dependencies returns the HTTP layer's view of the app
func (a *app) dependencies() httpapi.Dependencies {
	deps := httpapi.Dependencies{Completion: a.service}
	if a.usage != nil {
		deps.Usage = a.usage
	}
	if a.worker != nil {
		deps.DeadLetters = a.worker
	}
	if a.db != nil {
		deps.Health = a.db.Health
	}
	return deps
}

// close flushes usage and releases connections in dependency order
func (a *app) close(ctx context.Context) {
	if a.recorder != nil {
		if err := a.recorder.Close(ctx); err != nil {
			a.logger.Warn("Usage recorder did not flush in time", "error", err)
		}
	}
	if a.running {
		if err := a.worker.Stop(); err != nil {
			a.logger.Error("Failed to stop usage worker", "error", err)
		}
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.dlq != nil {
		_ = a.dlq.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
}
