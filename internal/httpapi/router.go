package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/esche888/appcollab-sub000/internal/completion"
	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/queue"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// UsageReader serves the reporting endpoints. storage.UsageRepository implements it.
type UsageReader interface {
	SummaryByModel(ctx context.Context, since time.Time) ([]models.ModelUsageSummary, error)
	Recent(ctx context.Context, limit int) ([]*models.UsageLogEntry, error)
}

// DeadLetterReader exposes usage entries that could not be persisted.
// usage.Worker implements it.
type DeadLetterReader interface {
	QueueLength(ctx context.Context) (int, error)
	DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[models.UsageLogEntry], error)
	RetryDeadLetterItem(ctx context.Context, id string) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Completion *completion.Service
	// Usage is nil when no database is configured
	Usage UsageReader
	// DeadLetters is nil when no usage worker runs
	DeadLetters DeadLetterReader
	// Health checks backing stores; nil means always healthy
	Health func(ctx context.Context) error
}

// NewRouter creates the chi router with all routes wired up
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(utils.NewLogger("http")))
	r.Use(middleware.Recoverer)

	health := &healthHandler{check: deps.Health}
	r.Get("/health", health.ServeHTTP)

	admin := NewAdminAIHandler(deps.Completion, deps.Usage, deps.DeadLetters)
	r.Route("/admin/ai", func(r chi.Router) {
		r.Get("/providers", admin.ListProviders)
		r.Get("/active-model", admin.GetActiveModel)
		r.Put("/active-model", admin.SetActiveModel)
		r.Get("/usage", admin.UsageSummary)
		r.Get("/usage/recent", admin.RecentUsage)
		r.Get("/usage/dead-letters", admin.ListDeadLetters)
		r.Post("/usage/dead-letters/{id}/retry", admin.RetryDeadLetter)
	})

	completions := NewCompletionHandler(deps.Completion)
	r.Post("/v1/ai/completions", completions.ServeHTTP)

	return r
}

// requestLogger logs one line per request with the component logger
func requestLogger(logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("Request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

type healthHandler struct {
	check func(ctx context.Context) error
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
