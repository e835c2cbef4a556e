package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/esche888/appcollab-sub000/internal/completion"
	"github.com/esche888/appcollab-sub000/internal/queue"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// AdminAIHandler handles the administrative AI endpoints
type AdminAIHandler struct {
	service     *completion.Service
	usage       UsageReader
	deadLetters DeadLetterReader
	logger      *utils.Logger
}

// NewAdminAIHandler creates a new admin AI handler
func NewAdminAIHandler(service *completion.Service, usage UsageReader, deadLetters DeadLetterReader) *AdminAIHandler {
	return &AdminAIHandler{
		service:     service,
		usage:       usage,
		deadLetters: deadLetters,
		logger:      utils.NewLogger("admin-ai"),
	}
}

// ProvidersResponse is returned by GET /admin/ai/providers
type ProvidersResponse struct {
	Available []string                    `json:"available"`
	Providers []completion.ProviderStatus `json:"providers"`
}

// SetActiveModelRequest is the body of PUT /admin/ai/active-model
type SetActiveModelRequest struct {
	Model     string `json:"model"`
	UpdatedBy string `json:"updated_by"`
}

// ListProviders handles GET /admin/ai/providers
func (h *AdminAIHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	available := h.service.ListAvailableProviders()
	ids := make([]string, len(available))
	for i, id := range available {
		ids[i] = string(id)
	}

	utils.RespondWithJSON(w, http.StatusOK, ProvidersResponse{
		Available: ids,
		Providers: h.service.ProviderStatuses(r.Context()),
	})
}

// GetActiveModel handles GET /admin/ai/active-model
func (h *AdminAIHandler) GetActiveModel(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetActiveModel(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// SetActiveModel handles PUT /admin/ai/active-model
func (h *AdminAIHandler) SetActiveModel(w http.ResponseWriter, r *http.Request) {
	var req SetActiveModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithErrorKind(w, http.StatusBadRequest, string(completion.KindValidation), "invalid request body")
		return
	}

	updatedBy := strings.TrimSpace(req.UpdatedBy)
	if updatedBy == "" {
		updatedBy = r.Header.Get("X-Admin-User")
	}

	setting, err := h.service.SetActiveModel(r.Context(), req.Model, updatedBy)
	if err != nil {
		if completion.KindOf(err) == completion.KindInternal {
			h.logger.Error("Failed to set active model", "model", req.Model, "error", err)
		}
		writeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, setting)
}

// UsageSummary handles GET /admin/ai/usage?since=24h
func (h *AdminAIHandler) UsageSummary(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		utils.RespondWithErrorKind(w, http.StatusServiceUnavailable, string(completion.KindConfiguration), "usage store not configured")
		return
	}

	window := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			utils.RespondWithErrorKind(w, http.StatusBadRequest, string(completion.KindValidation), "since must be a positive duration such as 24h")
			return
		}
		window = d
	}

	summaries, err := h.usage.SummaryByModel(r.Context(), time.Now().Add(-window))
	if err != nil {
		h.logger.Error("Failed to summarize usage", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"since":  window.String(),
		"models": summaries,
	})
}

// RecentUsage handles GET /admin/ai/usage/recent?limit=50
func (h *AdminAIHandler) RecentUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		utils.RespondWithErrorKind(w, http.StatusServiceUnavailable, string(completion.KindConfiguration), "usage store not configured")
		return
	}

	limit := queryInt(r, "limit", 50)
	entries, err := h.usage.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list usage", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}

// ListDeadLetters handles GET /admin/ai/usage/dead-letters
func (h *AdminAIHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		utils.RespondWithErrorKind(w, http.StatusServiceUnavailable, string(completion.KindConfiguration), "usage worker not running")
		return
	}

	items, err := h.deadLetters.DeadLetterItems(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pending, err := h.deadLetters.QueueLength(r.Context())
	if err != nil {
		pending = -1
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"pending":      pending,
		"dead_letters": items,
	})
}

// RetryDeadLetter handles POST /admin/ai/usage/dead-letters/{id}/retry
func (h *AdminAIHandler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		utils.RespondWithErrorKind(w, http.StatusServiceUnavailable, string(completion.KindConfiguration), "usage worker not running")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.deadLetters.RetryDeadLetterItem(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "dead letter item not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
