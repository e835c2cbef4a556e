package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/esche888/appcollab-sub000/internal/completion"
	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/providers"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// CompletionHandler serves POST /v1/ai/completions
type CompletionHandler struct {
	service *completion.Service
}

// NewCompletionHandler creates a new completion handler
func NewCompletionHandler(service *completion.Service) *CompletionHandler {
	return &CompletionHandler{service: service}
}

// CompletionRequest is the JSON body accepted by the completion endpoint
type CompletionRequest struct {
	PromptType   string            `json:"prompt_type"`
	Variables    map[string]string `json:"variables"`
	CallerID     string            `json:"caller_id"`
	MaxTokens    int               `json:"max_tokens,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
}

func (h *CompletionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithErrorKind(w, http.StatusBadRequest, string(completion.KindValidation), "invalid request body")
		return
	}

	callerID := body.CallerID
	if callerID == "" {
		callerID = r.Header.Get("X-Caller-ID")
	}

	result, err := h.service.GenerateCompletion(r.Context(), completion.Request{
		PromptType: models.PromptType(body.PromptType),
		Variables:  body.Variables,
		CallerID:   callerID,
		Options: providers.CompletionOptions{
			MaxTokens:    body.MaxTokens,
			Temperature:  body.Temperature,
			SystemPrompt: body.SystemPrompt,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}
