// Package completion routes completion requests to the active AI provider.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/prompts"
	"github.com/esche888/appcollab-sub000/internal/providers"
	"github.com/esche888/appcollab-sub000/internal/usage"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// Request asks for a completion of a named prompt.
type Request struct {
	PromptType models.PromptType
	// Variables fill the template's {name} placeholders. Substitution is
	// single-pass, so their order does not matter.
	Variables map[string]string
	CallerID  string
	Options   providers.CompletionOptions
}

// Options configures a Service
type Options struct {
	// RequestTimeout bounds each vendor call. Zero means no extra bound.
	RequestTimeout time.Duration
	// Defaults are applied to every request's Options where unset
	Defaults providers.CompletionOptions
}

// ProviderStatus is one row of the admin providers view
type ProviderStatus struct {
	ID          models.ModelID `json:"id"`
	DisplayName string         `json:"display_name"`
	Available   bool           `json:"available"`
	Active      bool           `json:"active"`
}

// Service is the entry point for AI completions
type Service struct {
	resolver  *Resolver
	registry  *providers.Registry
	templates prompts.Store
	recorder  usage.Recorder
	opts      Options
	logger    *utils.Logger
}

// NewService wires the resolver, provider registry, template store and usage recorder.
func NewService(resolver *Resolver, registry *providers.Registry, templates prompts.Store, recorder usage.Recorder, opts Options) *Service {
	if recorder == nil {
		recorder = usage.NopRecorder{}
	}
	return &Service{
		resolver:  resolver,
		registry:  registry,
		templates: templates,
		recorder:  recorder,
		opts:      opts,
		logger:    utils.NewLogger("completion"),
	}
}

// GenerateCompletion resolves the active provider, renders the prompt and
// calls the vendor. On success one usage entry is recorded without waiting
// for it to be persisted.
//
// Errors: *ConfigurationError when no provider is available,
// *ValidationError for an unknown prompt type, *providers.ProviderError
// when the vendor call fails.
func (s *Service) GenerateCompletion(ctx context.Context, req Request) (*providers.CompletionResult, error) {
	logger := s.logger.With("caller_id", req.CallerID, "prompt_type", req.PromptType)

	res, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	tpl, err := s.templates.Load(req.PromptType)
	if err != nil {
		if errors.Is(err, prompts.ErrUnknownPromptType) {
			return nil, &ValidationError{Field: "prompt_type", Message: fmt.Sprintf("unknown prompt type %q", req.PromptType)}
		}
		return nil, fmt.Errorf("loading prompt template: %w", err)
	}

	if missing := missingVariables(tpl.Text, req.Variables); len(missing) > 0 {
		logger.Warn("Prompt has unresolved placeholders", "missing", strings.Join(missing, ","))
	}
	prompt := tpl.Render(req.Variables)

	callCtx := ctx
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	result, err := res.Provider.GenerateCompletion(callCtx, prompt, s.mergeOptions(req.Options))
	if err != nil {
		if _, ok := providers.AsProviderError(err); !ok {
			err = &providers.ProviderError{Provider: res.Model, Kind: providers.KindUpstream, Err: err}
		}
		logger.Error("Completion failed", "model", res.Model, "error", err)
		return nil, err
	}

	s.recorder.Record(models.UsageLogEntry{
		CallerID:        req.CallerID,
		ModelIdentifier: result.ModelIdentifier,
		VendorModel:     result.VendorModel,
		PromptType:      req.PromptType,
		TokensUsed:      max(result.TokensUsed, 0),
		TokensEstimated: result.TokensEstimated,
		ResponseTimeMS:  max(result.ResponseTimeMS, 0),
	})

	logger.Debug("Completion served",
		"model", result.ModelIdentifier,
		"tokens", result.TokensUsed,
		"response_time_ms", result.ResponseTimeMS,
		"fallback", res.Fallback())

	return result, nil
}

func (s *Service) mergeOptions(o providers.CompletionOptions) providers.CompletionOptions {
	d := s.opts.Defaults
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.Temperature == nil {
		o.Temperature = d.Temperature
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = d.SystemPrompt
	}
	return o
}

// missingVariables lists template placeholders with no matching variable
func missingVariables(text string, vars map[string]string) []string {
	var missing []string
	for _, name := range prompts.Unresolved(text) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ListAvailableProviders returns every provider that can currently serve requests
func (s *Service) ListAvailableProviders() []models.ModelID {
	return s.registry.ListAvailable()
}

// ProviderStatuses reports every registered provider and whether it is the
// one serving requests right now.
func (s *Service) ProviderStatuses(ctx context.Context) []ProviderStatus {
	var active models.ModelID
	if res, err := s.resolver.Resolve(ctx); err == nil {
		active = res.Model
	}

	all := s.registry.All()
	out := make([]ProviderStatus, 0, len(all))
	for _, p := range all {
		out = append(out, ProviderStatus{
			ID:          p.ID(),
			DisplayName: p.ID().DisplayName(),
			Available:   p.IsAvailable(),
			Active:      p.ID() == active,
		})
	}
	return out
}

// GetActiveModel returns the model the next request would be served by
func (s *Service) GetActiveModel(ctx context.Context) (Resolution, error) {
	return s.resolver.Resolve(ctx)
}

// SetActiveModel persists a new active model. Unknown or unavailable
// models are rejected with *ValidationError and nothing is written.
func (s *Service) SetActiveModel(ctx context.Context, model string, updatedBy string) (*models.ActiveModelSetting, error) {
	id, err := models.ParseModelID(model)
	if err != nil {
		return nil, &ValidationError{Field: "model", Message: err.Error()}
	}
	if !s.registry.IsAvailable(id) {
		return nil, &ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("%s is not available; configure its API key first", id),
		}
	}

	setting := &models.ActiveModelSetting{ActiveModel: id, UpdatedBy: updatedBy}
	if err := s.resolver.settings.Save(ctx, setting); err != nil {
		return nil, fmt.Errorf("saving active model: %w", err)
	}

	s.logger.Info("Active model changed", "model", id, "updated_by", updatedBy)
	return setting, nil
}
