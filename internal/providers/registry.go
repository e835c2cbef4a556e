package providers

import (
	"github.com/esche888/appcollab-sub000/internal/config"
	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// Registry is the fixed set of provider adapters known to the process.
// It is built once at startup and is read-only afterwards, so it is safe
// for concurrent use without locking.
type Registry struct {
	order     []models.ModelID
	providers map[models.ModelID]Provider
}

// NewRegistry registers the given providers in order. A later provider
// with the same ID replaces an earlier one but keeps its position.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[models.ModelID]Provider, len(ps))}
	for _, p := range ps {
		if p == nil {
			continue
		}
		if _, exists := r.providers[p.ID()]; !exists {
			r.order = append(r.order, p.ID())
		}
		r.providers[p.ID()] = p
	}
	return r
}

// Get returns the provider registered under id
func (r *Registry) Get(id models.ModelID) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// All returns every registered provider in registration order
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// ListAvailable returns the identifiers of every provider whose
// IsAvailable is true, in registration order. Never nil.
func (r *Registry) ListAvailable() []models.ModelID {
	out := make([]models.ModelID, 0, len(r.order))
	for _, id := range r.order {
		if r.providers[id].IsAvailable() {
			out = append(out, id)
		}
	}
	return out
}

// IsAvailable reports whether id is registered and available
func (r *Registry) IsAvailable(id models.ModelID) bool {
	p, ok := r.providers[id]
	return ok && p.IsAvailable()
}

// BuildRegistry constructs the Anthropic, OpenAI and Gemini adapters from
// configuration. Credentials are read from the env vars named in cfg.
// Nothing is sent over the network here.
func BuildRegistry(cfg config.AIConfig) *Registry {
	logger := utils.NewLogger("providers")

	settings := func(id models.ModelID) Settings {
		pc := cfg.Providers[string(id)]
		s := Settings{
			APIKey:    pc.APIKey(),
			Model:     pc.Model,
			BaseURL:   pc.BaseURL,
			MaxTokens: cfg.MaxTokens,
		}
		if s.APIKey == "" {
			logger.Info("Provider credential not set", "provider", id, "env", pc.APIKeyEnv)
		}
		return s
	}

	return NewRegistry(
		NewAnthropicProvider(settings(models.ModelClaude)),
		NewOpenAIProvider(settings(models.ModelOpenAI)),
		NewGeminiProvider(settings(models.ModelGemini)),
	)
}
