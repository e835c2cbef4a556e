package completion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/providers"
	"github.com/esche888/appcollab-sub000/internal/storage"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// SettingsStore reads and appends the persisted active model.
// Latest returns storage.ErrSettingNotFound when nothing was ever set.
type SettingsStore interface {
	Latest(ctx context.Context) (*models.ActiveModelSetting, error)
	Save(ctx context.Context, setting *models.ActiveModelSetting) error
}

// ResolutionState describes how the serving model was chosen
type ResolutionState string

const (
	StateUnset                 ResolutionState = "unset"
	StateConfiguredUnavailable ResolutionState = "configured-unavailable"
	StateConfiguredAvailable   ResolutionState = "configured-available"
)

// Resolution is the outcome of picking a provider for one request.
type Resolution struct {
	// Model is the provider that will serve the request
	Model models.ModelID `json:"model"`
	// Configured is the persisted choice, empty when none was ever set
	Configured models.ModelID `json:"configured,omitempty"`
	State      ResolutionState `json:"state"`
	UpdatedBy  string          `json:"updated_by,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`

	Provider providers.Provider `json:"-"`
}

// Fallback reports whether the serving model differs from the configured one
func (r Resolution) Fallback() bool {
	return r.State != StateConfiguredAvailable
}

// Resolver picks the provider for each request from the persisted setting
// and a fixed fallback order. Nothing is cached between calls.
type Resolver struct {
	registry      *providers.Registry
	settings      SettingsStore
	fallbackOrder []models.ModelID
	logger        *utils.Logger
}

// NewResolver creates a resolver. An empty fallbackOrder uses models.DefaultFallbackOrder.
func NewResolver(registry *providers.Registry, settings SettingsStore, fallbackOrder []models.ModelID) *Resolver {
	if len(fallbackOrder) == 0 {
		fallbackOrder = models.DefaultFallbackOrder
	}
	return &Resolver{
		registry:      registry,
		settings:      settings,
		fallbackOrder: fallbackOrder,
		logger:        utils.NewLogger("resolver"),
	}
}

// Resolve returns the provider to use right now, or a *ConfigurationError
// when no provider is available.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	var res Resolution

	setting, err := r.settings.Latest(ctx)
	switch {
	case err == nil && setting != nil:
		res.Configured = setting.ActiveModel
		res.UpdatedBy = setting.UpdatedBy
		updatedAt := setting.UpdatedAt
		res.UpdatedAt = &updatedAt
	case err != nil && !errors.Is(err, storage.ErrSettingNotFound):
		r.logger.Warn("Failed to read active model setting, treating as unset", "error", err)
	}

	if res.Configured != "" {
		if p, ok := r.registry.Get(res.Configured); ok && p.IsAvailable() {
			res.Model = res.Configured
			res.State = StateConfiguredAvailable
			res.Provider = p
			return res, nil
		}
		res.State = StateConfiguredUnavailable
	} else {
		res.State = StateUnset
	}

	for _, id := range r.candidates() {
		p, ok := r.registry.Get(id)
		if !ok || !p.IsAvailable() {
			continue
		}
		res.Model = id
		res.Provider = p
		if res.State == StateConfiguredUnavailable {
			r.logger.Warn("Configured model unavailable, falling back",
				"configured", res.Configured, "fallback", id)
		}
		return res, nil
	}

	registered := make([]models.ModelID, 0, len(r.registry.All()))
	for _, p := range r.registry.All() {
		registered = append(registered, p.ID())
	}
	return Resolution{}, errNoProvider(registered)
}

// candidates is the fallback order followed by any other registered
// provider in registration order.
func (r *Resolver) candidates() []models.ModelID {
	seen := make(map[models.ModelID]struct{}, len(r.fallbackOrder))
	out := make([]models.ModelID, 0, len(r.fallbackOrder))
	for _, id := range r.fallbackOrder {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, p := range r.registry.All() {
		if _, dup := seen[p.ID()]; dup {
			continue
		}
		seen[p.ID()] = struct{}{}
		out = append(out, p.ID())
	}
	return out
}

// MemorySettings is a SettingsStore kept in process memory. It is used when
// no database is configured; settings do not survive a restart.
type MemorySettings struct {
	mu      sync.RWMutex
	history []models.ActiveModelSetting
}

// NewMemorySettings creates an empty in-memory settings store
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{}
}

// Latest returns the most recently saved setting
func (m *MemorySettings) Latest(ctx context.Context) (*models.ActiveModelSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return nil, storage.ErrSettingNotFound
	}
	s := m.history[len(m.history)-1]
	return &s, nil
}

// Save appends setting and assigns its ID and timestamp
func (m *MemorySettings) Save(ctx context.Context, setting *models.ActiveModelSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	setting.ID = int64(len(m.history) + 1)
	setting.UpdatedAt = time.Now().UTC()
	m.history = append(m.history, *setting)
	return nil
}
