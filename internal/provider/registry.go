package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentcore-dev/runtime/pkg/types"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all providers.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// DefaultModel returns the default model.
func (r *Registry) DefaultModel() (*types.Model, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, modelID := ParseModelString(r.config.Model)
		return r.GetModel(providerID, modelID)
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// modelPriority returns sorting priority for models.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	case strings.Contains(modelID, "gemini-2"):
		return 70
	default:
		return 50
	}
}

// Npm package to provider type mapping, used to resolve a configured
// provider entry to the Factory that knows how to construct it.
const (
	NpmOpenAI           = "@ai-sdk/openai"
	NpmOpenAICompatible = "@ai-sdk/openai-compatible"
	NpmAnthropic        = "@ai-sdk/anthropic"
)

// Factory constructs a Provider for one configured entry. Concrete wire
// clients (the eino chat-model construction for a specific vendor) are an
// external collaborator: callers register a Factory per npm key before
// calling InitializeProviders, rather than this package hard-coding
// vendor SDK wiring.
type Factory func(ctx context.Context, id string, cfg types.ProviderConfig) (Provider, error)

// Factories holds the registered constructors keyed by npm package name.
type Factories struct {
	mu    sync.RWMutex
	byNpm map[string]Factory
}

// NewFactories returns an empty Factories registry.
func NewFactories() *Factories {
	return &Factories{byNpm: make(map[string]Factory)}
}

// Register associates npm with factory, overwriting any existing entry.
func (f *Factories) Register(npm string, factory Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byNpm[npm] = factory
}

func (f *Factories) lookup(npm string) (Factory, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	factory, ok := f.byNpm[npm]
	return factory, ok
}

// InitializeProviders builds a Registry from config, constructing each
// enabled, non-disabled provider entry via the matching registered
// Factory. Entries whose npm has no registered factory are skipped with a
// warning rather than failing startup.
func InitializeProviders(ctx context.Context, config *types.Config, factories *Factories) (*Registry, error) {
	registry := NewRegistry(config)

	for name, cfg := range config.Provider {
		if cfg.Disable {
			continue
		}

		npm := cfg.Npm
		if npm == "" {
			npm = inferNpmFromProviderName(name)
		}
		if npm == "" {
			log.Warn().Str("provider", name).Msg("provider: no npm package and no inference match, skipping")
			continue
		}

		factory, ok := factories.lookup(npm)
		if !ok {
			log.Warn().Str("provider", name).Str("npm", npm).Msg("provider: no factory registered, skipping")
			continue
		}

		p, err := factory(ctx, name, cfg)
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("provider: construction failed")
			continue
		}
		if p != nil {
			registry.Register(p)
		}
	}

	return registry, nil
}

// inferNpmFromProviderName maps well-known provider names to npm packages
// when a config entry omits the npm field.
func inferNpmFromProviderName(name string) string {
	switch name {
	case "anthropic", "claude":
		return NpmAnthropic
	case "openai":
		return NpmOpenAI
	default:
		return ""
	}
}

// getProviderCredentials extracts API key and base URL from provider
// config, falling back to the given environment variable when the config
// omits an explicit key.
func getProviderCredentials(cfg types.ProviderConfig, envKey string) (apiKey, baseURL string) {
	if cfg.Options != nil {
		apiKey = cfg.Options.APIKey
		baseURL = cfg.Options.BaseURL
	}
	if apiKey == "" && envKey != "" {
		apiKey = os.Getenv(envKey)
	}
	return apiKey, baseURL
}
