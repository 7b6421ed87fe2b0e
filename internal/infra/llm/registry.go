package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

// Sustained request rate and burst applied per provider type. Kept
// deliberately conservative: every scheduler in the process shares the
// same bucket for a given provider.
const (
	defaultProviderRate  = 2.0
	defaultProviderBurst = 5
)

// Factory builds a Provider from a stored config and an optional model
// override. Each concrete provider package (anthropic.go, openai.go, ...)
// registers one under its ProviderType name.
type Factory func(cfg *entity.LLMProviderConfig, model string) (Provider, error)

// Registry resolves a provider-config row into a ready-to-use Provider,
// mirroring the lookup-then-merge-then-construct sequence of the original
// LLMProviderFactory: look up by name, or fall back to the first active
// config when none is given; a request-supplied model always wins, else the
// config's DefaultModel, else the provider's own built-in default.
type Registry struct {
	configs   repository.LLMProviderConfigRepository
	factories map[string]Factory

	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

// NewRegistry constructs a Registry with the built-in provider factories
// (anthropic, openai, gemini, volcengine) pre-registered.
func NewRegistry(configs repository.LLMProviderConfigRepository) *Registry {
	r := &Registry{
		configs:   configs,
		factories: make(map[string]Factory),
		limiters:  make(map[string]*RateLimiter),
	}
	r.Register("anthropic", newAnthropicProvider)
	r.Register("openai", newOpenAIProvider)
	r.Register("gemini", newGeminiProvider)
	r.Register("volcengine", newVolcengineProvider)
	return r
}

// Register adds or replaces the factory for a provider type name.
func (r *Registry) Register(providerType string, factory Factory) {
	r.factories[providerType] = factory
}

// CreateProvider resolves a Provider for the named provider type and model.
// An empty providerType selects the first active stored config, matching
// the original factory's "no explicit provider" default path. An empty
// model defers to the config's DefaultModel.
func (r *Registry) CreateProvider(ctx context.Context, providerType, model string) (Provider, error) {
	cfg, err := r.resolveConfig(ctx, providerType)
	if err != nil {
		return nil, err
	}

	factory, ok := r.factories[cfg.ProviderType]
	if !ok {
		return nil, fmt.Errorf("llm: no factory registered for provider type %q: %w", cfg.ProviderType, entity.ErrProviderFatal)
	}

	if model == "" {
		model = cfg.DefaultModel
	}

	provider, err := factory(cfg, model)
	if err != nil {
		return nil, err
	}
	return rateLimitedProvider{Provider: provider, limiter: r.limiterFor(cfg.ProviderType)}, nil
}

// limiterFor returns the shared token bucket for a provider type,
// creating it on first use. One bucket per type, shared by every
// provider instance the registry hands out.
func (r *Registry) limiterFor(providerType string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[providerType]
	if !ok {
		limiter = NewRateLimiter(defaultProviderRate, defaultProviderBurst)
		r.limiters[providerType] = limiter
	}
	return limiter
}

func (r *Registry) resolveConfig(ctx context.Context, providerType string) (*entity.LLMProviderConfig, error) {
	if providerType != "" {
		cfg, err := r.configs.Get(ctx, providerType)
		if err != nil {
			return nil, fmt.Errorf("llm: lookup provider %q: %w", providerType, err)
		}
		if cfg == nil {
			return nil, fmt.Errorf("llm: no config for provider %q: %w", providerType, entity.ErrNotFound)
		}
		if !cfg.IsActive {
			return nil, fmt.Errorf("llm: provider %q is disabled: %w", providerType, entity.ErrProviderFatal)
		}
		return cfg, nil
	}

	cfg, err := r.configs.GetDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm: lookup default provider: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("llm: no active provider configured: %w", entity.ErrNotFound)
	}
	return cfg, nil
}
