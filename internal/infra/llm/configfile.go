package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

// ConfigsFromEnv picks the provider-config source: the YAML file named by
// LLM_PROVIDERS_FILE when set, else the stored-config repository.
func ConfigsFromEnv(stored repository.LLMProviderConfigRepository) (repository.LLMProviderConfigRepository, error) {
	path := os.Getenv("LLM_PROVIDERS_FILE")
	if path == "" {
		return stored, nil
	}
	return LoadFileConfigs(path)
}

// providersFile is the on-disk shape of a provider credentials file: a
// deployment without a seeded llm_provider_configs table can point
// LLM_PROVIDERS_FILE at one of these instead.
type providersFile struct {
	Providers []struct {
		Type             string `yaml:"type"`
		APIKey           string `yaml:"api_key"`
		APIKeyEnv        string `yaml:"api_key_env"`
		APIBaseURL       string `yaml:"api_base_url"`
		APIVersion       string `yaml:"api_version"`
		Region           string `yaml:"region"`
		RequestTimeoutS  int    `yaml:"request_timeout_s"`
		MaxRetries       int    `yaml:"max_retries"`
		DefaultModel     string `yaml:"default_model"`
		Disabled         bool   `yaml:"disabled"`
	} `yaml:"providers"`
}

// FileConfigs is an LLMProviderConfigRepository backed by a YAML file
// read once at startup. The first non-disabled entry is the default
// provider, matching the stored-config repository's GetDefault order.
type FileConfigs struct {
	configs []*entity.LLMProviderConfig
}

// LoadFileConfigs reads and validates a provider credentials file.
// The path comes from a trusted source (LLM_PROVIDERS_FILE), not user input.
func LoadFileConfigs(path string) (*FileConfigs, error) {
	// #nosec G304 -- path is provided by trusted source (env var), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llm: read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("llm: parse providers file: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("llm: providers file %s lists no providers", path)
	}

	configs := make([]*entity.LLMProviderConfig, 0, len(file.Providers))
	for i, p := range file.Providers {
		if p.Type == "" {
			return nil, fmt.Errorf("llm: providers file entry %d has no type", i)
		}
		apiKey := p.APIKey
		if apiKey == "" && p.APIKeyEnv != "" {
			apiKey = os.Getenv(p.APIKeyEnv)
		}
		configs = append(configs, &entity.LLMProviderConfig{
			ID:             int64(i + 1),
			ProviderType:   p.Type,
			APIKey:         apiKey,
			APIBaseURL:     p.APIBaseURL,
			APIVersion:     p.APIVersion,
			Region:         p.Region,
			RequestTimeout: time.Duration(p.RequestTimeoutS) * time.Second,
			MaxRetries:     p.MaxRetries,
			DefaultModel:   p.DefaultModel,
			IsActive:       !p.Disabled,
		})
	}
	return &FileConfigs{configs: configs}, nil
}

func (f *FileConfigs) Get(_ context.Context, providerType string) (*entity.LLMProviderConfig, error) {
	for _, cfg := range f.configs {
		if cfg.ProviderType == providerType {
			return cfg, nil
		}
	}
	return nil, nil
}

func (f *FileConfigs) GetDefault(_ context.Context) (*entity.LLMProviderConfig, error) {
	for _, cfg := range f.configs {
		if cfg.IsActive {
			return cfg, nil
		}
	}
	return nil, nil
}

func (f *FileConfigs) List(_ context.Context) ([]*entity.LLMProviderConfig, error) {
	out := make([]*entity.LLMProviderConfig, len(f.configs))
	copy(out, f.configs)
	return out, nil
}
