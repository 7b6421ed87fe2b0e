package llm

import (
	"context"
	"fmt"

	"github.com/ossfeed/coordinator/internal/domain/entity"
)

// VolcengineProvider is a stub: nothing here talks to Volcengine's Ark API
// yet, only names the provider type so configs can reference it. Every call
// fails fatally and classifiably rather than silently no-opping.
type VolcengineProvider struct {
	model string
}

func newVolcengineProvider(cfg *entity.LLMProviderConfig, model string) (Provider, error) {
	return &VolcengineProvider{model: model}, nil
}

func (p *VolcengineProvider) Name() string { return "volcengine" }

func (p *VolcengineProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return ChatResponse{}, fmt.Errorf("volcengine: provider not implemented: %w", entity.ErrProviderFatal)
}

func (p *VolcengineProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	return nil, fmt.Errorf("volcengine: provider not implemented: %w", entity.ErrProviderFatal)
}

func (p *VolcengineProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	return EmbedResponse{}, fmt.Errorf("volcengine: provider not implemented: %w", entity.ErrProviderFatal)
}

func (p *VolcengineProvider) CountTokens(ctx context.Context, text string) (int, error) {
	return estimateTokens(text), nil
}

func (p *VolcengineProvider) Health(ctx context.Context) error {
	return fmt.Errorf("volcengine: provider not implemented: %w", entity.ErrProviderFatal)
}

func (p *VolcengineProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return nil, fmt.Errorf("volcengine: provider not implemented: %w", entity.ErrProviderFatal)
}
