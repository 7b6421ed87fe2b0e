package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/resilience/circuitbreaker"
	"github.com/ossfeed/coordinator/internal/resilience/retry"
)

const (
	defaultGeminiModel          = "gemini-flash-lite-latest"
	defaultGeminiEmbeddingModel = "gemini-embedding-001"
	geminiEmbeddingDimensions   = int32(768)
)

// GeminiProvider implements Provider over Google's genai SDK.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	retryCf retry.Config
}

func newGeminiProvider(cfg *entity.LLMProviderConfig, model string) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini provider requires an api key: %w", entity.ErrProviderFatal)
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}

	return &GeminiProvider{
		client:  client,
		model:   model,
		cb:      circuitbreaker.New(circuitbreaker.DefaultConfig("gemini-api")),
		retryCf: retry.AIAPIConfig(),
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var result ChatResponse
	err := p.withResilience(ctx, func() error {
		resp, err := p.doChat(ctx, req)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	return result, err
}

func (p *GeminiProvider) doChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	contents := toGeminiContents(req.Messages)
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return ChatResponse{}, &StatusError{Provider: "gemini", Err: err}
	}
	text := resp.Text()
	if text == "" {
		return ChatResponse{}, fmt.Errorf("gemini: empty response: %w", entity.ErrProviderTransient)
	}

	return ChatResponse{
		Message:      Message{Role: RoleAssistant, Content: text},
		FinishReason: "stop",
		Model:        model,
	}, nil
}

// ChatStream is unsupported; the genai usage this coordinator is grounded
// on (rcliao-briefly) only calls the non-streaming GenerateContent path.
func (p *GeminiProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	return nil, fmt.Errorf("gemini: streaming chat not implemented: %w", entity.ErrProviderFatal)
}

func (p *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	var result EmbedResponse
	err := p.withResilience(ctx, func() error {
		resp, err := p.doEmbed(ctx, req)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	return result, err
}

func (p *GeminiProvider) doEmbed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}

	dims := geminiEmbeddingDimensions
	config := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	embeddings := make([][]float32, 0, len(req.Input))
	for _, text := range req.Input {
		contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}, Role: "user"}}
		resp, err := p.client.Models.EmbedContent(ctx, model, contents, config)
		if err != nil {
			return EmbedResponse{}, &StatusError{Provider: "gemini", Err: err}
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return EmbedResponse{}, fmt.Errorf("gemini: no embedding returned: %w", entity.ErrProviderTransient)
		}
		embeddings = append(embeddings, resp.Embeddings[0].Values)
	}

	return EmbedResponse{Embeddings: embeddings, Model: model}, nil
}

func (p *GeminiProvider) CountTokens(ctx context.Context, text string) (int, error) {
	return estimateTokens(text), nil
}

func (p *GeminiProvider) Health(ctx context.Context) error {
	_, err := p.doChat(ctx, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "ping"}}})
	return err
}

func (p *GeminiProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{
		{ID: defaultGeminiModel, SupportsChat: true},
		{ID: defaultGeminiEmbeddingModel, SupportsEmbed: true},
	}, nil
}

func (p *GeminiProvider) withResilience(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return retry.WithBackoff(ctx, p.retryCf, func() error {
		_, err := p.cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.WarnContext(ctx, "gemini circuit breaker open", slog.String("state", p.cb.State().String()))
			return fmt.Errorf("gemini: %w", entity.ErrProviderTransient)
		}
		return err
	})
}

func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Parts: []*genai.Part{{Text: m.Content}}, Role: role})
	}
	return out
}
