package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/resilience/circuitbreaker"
	"github.com/ossfeed/coordinator/internal/resilience/retry"
)

const (
	defaultOpenAIChatModel  = openai.GPT4oMini
	defaultOpenAIEmbedModel = string(openai.AdaEmbeddingV2)
)

// OpenAIProvider implements Provider over OpenAI's chat and embeddings APIs.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	retryCf retry.Config
}

func newOpenAIProvider(cfg *entity.LLMProviderConfig, model string) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: openai provider requires an api key: %w", entity.ErrProviderFatal)
	}
	if model == "" {
		model = defaultOpenAIChatModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBaseURL != "" {
		clientCfg.BaseURL = cfg.APIBaseURL
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		cb:      circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryCf: retry.AIAPIConfig(),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
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

func (p *OpenAIProvider) doChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return ChatResponse{}, &StatusError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai: empty response: %w", entity.ErrProviderTransient)
	}

	choice := resp.Choices[0]
	return ChatResponse{
		Message:      Message{Role: RoleAssistant, Content: choice.Message.Content},
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	})
	if err != nil {
		return nil, &StatusError{Provider: "openai", Err: err}
	}

	out := make(chan ChatChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- ChatChunk{Done: true}
				return
			}
			if err != nil {
				slog.ErrorContext(ctx, "openai stream error", slog.String("error", err.Error()))
				out <- ChatChunk{Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			out <- ChatChunk{
				Delta:        choice.Delta.Content,
				FinishReason: string(choice.FinishReason),
			}
		}
	}()

	return out, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
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

func (p *OpenAIProvider) doEmbed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultOpenAIEmbedModel
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: req.Input,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return EmbedResponse{}, &StatusError{Provider: "openai", Err: err}
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}

	return EmbedResponse{
		Embeddings: embeddings,
		Model:      string(resp.Model),
		Usage: Usage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) CountTokens(ctx context.Context, text string) (int, error) {
	return estimateTokens(text), nil
}

func (p *OpenAIProvider) Health(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		return &StatusError{Provider: "openai", Err: err}
	}
	return nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, &StatusError{Provider: "openai", Err: err}
	}
	models := make([]ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = ModelInfo{ID: m.ID, SupportsChat: true}
	}
	return models, nil
}

func (p *OpenAIProvider) withResilience(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return retry.WithBackoff(ctx, p.retryCf, func() error {
		_, err := p.cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.WarnContext(ctx, "openai circuit breaker open", slog.String("state", p.cb.State().String()))
			return fmt.Errorf("openai: %w", entity.ErrProviderTransient)
		}
		return err
	})
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
