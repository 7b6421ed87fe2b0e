package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/resilience/circuitbreaker"
	"github.com/ossfeed/coordinator/internal/resilience/retry"
)

const defaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// AnthropicProvider implements Provider over Anthropic's Messages API.
// Anthropic has no embeddings endpoint, so Embed always fails fatally.
type AnthropicProvider struct {
	client  anthropic.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	retryCf retry.Config
}

func newAnthropicProvider(cfg *entity.LLMProviderConfig, model string) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic provider requires an api key: %w", entity.ErrProviderFatal)
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBaseURL))
	}

	return &AnthropicProvider{
		client:  anthropic.NewClient(opts...),
		model:   model,
		cb:      circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryCf: retry.AIAPIConfig(),
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
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

func (p *AnthropicProvider) doChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system := systemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return ChatResponse{}, &StatusError{Provider: "anthropic", Err: err}
	}
	if len(msg.Content) == 0 {
		return ChatResponse{}, fmt.Errorf("anthropic: empty response: %w", entity.ErrProviderTransient)
	}
	textBlock, ok := msg.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return ChatResponse{}, fmt.Errorf("anthropic: unexpected content block type: %w", entity.ErrProviderFatal)
	}

	return ChatResponse{
		Message:      Message{Role: RoleAssistant, Content: textBlock.Text},
		FinishReason: string(msg.StopReason),
		Model:        model,
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system := systemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	out := make(chan ChatChunk)

	go func() {
		defer close(out)
		var usage Usage
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if textDelta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok {
					out <- ChatChunk{Delta: textDelta.Text}
				}
			case anthropic.MessageDeltaEvent:
				usage.CompletionTokens = int(variant.Usage.OutputTokens)
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		}
		if err := stream.Err(); err != nil {
			slog.ErrorContext(ctx, "anthropic stream error", slog.String("error", err.Error()))
		}
		out <- ChatChunk{Done: true, Usage: usage}
	}()

	return out, nil
}

func (p *AnthropicProvider) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	return EmbedResponse{}, fmt.Errorf("anthropic: embeddings not supported: %w", entity.ErrProviderFatal)
}

func (p *AnthropicProvider) CountTokens(ctx context.Context, text string) (int, error) {
	return estimateTokens(text), nil
}

func (p *AnthropicProvider) Health(ctx context.Context) error {
	_, err := p.doChat(ctx, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "ping"}}, MaxTokens: 1})
	return err
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: defaultAnthropicModel, SupportsChat: true}}, nil
}

func (p *AnthropicProvider) withResilience(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return retry.WithBackoff(ctx, p.retryCf, func() error {
		_, err := p.cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.WarnContext(ctx, "anthropic circuit breaker open", slog.String("state", p.cb.State().String()))
			return fmt.Errorf("anthropic: %w", entity.ErrProviderTransient)
		}
		return err
	})
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleSystem:
			continue // handled separately via params.System
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(block))
		default:
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func systemPrompt(messages []Message) string {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}
