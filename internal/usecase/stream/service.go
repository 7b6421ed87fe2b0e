// Package stream implements the streaming transformers (C11): turning an
// article into an incremental summarize or translate event sequence that
// the transport layer (SSE) relays to a consumer as it is produced.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/repository"
)

// EventType is the discriminator of one streamed event.
type EventType string

const (
	EventStart                 EventType = "start"
	EventConfig                EventType = "config"
	EventPhase                 EventType = "phase"
	EventContent               EventType = "content"
	EventTitleSummaryContent    EventType = "title_summary_content"
	EventContentTranslation     EventType = "content_translation"
	EventContentGroup           EventType = "content_group"
	EventComplete               EventType = "complete"
	EventError                  EventType = "error"
)

// Event is one entry in the ordered sequence a streaming transformer yields.
type Event struct {
	Type   EventType
	Fields map[string]any
}

// maxTranslationGroupLen is the paragraph-boundary split size for the
// translator's body phase
const maxTranslationGroupLen = 5000

const (
	chatMaxTokens   = 1500
	chatTemperature = 0.3
)

// Config holds the transformer's tunables.
type Config struct {
	ProviderType string // empty selects the registry default
	ChatModel    string
}

// Registry is the subset of llm.Registry the transformer depends on.
type Registry interface {
	CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error)
}

// Transformer orchestrates C11 atop ArticleRepository and the
// model-provider registry's streaming chat capability.
type Transformer struct {
	Articles repository.ArticleRepository
	Registry Registry
	Config   Config
}

// NewTransformer constructs a Transformer with the given dependencies.
func NewTransformer(articles repository.ArticleRepository, registry Registry, cfg Config) *Transformer {
	return &Transformer{Articles: articles, Registry: registry, Config: cfg}
}

// SummarizeArticleStream yields start → config → content* → complete, or
// start → ... → error, for articleID. Consumer disconnect (ctx cancellation)
// stops the generator; no partial output is persisted.
func (t *Transformer) SummarizeArticleStream(ctx context.Context, userID string, articleID int64) (<-chan Event, error) {
	article, err := t.Articles.Get(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("stream: get article %d: %w", articleID, err)
	}
	if article == nil {
		return nil, fmt.Errorf("stream: article %d: %w", articleID, entity.ErrNotFound)
	}

	provider, err := t.Registry.CreateProvider(ctx, t.Config.ProviderType, t.Config.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("stream: create chat provider: %w", err)
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		if !emit(ctx, out, Event{Type: EventStart, Fields: map[string]any{"user_id": userID, "article_id": articleID}}) {
			return
		}
		if !emit(ctx, out, Event{Type: EventConfig, Fields: map[string]any{"provider": provider.Name(), "model": t.Config.ChatModel}}) {
			return
		}

		source := article.Title + "\n" + article.Summary
		chunks, err := provider.ChatStream(ctx, llm.ChatRequest{
			Model:       t.Config.ChatModel,
			MaxTokens:   chatMaxTokens,
			Temperature: chatTemperature,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "Summarize the given article content concisely."},
				{Role: llm.RoleUser, Content: source},
			},
		})
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Fields: map[string]any{"message": err.Error()}})
			return
		}

		for chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if chunk.Delta != "" {
				if !emit(ctx, out, Event{Type: EventContent, Fields: map[string]any{"delta": chunk.Delta}}) {
					return
				}
			}
			if chunk.Done {
				emit(ctx, out, Event{Type: EventComplete, Fields: map[string]any{"finish_reason": chunk.FinishReason}})
				return
			}
		}
		emit(ctx, out, Event{Type: EventComplete, Fields: map[string]any{}})
	}()
	return out, nil
}

// TranslateArticleStream runs the two-phase translation flow:
// title+summary first, then the body split into ≤5000-char
// paragraph-boundary groups with a content_group event between groups.
func (t *Transformer) TranslateArticleStream(ctx context.Context, userID string, articleID int64) (<-chan Event, error) {
	article, err := t.Articles.Get(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("stream: get article %d: %w", articleID, err)
	}
	if article == nil {
		return nil, fmt.Errorf("stream: article %d: %w", articleID, entity.ErrNotFound)
	}

	provider, err := t.Registry.CreateProvider(ctx, t.Config.ProviderType, t.Config.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("stream: create chat provider: %w", err)
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		if !emit(ctx, out, Event{Type: EventStart, Fields: map[string]any{"user_id": userID, "article_id": articleID}}) {
			return
		}
		if !emit(ctx, out, Event{Type: EventConfig, Fields: map[string]any{"provider": provider.Name(), "model": t.Config.ChatModel}}) {
			return
		}

		if !emit(ctx, out, Event{Type: EventPhase, Fields: map[string]any{"phase": "title_summary"}}) {
			return
		}
		titleSummary, err := translateText(ctx, provider, t.Config.ChatModel, article.Title+"\n"+article.Summary)
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Fields: map[string]any{"message": err.Error()}})
			return
		}
		if !emit(ctx, out, Event{Type: EventTitleSummaryContent, Fields: map[string]any{"content": titleSummary}}) {
			return
		}

		if !emit(ctx, out, Event{Type: EventPhase, Fields: map[string]any{"phase": "body"}}) {
			return
		}
		groups := splitParagraphGroups(article.Summary, maxTranslationGroupLen)
		for i, group := range groups {
			translated, err := translateText(ctx, provider, t.Config.ChatModel, group)
			if err != nil {
				emit(ctx, out, Event{Type: EventError, Fields: map[string]any{"message": err.Error()}})
				return
			}
			if !emit(ctx, out, Event{Type: EventContentTranslation, Fields: map[string]any{"content": translated}}) {
				return
			}
			if i < len(groups)-1 {
				if !emit(ctx, out, Event{Type: EventContentGroup, Fields: map[string]any{"group_index": i}}) {
					return
				}
			}
		}

		emit(ctx, out, Event{Type: EventComplete, Fields: map[string]any{}})
	}()
	return out, nil
}

func translateText(ctx context.Context, provider llm.Provider, model, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:       model,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Translate the given text to English, preserving meaning and tone."},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// splitParagraphGroups splits text into groups at paragraph boundaries
// ("\n\n"), each at most maxLen runes.
func splitParagraphGroups(text string, maxLen int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var groups []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			groups = append(groups, current.String())
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(p)) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	if len(groups) == 0 {
		return []string{""}
	}
	return groups
}

// emit sends ev on out unless the context is already done, in which case
// the producer stops yielding and any partial output is discarded. Returns
// false when the caller should stop producing further events.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}
