// Package digest implements the daily-digest engine (C8): a per-feed,
// per-day, per-language summary of that day's articles.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/repository"
)

const (
	maxArticleEntryLen = 500
	chatMaxTokens      = 1200
	chatTemperature    = 0.4
)

// Config holds the engine's tunables.
type Config struct {
	ProviderType string // empty selects the registry default
	ChatModel    string
}

// Registry is the subset of llm.Registry the engine depends on.
type Registry interface {
	CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error)
}

// Service orchestrates C8 atop ArticleRepository, DailySummaryRepository,
// FeedRepository, and the model-provider registry.
type Service struct {
	Articles  repository.ArticleRepository
	Summaries repository.DailySummaryRepository
	Feeds     repository.FeedRepository
	Registry  Registry
	Config    Config
}

// NewService constructs a Service with the given dependencies and config.
func NewService(articles repository.ArticleRepository, summaries repository.DailySummaryRepository, feeds repository.FeedRepository, registry Registry, cfg Config) *Service {
	return &Service{Articles: articles, Summaries: summaries, Feeds: feeds, Registry: registry, Config: cfg}
}

// GetFeedsNeedingSummary returns the feeds that had at least one status=ok
// article published on date and do not yet have a DailySummary row for
// (feedID, date, language).
func (s *Service) GetFeedsNeedingSummary(ctx context.Context, date time.Time, language entity.Language) ([]string, error) {
	from, to := dayBounds(date)
	feedIDs, err := s.Articles.FeedsWithOKArticlesOn(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("digest: feeds with ok articles on %s: %w", date.Format("2006-01-02"), err)
	}

	var pending []string
	for _, feedID := range feedIDs {
		existing, err := s.Summaries.Get(ctx, feedID, date, language)
		if err != nil {
			return nil, fmt.Errorf("digest: check existing summary for feed %s: %w", feedID, err)
		}
		if existing == nil {
			pending = append(pending, feedID)
		}
	}
	return pending, nil
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	to := time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, int(999*time.Millisecond), date.Location())
	return from, to
}

type digestResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GenerateFeedSummary runs the full prompt-and-persist flow.
// Re-running for an existing (feedID, date, language) key is a no-op that
// returns the existing row.
func (s *Service) GenerateFeedSummary(ctx context.Context, feedID string, date time.Time, language entity.Language) (*entity.DailySummary, error) {
	if existing, err := s.Summaries.Get(ctx, feedID, date, language); err != nil {
		return nil, fmt.Errorf("digest: check existing summary for feed %s: %w", feedID, err)
	} else if existing != nil {
		return existing, nil
	}

	feed, err := s.Feeds.Get(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("digest: get feed %s: %w", feedID, err)
	}
	if feed == nil {
		return nil, fmt.Errorf("digest: feed %s: %w", feedID, entity.ErrNotFound)
	}

	from, to := dayBounds(date)
	articles, err := s.Articles.ArticlesForDigest(ctx, feedID, from, to)
	if err != nil {
		return nil, fmt.Errorf("digest: articles for feed %s: %w", feedID, err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("digest: feed %s has no ok articles on %s: %w", feedID, date.Format("2006-01-02"), entity.ErrValidationFailed)
	}

	provider, err := s.Registry.CreateProvider(ctx, s.Config.ProviderType, s.Config.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("digest: create chat provider: %w", err)
	}

	prompt := buildDigestPrompt(feed, articles)
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:       s.Config.ChatModel,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: digestSystemPrompt(language)},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("digest: chat completion for feed %s: %w", feedID, err)
	}

	title, content := parseDigestResponse(resp.Message.Content, feed.Title)

	articleIDs := make([]int64, len(articles))
	for i, a := range articles {
		articleIDs[i] = a.ID
	}

	summary := &entity.DailySummary{
		FeedID:               feedID,
		SummaryDate:          date,
		Language:             language,
		SummaryTitle:         title,
		SummaryContent:       content,
		ArticleCount:         len(articles),
		ArticleIDs:           articleIDs,
		LLMProvider:          provider.Name(),
		LLMModel:             resp.Model,
		GenerationCostTokens: resp.Usage.TotalTokens,
		Status:               entity.DigestStatusOK,
	}

	if err := s.Summaries.Create(ctx, summary); err != nil {
		if existing, gerr := s.Summaries.Get(ctx, feedID, date, language); gerr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("digest: create summary for feed %s: %w", feedID, err)
	}
	return summary, nil
}

func digestSystemPrompt(language entity.Language) string {
	switch language {
	case entity.LanguageEnglish:
		return "You write concise 200-300 word daily digests in English summarizing the given feed's articles for one day. " +
			"Respond with a strict JSON object: {\"title\": string, \"content\": string}."
	default:
		return "你负责为给定信息源生成当天的中文每日摘要，正文控制在200到300字。" +
			"请严格以JSON格式回复：{\"title\": 字符串, \"content\": 字符串}。"
	}
}

func buildDigestPrompt(feed *entity.Feed, articles []*entity.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feed: %s\n", feed.Title)
	if feed.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", feed.Description)
	}
	b.WriteString("Articles:\n")
	for i, a := range articles {
		entry := longestOf(a)
		if len([]rune(entry)) > maxArticleEntryLen {
			entry = string([]rune(entry)[:maxArticleEntryLen])
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, entry)
	}
	return b.String()
}

// longestOf picks whichever of {generated_summary, summary, title} is
// longest.
func longestOf(a *entity.Article) string {
	candidates := []string{a.Title, a.Summary}
	if a.ChineseSummary != nil {
		candidates = append(candidates, *a.ChineseSummary)
	}
	if a.EnglishSummary != nil {
		candidates = append(candidates, *a.EnglishSummary)
	}

	best := ""
	for _, c := range candidates {
		if len([]rune(c)) > len([]rune(best)) {
			best = c
		}
	}
	return best
}

// parseDigestResponse parses the model's JSON {title, content} reply,
// falling back to the raw text with a default title when it isn't valid
// JSON.
func parseDigestResponse(raw, feedTitle string) (title, content string) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed digestResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Content != "" {
		if parsed.Title == "" {
			parsed.Title = defaultDigestTitle(feedTitle)
		}
		return parsed.Title, parsed.Content
	}

	return defaultDigestTitle(feedTitle), raw
}

func defaultDigestTitle(feedTitle string) string {
	return feedTitle + " 每日摘要"
}
