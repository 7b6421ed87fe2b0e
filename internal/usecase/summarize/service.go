// Package summarize implements the summarization engine (C7): producing
// Chinese and English summaries in a single model call per article, and
// repairing summaries the upstream feed shipped that turn out to be bare
// "read more" links rather than actual content.
package summarize

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/repository"
	"github.com/ossfeed/coordinator/internal/utils/text"
)

const (
	minCleanTextLen  = 50
	maxSummaryLen    = 200
	chatMaxTokens    = 500
	chatTemperature  = 0.3
	truncationEllipsis = "…"
)

var (
	htmlTagRe       = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	nonTextRe       = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:，。！？；：、""''（）()\-]`)
	chineseLabelRe  = regexp.MustCompile(`中文摘要[：:]\s*(.+?)(?:\n|$|English Summary[：:])`)
	englishLabelRe  = regexp.MustCompile(`(?i)English Summary[：:]\s*(.+?)(?:\n|$)`)
	leadingJunkZh   = regexp.MustCompile(`^[^\p{Han}]+`)
	leadingJunkEn   = regexp.MustCompile(`^[^\p{L}]+`)

	// readerLinkPatterns catches summaries that are bare pointers back to the
	// original article rather than actual content.
	readerLinkPatterns = []*regexp.Regexp{
		regexp.MustCompile(`点击.{0,10}查看`),
		regexp.MustCompile(`查看.{0,10}原文`),
		regexp.MustCompile(`阅读.{0,10}原文`),
		regexp.MustCompile(`(?i)read more`),
		regexp.MustCompile(`(?i)click here`),
		regexp.MustCompile(`来源[:：]`),
	}

	purePunctuationRe = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)

	// sentenceBoundary matches a sentence-ending punctuation mark, used when
	// truncating to prefer stopping on a clean break.
	sentenceBoundaryRe = regexp.MustCompile(`[。！？.!?]`)
	clauseBoundaryRe   = regexp.MustCompile(`[，,；;、]`)
)

// IsInvalidSummary reports whether s should be treated as unusable: empty,
// too short, or matching one of the known reader-link anti-patterns.
func IsInvalidSummary(s string) bool {
	trimmed := strings.TrimSpace(s)
	if text.CountRunes(trimmed) < 10 {
		return true
	}
	if purePunctuationRe.MatchString(trimmed) {
		return true
	}
	for _, re := range readerLinkPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Config holds the engine's tunables.
type Config struct {
	ProviderType string // empty selects the registry default
	ChatModel    string // empty defers to the registry's resolved default
}

// Registry is the subset of llm.Registry the engine depends on.
type Registry interface {
	CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error)
}

// Engine orchestrates bilingual summarization atop ArticleRepository, the
// crawled-content store, and the model-provider registry.
type Engine struct {
	Articles        repository.ArticleRepository
	ArticleContents repository.ArticleContentRepository
	Registry        Registry
	Config          Config
	now             func() time.Time
}

// NewEngine constructs an Engine with the given dependencies and config.
func NewEngine(articles repository.ArticleRepository, contents repository.ArticleContentRepository, registry Registry, cfg Config) *Engine {
	return &Engine{Articles: articles, ArticleContents: contents, Registry: registry, Config: cfg, now: time.Now}
}

// cleanText strips tags, collapses whitespace, and drops characters outside
// basic alphanumeric/punctuation.
func cleanText(raw string) string {
	unescaped := html.UnescapeString(raw)
	stripped := htmlTagRe.ReplaceAllString(unescaped, " ")
	stripped = nonTextRe.ReplaceAllString(stripped, " ")
	stripped = whitespaceRe.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}

// BilingualSummary is the output of GenerateBilingualSummaryWithLLM. Either
// field may be nil if the model omitted it or it failed validation.
type BilingualSummary struct {
	Chinese *string
	English *string
}

// GenerateBilingualSummaryWithLLM produces Chinese and English summaries
// from a single chat completion call.
func (e *Engine) GenerateBilingualSummaryWithLLM(ctx context.Context, rawText string) (BilingualSummary, error) {
	cleaned := cleanText(rawText)
	if text.CountRunes(cleaned) < minCleanTextLen {
		return BilingualSummary{}, fmt.Errorf("%w: cleaned text too short to summarize (%d chars)", entity.ErrValidationFailed, text.CountRunes(cleaned))
	}

	provider, err := e.Registry.CreateProvider(ctx, e.Config.ProviderType, e.Config.ChatModel)
	if err != nil {
		return BilingualSummary{}, fmt.Errorf("create chat provider: %w", err)
	}

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:       e.Config.ChatModel,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summaryPrompt()},
			{Role: llm.RoleUser, Content: cleaned},
		},
	})
	if err != nil {
		return BilingualSummary{}, fmt.Errorf("chat completion: %w", err)
	}

	chinese, english := parseBilingualResponse(resp.Message.Content)

	var result BilingualSummary
	if chinese != "" && !IsInvalidSummary(chinese) {
		truncated := truncateSummary(chinese)
		result.Chinese = &truncated
	}
	if english != "" && !IsInvalidSummary(english) {
		truncated := truncateSummary(english)
		result.English = &truncated
	}
	return result, nil
}

func summaryPrompt() string {
	return "You are a bilingual summarization assistant. Given an article's text, " +
		"produce two independent summaries, each at most 200 characters: " +
		"one in Chinese labeled exactly \"中文摘要：\" and one in English labeled exactly " +
		"\"English Summary：\". Each summary must describe the article's actual content. " +
		"Never produce a summary that only points the reader back to the original article " +
		"(no \"click here\", \"read more\", \"查看原文\", \"阅读原文\", or bare source attributions)."
}

// parseBilingualResponse extracts the labeled blocks via regex, falling
// back to a line-based split when the labels are present but not matched
// cleanly by the primary pattern.
func parseBilingualResponse(content string) (chinese, english string) {
	if m := chineseLabelRe.FindStringSubmatch(content); len(m) == 2 {
		chinese = strings.TrimSpace(m[1])
	}
	if m := englishLabelRe.FindStringSubmatch(content); len(m) == 2 {
		english = strings.TrimSpace(m[1])
	}

	if chinese == "" || english == "" {
		for _, line := range strings.Split(content, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case chinese == "" && strings.Contains(line, "中文摘要"):
				chinese = strings.TrimSpace(lastField(line))
			case english == "" && strings.Contains(strings.ToLower(line), "english summary"):
				english = strings.TrimSpace(lastField(line))
			}
		}
	}

	chinese = leadingJunkZh.ReplaceAllString(chinese, "")
	english = leadingJunkEn.ReplaceAllString(english, "")
	return chinese, english
}

// truncateSummary enforces the ≤200-char cap, preferring
// a sentence boundary in the last 30% of the text, then a clause boundary in
// the last 20%, then a hard cut with an ellipsis.
func truncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSummaryLen {
		return s
	}

	window := runes[:maxSummaryLen]
	tail30 := runes[maxSummaryLen-maxSummaryLen*30/100 : maxSummaryLen]
	if idx := lastMatchIndex(sentenceBoundaryRe, string(tail30)); idx >= 0 {
		cut := maxSummaryLen - maxSummaryLen*30/100 + idx + 1
		return string(runes[:cut])
	}

	tail20 := runes[maxSummaryLen-maxSummaryLen*20/100 : maxSummaryLen]
	if idx := lastMatchIndex(clauseBoundaryRe, string(tail20)); idx >= 0 {
		cut := maxSummaryLen - maxSummaryLen*20/100 + idx + 1
		return string(runes[:cut])
	}

	return string(window) + truncationEllipsis
}

// lastField returns the text after the last ':'/'：' label separator on a
// line, or the whole line if neither is present.
func lastField(line string) string {
	sep := "："
	idx := strings.LastIndex(line, sep)
	if idx < 0 {
		sep = ":"
		idx = strings.LastIndex(line, sep)
	}
	if idx < 0 {
		return line
	}
	return line[idx+len(sep):]
}

func lastMatchIndex(re *regexp.Regexp, s string) int {
	matches := re.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return -1
	}
	last := matches[len(matches)-1]
	return len([]rune(s[:last[0]]))
}

// GenerateArticleSummaries reads an article's crawled text content,
// generates bilingual summaries, and applies the overwrite policy: write
// back whichever summaries were produced, null out an existing summary
// field that fails the invalid-summary check, and require at least one
// non-null output or report failure. An article that has not been crawled
// yet (no content_id) cannot be summarized.
func (e *Engine) GenerateArticleSummaries(ctx context.Context, articleID int64) error {
	article, err := e.Articles.Get(ctx, articleID)
	if err != nil {
		return fmt.Errorf("summarize: get article %d: %w", articleID, err)
	}
	if article == nil {
		return fmt.Errorf("summarize: article %d: %w", articleID, entity.ErrNotFound)
	}
	if article.ContentID == nil {
		return fmt.Errorf("summarize: article %d has no crawled content: %w", articleID, entity.ErrValidationFailed)
	}

	content, err := e.ArticleContents.Get(ctx, *article.ContentID)
	if err != nil {
		return fmt.Errorf("summarize: get content %d for article %d: %w", *article.ContentID, articleID, err)
	}
	if content == nil {
		return fmt.Errorf("summarize: content %d for article %d: %w", *article.ContentID, articleID, entity.ErrNotFound)
	}

	result, err := e.GenerateBilingualSummaryWithLLM(ctx, content.TextContent)
	if err != nil {
		return fmt.Errorf("summarize: article %d: %w", articleID, err)
	}

	if result.Chinese == nil && result.English == nil {
		return fmt.Errorf("summarize: article %d: %w: no valid summary produced", articleID, entity.ErrProviderFatal)
	}

	clearSummary := article.Summary != "" && IsInvalidSummary(article.Summary)
	if err := e.Articles.UpdateSummaries(ctx, articleID, result.Chinese, result.English, clearSummary); err != nil {
		return fmt.Errorf("summarize: write back article %d: %w", articleID, err)
	}
	return nil
}

// ProcessingStepUpdate is the optional payload accompanying a step recorder
// report; ContentID is only consulted for a successful content_saved step.
type ProcessingStepUpdate struct {
	ContentID *int64
}

// UpdateArticleProcessingStep records coarse external-worker progress for
// one stage of the article's processing pipeline: content_saved success
// sets status=ok, writes content_id, and clears the crawl lease;
// summary_generated success carries nothing to persist on its own (the
// summary fields themselves are written by GenerateArticleSummaries); a
// failure on either step clears the lease and sets status=failed with
// error_message. The vectorization stage instead updates
// vectorization_status via UpdateVectorResult.
func (e *Engine) UpdateArticleProcessingStep(ctx context.Context, articleID int64, step string, ok bool, errMessage string, update ProcessingStepUpdate) error {
	switch step {
	case "content_saved":
		result := repository.ProcessingStepResult{Step: step, OK: ok, ErrorMessage: errMessage, ContentID: update.ContentID, Now: e.now()}
		if err := e.Articles.ApplyProcessingStep(ctx, articleID, result); err != nil {
			return fmt.Errorf("summarize: record content_saved step for article %d: %w", articleID, err)
		}
		return nil
	case "summary_generated":
		if ok {
			return nil
		}
		result := repository.ProcessingStepResult{Step: step, OK: false, ErrorMessage: errMessage, Now: e.now()}
		if err := e.Articles.ApplyProcessingStep(ctx, articleID, result); err != nil {
			return fmt.Errorf("summarize: record summary_generated step for article %d: %w", articleID, err)
		}
		return nil
	case "vectorized":
		now := e.now()
		result := repository.VectorResult{OK: ok, Now: now}
		if !ok {
			result.ErrorMessage = errMessage
		}
		if err := e.Articles.UpdateVectorResult(ctx, articleID, result); err != nil {
			return fmt.Errorf("summarize: record vectorized step for article %d: %w", articleID, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown processing step %q", entity.ErrValidationFailed, step)
	}
}
