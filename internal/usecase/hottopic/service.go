// Package hottopic implements the hot-topic aggregator (C9): clustering
// raw per-platform "hot topic" rows for a given date into roughly ten
// unified groups via a single model call.
package hottopic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/repository"
)

const (
	descriptionPreviewLen = 50
	chatMaxTokens         = 6000
	chatTemperature       = 0.2
)

// categoryLabels maps the Chinese category labels the prompt asks the model
// to choose from onto the sixteen canonical codes.
var categoryLabels = map[string]entity.HotTopicCategory{
	"科技": entity.CategoryTechnology,
	"财经": entity.CategoryFinance,
	"娱乐": entity.CategoryEntertainment,
	"体育": entity.CategorySports,
	"时政": entity.CategoryPolitics,
	"社会": entity.CategorySociety,
	"科学": entity.CategoryScience,
	"健康": entity.CategoryHealth,
	"教育": entity.CategoryEducation,
	"军事": entity.CategoryMilitary,
	"国际": entity.CategoryWorld,
	"游戏": entity.CategoryGaming,
	"汽车": entity.CategoryAutomobile,
	"生活": entity.CategoryLifestyle,
	"文化": entity.CategoryCulture,
	"其他": entity.CategoryOther,
}

var nonAlnumRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// stableHash computes the platform+normalized-title hash used as a raw
// topic's local identifier inside the clustering prompt, so the model's
// related_topic_ids can be mapped back without round-tripping database ids.
func stableHash(platform, title string) string {
	normalized := strings.ToLower(nonAlnumRe.ReplaceAllString(title, ""))
	sum := sha256.Sum256([]byte(platform + ":" + normalized))
	return hex.EncodeToString(sum[:])
}

// Config holds the aggregator's tunables.
type Config struct {
	ProviderType string // empty selects the registry default
	ChatModel    string
}

// Registry is the subset of llm.Registry the aggregator depends on.
type Registry interface {
	CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error)
}

// Aggregator orchestrates C9 atop RawHotTopicRepository,
// UnifiedHotTopicRepository, and the model-provider registry.
type Aggregator struct {
	Raw      repository.RawHotTopicRepository
	Unified  repository.UnifiedHotTopicRepository
	Registry Registry
	Config   Config
}

// NewAggregator constructs an Aggregator with the given dependencies.
func NewAggregator(raw repository.RawHotTopicRepository, unified repository.UnifiedHotTopicRepository, registry Registry, cfg Config) *Aggregator {
	return &Aggregator{Raw: raw, Unified: unified, Registry: registry, Config: cfg}
}

type promptTopic struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type modelGroup struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Keywords         []string `json:"keywords"`
	Category         string   `json:"category"`
	RelatedTopicIDs  []string `json:"related_topic_ids"`
}

// AggregateDate runs the full cluster-and-replace flow for one
// date. An empty raw-topic set is a no-op: ReplaceForDate is still called
// with zero topics so a prior day's stale clustering is cleared.
func (a *Aggregator) AggregateDate(ctx context.Context, date time.Time) ([]*entity.UnifiedHotTopic, error) {
	raw, err := a.Raw.ForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("hottopic: raw topics for %s: %w", date.Format("2006-01-02"), err)
	}
	if len(raw) == 0 {
		if err := a.Unified.ReplaceForDate(ctx, date, nil); err != nil {
			return nil, fmt.Errorf("hottopic: clear date %s: %w", date.Format("2006-01-02"), err)
		}
		return nil, nil
	}

	hashToTopic := make(map[string]*entity.RawHotTopic, len(raw))
	prompts := make([]promptTopic, len(raw))
	for i, t := range raw {
		h := stableHash(t.Platform, t.Title)
		hashToTopic[h] = t
		desc := t.Description
		if len([]rune(desc)) > descriptionPreviewLen {
			desc = string([]rune(desc)[:descriptionPreviewLen])
		}
		prompts[i] = promptTopic{ID: h, Platform: t.Platform, Title: t.Title, Description: desc}
	}

	payload, err := json.Marshal(prompts)
	if err != nil {
		return nil, fmt.Errorf("hottopic: marshal prompt topics: %w", err)
	}

	provider, err := a.Registry.CreateProvider(ctx, a.Config.ProviderType, a.Config.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("hottopic: create chat provider: %w", err)
	}

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:       a.Config.ChatModel,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: clusteringPrompt()},
			{Role: llm.RoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hottopic: chat completion: %w", err)
	}

	groups, err := parseGroups(resp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("hottopic: parse model response: %w", err)
	}

	unified := make([]*entity.UnifiedHotTopic, 0, len(groups))
	for _, g := range groups {
		topic := buildUnifiedTopic(date, g, hashToTopic)
		if topic == nil {
			continue
		}
		unified = append(unified, topic)
	}

	if err := a.Unified.ReplaceForDate(ctx, date, unified); err != nil {
		return nil, fmt.Errorf("hottopic: replace topics for %s: %w", date.Format("2006-01-02"), err)
	}
	return unified, nil
}

func clusteringPrompt() string {
	return "You cluster a day's hot-topic items from multiple platforms into roughly 10 groups. " +
		"Group items describing the same core event together; each group must draw from at least 2 " +
		"different platforms where possible. For each group produce: a title of at most 30 characters, " +
		"a summary of at most 60 characters, 1-2 keyword phrases, a category chosen from " +
		"科技/财经/娱乐/体育/时政/社会/科学/健康/教育/军事/国际/游戏/汽车/生活/文化/其他, and the list of " +
		"input item ids that belong to the group. Respond with a strict JSON array of objects shaped " +
		"{title, summary, keywords, category, related_topic_ids}."
}

// buildUnifiedTopic maps one model-produced group back onto source rows,
// picking a representative URL from the first referenced topic.
func buildUnifiedTopic(date time.Time, g modelGroup, hashToTopic map[string]*entity.RawHotTopic) *entity.UnifiedHotTopic {
	var platforms []string
	seenPlatform := make(map[string]bool)
	var representativeURL string

	for _, id := range g.RelatedTopicIDs {
		t, ok := hashToTopic[id]
		if !ok {
			continue
		}
		if representativeURL == "" {
			representativeURL = t.URL
		}
		if !seenPlatform[t.Platform] {
			seenPlatform[t.Platform] = true
			platforms = append(platforms, t.Platform)
		}
	}
	if len(platforms) == 0 {
		return nil
	}

	return &entity.UnifiedHotTopic{
		TopicDate:          date,
		UnifiedTitle:       g.Title,
		UnifiedSummary:     g.Summary,
		Keywords:           g.Keywords,
		Category:           mapCategory(g.Category),
		RelatedTopicHashes: g.RelatedTopicIDs,
		SourcePlatforms:    platforms,
		TopicCount:         len(g.RelatedTopicIDs),
		RepresentativeURL:  representativeURL,
	}
}

func mapCategory(label string) entity.HotTopicCategory {
	if c, ok := categoryLabels[strings.TrimSpace(label)]; ok {
		return c
	}
	return entity.CategoryOther
}

// parseGroups unwraps an optional fenced code block and, if the response
// was truncated mid-array, repairs it by trimming to the last complete
// object and closing the array.
func parseGroups(content string) ([]modelGroup, error) {
	cleaned := unwrapFence(content)

	var groups []modelGroup
	if err := json.Unmarshal([]byte(cleaned), &groups); err == nil {
		return groups, nil
	}

	repaired := repairTruncatedArray(cleaned)
	if err := json.Unmarshal([]byte(repaired), &groups); err != nil {
		return nil, fmt.Errorf("unparseable even after truncation repair: %w", err)
	}
	return groups, nil
}

func unwrapFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// repairTruncatedArray keeps everything up to the last complete `}` and
// closes the array, discarding a partially-streamed trailing object.
func repairTruncatedArray(s string) string {
	idx := strings.LastIndex(s, "}")
	if idx < 0 {
		return "[]"
	}
	return s[:idx+1] + "]"
}
