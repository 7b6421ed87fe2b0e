package hottopic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
)

type fakeRawRepo struct {
	topics []*entity.RawHotTopic
}

func (r *fakeRawRepo) ForDate(ctx context.Context, date time.Time) ([]*entity.RawHotTopic, error) {
	return r.topics, nil
}

type fakeUnifiedRepo struct {
	replacedDate   time.Time
	replacedTopics []*entity.UnifiedHotTopic
}

func (r *fakeUnifiedRepo) ReplaceForDate(ctx context.Context, date time.Time, topics []*entity.UnifiedHotTopic) error {
	r.replacedDate = date
	r.replacedTopics = topics
	return nil
}
func (r *fakeUnifiedRepo) ForDate(ctx context.Context, date time.Time) ([]*entity.UnifiedHotTopic, error) {
	return r.replacedTopics, nil
}

type fakeProvider struct {
	content string
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Message: llm.Message{Content: p.content}}, nil
}
func (p *fakeProvider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	return nil, nil
}
func (p *fakeProvider) Embed(ctx context.Context, req llm.EmbedRequest) (llm.EmbedResponse, error) {
	return llm.EmbedResponse{}, nil
}
func (p *fakeProvider) CountTokens(ctx context.Context, text string) (int, error) { return 0, nil }
func (p *fakeProvider) Health(ctx context.Context) error                         { return nil }
func (p *fakeProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error)  { return nil, nil }

type fakeRegistry struct {
	provider llm.Provider
}

func (r *fakeRegistry) CreateProvider(ctx context.Context, providerType, model string) (llm.Provider, error) {
	return r.provider, nil
}

func TestStableHash_IgnoresCaseAndPunctuation(t *testing.T) {
	a := stableHash("weibo", "Big Event Happens!")
	b := stableHash("weibo", "big event happens")
	assert.Equal(t, a, b)
}

func TestStableHash_DifferentPlatformDiffers(t *testing.T) {
	a := stableHash("weibo", "same title")
	b := stableHash("douyin", "same title")
	assert.NotEqual(t, a, b)
}

func TestAggregator_AggregateDate_EmptyInputClearsDate(t *testing.T) {
	unified := &fakeUnifiedRepo{}
	agg := NewAggregator(&fakeRawRepo{}, unified, &fakeRegistry{}, Config{})

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	topics, err := agg.AggregateDate(context.Background(), date)
	require.NoError(t, err)
	assert.Nil(t, topics)
	assert.Equal(t, date, unified.replacedDate)
	assert.Nil(t, unified.replacedTopics)
}

func TestAggregator_AggregateDate_GroupsAndMapsCategory(t *testing.T) {
	t1 := &entity.RawHotTopic{ID: 1, Platform: "weibo", Title: "AI breakthrough announced", Description: "details", URL: "https://a.example"}
	t2 := &entity.RawHotTopic{ID: 2, Platform: "douyin", Title: "AI Breakthrough Announced!", Description: "more details", URL: "https://b.example"}
	hash1 := stableHash(t1.Platform, t1.Title)
	hash2 := stableHash(t2.Platform, t2.Title)

	raw := &fakeRawRepo{topics: []*entity.RawHotTopic{t1, t2}}
	unified := &fakeUnifiedRepo{}
	content := `[{"title":"AI突破","summary":"两家平台报道AI重大突破","keywords":["AI"],"category":"科技","related_topic_ids":["` + hash1 + `","` + hash2 + `"]}]`
	registry := &fakeRegistry{provider: &fakeProvider{content: content}}
	agg := NewAggregator(raw, unified, registry, Config{})

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	topics, err := agg.AggregateDate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, entity.CategoryTechnology, topics[0].Category)
	assert.ElementsMatch(t, []string{"weibo", "douyin"}, topics[0].SourcePlatforms)
	assert.Equal(t, "https://a.example", topics[0].RepresentativeURL)
	assert.Equal(t, 2, topics[0].TopicCount)
}

func TestAggregator_AggregateDate_UnknownCategoryFallsBackToOther(t *testing.T) {
	t1 := &entity.RawHotTopic{ID: 1, Platform: "weibo", Title: "Mystery event", URL: "https://a.example"}
	hash1 := stableHash(t1.Platform, t1.Title)
	raw := &fakeRawRepo{topics: []*entity.RawHotTopic{t1}}
	unified := &fakeUnifiedRepo{}
	content := `[{"title":"未知","summary":"未知分类事件","keywords":[],"category":"不存在的分类","related_topic_ids":["` + hash1 + `"]}]`
	registry := &fakeRegistry{provider: &fakeProvider{content: content}}
	agg := NewAggregator(raw, unified, registry, Config{})

	topics, err := agg.AggregateDate(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, entity.CategoryOther, topics[0].Category)
}

func TestParseGroups_RepairsTruncatedArray(t *testing.T) {
	truncated := `[{"title":"A","summary":"B","keywords":["x"],"category":"科技","related_topic_ids":["h1"]},{"title":"incomple`
	groups, err := parseGroups(truncated)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "A", groups[0].Title)
}

func TestParseGroups_UnwrapsFencedBlock(t *testing.T) {
	fenced := "```json\n[{\"title\":\"A\",\"summary\":\"B\",\"keywords\":[],\"category\":\"科技\",\"related_topic_ids\":[]}]\n```"
	groups, err := parseGroups(fenced)
	require.NoError(t, err)
	require.Len(t, groups, 1)
}
