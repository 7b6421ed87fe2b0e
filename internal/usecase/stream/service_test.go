package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/repository"
)

type fakeArticleRepo struct {
	byID map[int64]*entity.Article
}

func (r *fakeArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	return r.byID[id], nil
}
func (r *fakeArticleRepo) GetByLink(ctx context.Context, feedID, link string) (*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.Article], error) {
	return repository.Page[*entity.Article]{}, nil
}
func (r *fakeArticleRepo) InsertBatchDeduped(ctx context.Context, feedID string, entries []entity.NewArticleInput) (int, error) {
	return 0, nil
}
func (r *fakeArticleRepo) PendingArticles(ctx context.Context, limit int) ([]*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) ClaimArticle(ctx context.Context, articleID int64, crawlerID string, now time.Time) (*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) SubmitCrawlResult(ctx context.Context, result repository.CrawlResult) (*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) ResetArticle(ctx context.Context, articleID int64) error { return nil }
func (r *fakeArticleRepo) PendingVectorization(ctx context.Context, limit int) ([]*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) ClaimVectorization(ctx context.Context, articleID int64) (*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) UpdateVectorResult(ctx context.Context, articleID int64, result repository.VectorResult) error {
	return nil
}
func (r *fakeArticleRepo) UpdateSummaries(ctx context.Context, articleID int64, chinese, english *string, clearSummary bool) error {
	return nil
}
func (r *fakeArticleRepo) ArticlesForDigest(ctx context.Context, feedID string, from, to time.Time) ([]*entity.Article, error) {
	return nil, nil
}
func (r *fakeArticleRepo) FeedsWithOKArticlesOn(ctx context.Context, from, to time.Time) ([]string, error) {
	return nil, nil
}
func (r *fakeArticleRepo) VectorizationStats(ctx context.Context) (map[entity.VectorizationStatus]int64, error) {
	return nil, nil
}

func (r *fakeArticleRepo) ApplyProcessingStep(ctx context.Context, articleID int64, result repository.ProcessingStepResult) error {
	return nil
}

var _ repository.ArticleRepository = (*fakeArticleRepo)(nil)

type fakeProvider struct {
	chatContent string
	chunks      []llm.ChatChunk
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Message: llm.Message{Content: p.chatContent}}, nil
}
func (p *fakeProvider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.ChatChunk, error) {
	out := make(chan llm.ChatChunk, len(p.chunks))
	for _, c := range p.chunks {
		out <- c
	}
	close(out)
	return out, nil
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

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestTransformer_SummarizeArticleStream_NotFound(t *testing.T) {
	articles := &fakeArticleRepo{byID: map[int64]*entity.Article{}}
	tr := NewTransformer(articles, &fakeRegistry{provider: &fakeProvider{}}, Config{})

	_, err := tr.SummarizeArticleStream(context.Background(), "u1", 99)
	require.Error(t, err)
}

func TestTransformer_SummarizeArticleStream_EmitsStartConfigContentComplete(t *testing.T) {
	articles := &fakeArticleRepo{byID: map[int64]*entity.Article{
		1: {ID: 1, Title: "Title", Summary: "Body text"},
	}}
	provider := &fakeProvider{chunks: []llm.ChatChunk{
		{Delta: "hello "},
		{Delta: "world", Done: true, FinishReason: "stop"},
	}}
	tr := NewTransformer(articles, &fakeRegistry{provider: provider}, Config{ChatModel: "test-model"})

	ch, err := tr.SummarizeArticleStream(context.Background(), "u1", 1)
	require.NoError(t, err)
	events := drain(t, ch)

	require.GreaterOrEqual(t, len(events), 4)
	assert.Equal(t, EventStart, events[0].Type)
	assert.Equal(t, EventConfig, events[1].Type)
	assert.Equal(t, EventContent, events[2].Type)
	assert.Equal(t, "hello ", events[2].Fields["delta"])
	assert.Equal(t, EventContent, events[3].Type)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestTransformer_SummarizeArticleStream_ContextCancelledStopsEarly(t *testing.T) {
	articles := &fakeArticleRepo{byID: map[int64]*entity.Article{
		1: {ID: 1, Title: "Title", Summary: "Body"},
	}}
	provider := &fakeProvider{chunks: []llm.ChatChunk{{Delta: "x", Done: true}}}
	tr := NewTransformer(articles, &fakeRegistry{provider: provider}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch, err := tr.SummarizeArticleStream(ctx, "u1", 1)
	require.NoError(t, err)

	events := drain(t, ch)
	assert.Len(t, events, 0)
}

func TestTransformer_TranslateArticleStream_TwoPhaseSequence(t *testing.T) {
	articles := &fakeArticleRepo{byID: map[int64]*entity.Article{
		1: {ID: 1, Title: "T", Summary: "Paragraph one.\n\nParagraph two."},
	}}
	provider := &fakeProvider{chatContent: "translated"}
	tr := NewTransformer(articles, &fakeRegistry{provider: provider}, Config{})

	ch, err := tr.TranslateArticleStream(context.Background(), "u1", 1)
	require.NoError(t, err)
	events := drain(t, ch)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, EventTitleSummaryContent)
	assert.Contains(t, types, EventContentTranslation)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestSplitParagraphGroups_RespectsMaxLenAtParagraphBoundary(t *testing.T) {
	long := strings.Repeat("a", 3000)
	text := long + "\n\n" + long + "\n\n" + long
	groups := splitParagraphGroups(text, 5000)

	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.LessOrEqual(t, len([]rune(g)), 5000+2)
	}
}

func TestSplitParagraphGroups_EmptyTextYieldsSingleEmptyGroup(t *testing.T) {
	groups := splitParagraphGroups("", 5000)
	require.Len(t, groups, 1)
	assert.Equal(t, "", groups[0])
}
