package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/infra/llm"
	"github.com/ossfeed/coordinator/internal/repository"
)

type fakeArticleRepo struct {
	feedIDs  []string
	articles []*entity.Article
}

func (r *fakeArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) { return nil, nil }
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
	return r.articles, nil
}
func (r *fakeArticleRepo) FeedsWithOKArticlesOn(ctx context.Context, from, to time.Time) ([]string, error) {
	return r.feedIDs, nil
}
func (r *fakeArticleRepo) VectorizationStats(ctx context.Context) (map[entity.VectorizationStatus]int64, error) {
	return nil, nil
}

func (r *fakeArticleRepo) ApplyProcessingStep(ctx context.Context, articleID int64, result repository.ProcessingStepResult) error {
	return nil
}

var _ repository.ArticleRepository = (*fakeArticleRepo)(nil)

type fakeSummaryRepo struct {
	existing map[string]*entity.DailySummary
	created  *entity.DailySummary
	createErr error
}

func key(feedID string, date time.Time, language entity.Language) string {
	return feedID + "|" + date.Format("2006-01-02") + "|" + string(language)
}

func (r *fakeSummaryRepo) Get(ctx context.Context, feedID string, date time.Time, language entity.Language) (*entity.DailySummary, error) {
	if r.existing == nil {
		return nil, nil
	}
	return r.existing[key(feedID, date, language)], nil
}
func (r *fakeSummaryRepo) Create(ctx context.Context, summary *entity.DailySummary) error {
	r.created = summary
	return r.createErr
}
func (r *fakeSummaryRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.DailySummary], error) {
	return repository.Page[*entity.DailySummary]{}, nil
}

var _ repository.DailySummaryRepository = (*fakeSummaryRepo)(nil)

type fakeFeedRepo struct {
	feed *entity.Feed
}

func (r *fakeFeedRepo) Get(ctx context.Context, id string) (*entity.Feed, error) { return r.feed, nil }
func (r *fakeFeedRepo) Create(ctx context.Context, feed *entity.Feed) error       { return nil }
func (r *fakeFeedRepo) Update(ctx context.Context, feed *entity.Feed) error       { return nil }
func (r *fakeFeedRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.Feed], error) {
	return repository.Page[*entity.Feed]{}, nil
}
func (r *fakeFeedRepo) PendingFeeds(ctx context.Context, params repository.PendingFeedsParams) ([]*entity.Feed, error) {
	return nil, nil
}
func (r *fakeFeedRepo) AutoDisableFailedFeeds(ctx context.Context, threshold int) (int, error) {
	return 0, nil
}
func (r *fakeFeedRepo) ClaimFeed(ctx context.Context, feedID, crawlerID string, leaseTimeout time.Duration, now time.Time) (*entity.Feed, error) {
	return nil, nil
}
func (r *fakeFeedRepo) SubmitSyncResult(ctx context.Context, result repository.SyncResult) (repository.SubmitSyncResultOutcome, error) {
	return repository.SubmitSyncResultOutcome{}, nil
}
func (r *fakeFeedRepo) ResetFailures(ctx context.Context, feedID string, reactivate bool) error {
	return nil
}
func (r *fakeFeedRepo) Stats(ctx context.Context) (repository.FeedSyncStats, error) {
	return repository.FeedSyncStats{}, nil
}

var _ repository.FeedRepository = (*fakeFeedRepo)(nil)

type fakeProvider struct {
	content string
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Message: llm.Message{Content: p.content}, Model: "fake-model"}, nil
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

func TestService_GetFeedsNeedingSummary_SkipsExisting(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	articles := &fakeArticleRepo{feedIDs: []string{"f1", "f2"}}
	summaries := &fakeSummaryRepo{existing: map[string]*entity.DailySummary{
		key("f1", date, entity.LanguageChinese): {ID: 1},
	}}
	svc := NewService(articles, summaries, &fakeFeedRepo{}, &fakeRegistry{}, Config{})

	pending, err := svc.GetFeedsNeedingSummary(context.Background(), date, entity.LanguageChinese)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2"}, pending)
}

func TestService_GenerateFeedSummary_NoopOnExisting(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	existing := &entity.DailySummary{ID: 7, FeedID: "f1"}
	summaries := &fakeSummaryRepo{existing: map[string]*entity.DailySummary{
		key("f1", date, entity.LanguageChinese): existing,
	}}
	svc := NewService(&fakeArticleRepo{}, summaries, &fakeFeedRepo{}, &fakeRegistry{}, Config{})

	result, err := svc.GenerateFeedSummary(context.Background(), "f1", date, entity.LanguageChinese)
	require.NoError(t, err)
	assert.Same(t, existing, result)
}

func TestService_GenerateFeedSummary_ParsesJSONResponse(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	summaries := &fakeSummaryRepo{}
	feeds := &fakeFeedRepo{feed: &entity.Feed{ID: "f1", Title: "Tech Daily"}}
	articles := &fakeArticleRepo{articles: []*entity.Article{
		{ID: 1, Title: "Article one", Summary: "Summary one"},
		{ID: 2, Title: "Article two", Summary: "Summary two"},
	}}
	registry := &fakeRegistry{provider: &fakeProvider{content: `{"title": "Daily roundup", "content": "Two stories today."}`}}
	svc := NewService(articles, summaries, feeds, registry, Config{})

	result, err := svc.GenerateFeedSummary(context.Background(), "f1", date, entity.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, "Daily roundup", result.SummaryTitle)
	assert.Equal(t, "Two stories today.", result.SummaryContent)
	assert.Equal(t, 2, result.ArticleCount)
	assert.Equal(t, entity.DigestStatusOK, result.Status)
	require.NotNil(t, summaries.created)
}

func TestService_GenerateFeedSummary_FallsBackOnMalformedJSON(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	summaries := &fakeSummaryRepo{}
	feeds := &fakeFeedRepo{feed: &entity.Feed{ID: "f1", Title: "Tech Daily"}}
	articles := &fakeArticleRepo{articles: []*entity.Article{{ID: 1, Title: "A1", Summary: "S1"}}}
	registry := &fakeRegistry{provider: &fakeProvider{content: "not json at all"}}
	svc := NewService(articles, summaries, feeds, registry, Config{})

	result, err := svc.GenerateFeedSummary(context.Background(), "f1", date, entity.LanguageChinese)
	require.NoError(t, err)
	assert.Equal(t, "Tech Daily 每日摘要", result.SummaryTitle)
	assert.Equal(t, "not json at all", result.SummaryContent)
}

func TestService_GenerateFeedSummary_NoArticlesFails(t *testing.T) {
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	feeds := &fakeFeedRepo{feed: &entity.Feed{ID: "f1", Title: "Tech Daily"}}
	svc := NewService(&fakeArticleRepo{}, &fakeSummaryRepo{}, feeds, &fakeRegistry{}, Config{})

	_, err := svc.GenerateFeedSummary(context.Background(), "f1", date, entity.LanguageChinese)
	require.Error(t, err)
}

func TestLongestOf_PrefersGeneratedSummary(t *testing.T) {
	english := "A considerably longer generated English summary than the original one."
	article := &entity.Article{Title: "short", Summary: "short summary", EnglishSummary: &english}
	assert.Equal(t, english, longestOf(article))
}
