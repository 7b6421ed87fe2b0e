package feedsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

type fakeFeedRepo struct {
	pendingFeeds     []*entity.Feed
	pendingErr       error
	autoDisableCount int
	claimResult      *entity.Feed
	claimErr         error
	submitOutcome    repository.SubmitSyncResultOutcome
	submitErr        error
	lastSubmit       repository.SyncResult
	lastClaimParams  [3]any
}

func (r *fakeFeedRepo) Get(ctx context.Context, id string) (*entity.Feed, error) { return nil, nil }
func (r *fakeFeedRepo) Create(ctx context.Context, feed *entity.Feed) error      { return nil }
func (r *fakeFeedRepo) Update(ctx context.Context, feed *entity.Feed) error      { return nil }
func (r *fakeFeedRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.Feed], error) {
	return repository.Page[*entity.Feed]{}, nil
}

func (r *fakeFeedRepo) PendingFeeds(ctx context.Context, params repository.PendingFeedsParams) ([]*entity.Feed, error) {
	return r.pendingFeeds, r.pendingErr
}

func (r *fakeFeedRepo) AutoDisableFailedFeeds(ctx context.Context, threshold int) (int, error) {
	return r.autoDisableCount, nil
}

func (r *fakeFeedRepo) ClaimFeed(ctx context.Context, feedID, crawlerID string, leaseTimeout time.Duration, now time.Time) (*entity.Feed, error) {
	r.lastClaimParams = [3]any{feedID, crawlerID, leaseTimeout}
	return r.claimResult, r.claimErr
}

func (r *fakeFeedRepo) SubmitSyncResult(ctx context.Context, result repository.SyncResult) (repository.SubmitSyncResultOutcome, error) {
	r.lastSubmit = result
	return r.submitOutcome, r.submitErr
}

func (r *fakeFeedRepo) ResetFailures(ctx context.Context, feedID string, reactivate bool) error {
	return nil
}

func (r *fakeFeedRepo) Stats(ctx context.Context) (repository.FeedSyncStats, error) {
	return repository.FeedSyncStats{}, nil
}

var _ repository.FeedRepository = (*fakeFeedRepo)(nil)

type fakeSyncLogRepo struct {
	appended []*entity.FeedSyncLog
}

func (r *fakeSyncLogRepo) Append(ctx context.Context, log *entity.FeedSyncLog) error {
	r.appended = append(r.appended, log)
	return nil
}
func (r *fakeSyncLogRepo) Get(ctx context.Context, syncID string) (*entity.FeedSyncLog, error) {
	return nil, nil
}
func (r *fakeSyncLogRepo) List(ctx context.Context, req repository.PageRequest) (repository.Page[*entity.FeedSyncLog], error) {
	return repository.Page[*entity.FeedSyncLog]{}, nil
}

var _ repository.FeedSyncLogRepository = (*fakeSyncLogRepo)(nil)

func TestService_PendingFeeds(t *testing.T) {
	repo := &fakeFeedRepo{pendingFeeds: []*entity.Feed{{ID: "f1"}, {ID: "f2"}}}
	svc := NewService(repo, nil, DefaultConfig())

	feeds, err := svc.PendingFeeds(context.Background(), 10, true)
	require.NoError(t, err)
	assert.Len(t, feeds, 2)
}

func TestService_ClaimFeed_PassesLeaseTimeout(t *testing.T) {
	repo := &fakeFeedRepo{claimResult: &entity.Feed{ID: "f1"}}
	cfg := DefaultConfig()
	cfg.LeaseTimeout = 5 * time.Minute
	svc := NewService(repo, nil, cfg)

	feed, err := svc.ClaimFeed(context.Background(), "f1", "crawler-1")
	require.NoError(t, err)
	assert.Equal(t, "f1", feed.ID)
	assert.Equal(t, 5*time.Minute, repo.lastClaimParams[2])
}

func TestService_ClaimFeed_Conflict(t *testing.T) {
	repo := &fakeFeedRepo{claimErr: entity.ErrConflict}
	svc := NewService(repo, nil, DefaultConfig())

	_, err := svc.ClaimFeed(context.Background(), "f1", "crawler-1")
	require.Error(t, err)
}

func TestService_SubmitFeedResult_SetsAutoDisableThreshold(t *testing.T) {
	repo := &fakeFeedRepo{submitOutcome: repository.SubmitSyncResultOutcome{NewArticles: 3}}
	cfg := DefaultConfig()
	cfg.AutoDisableThreshold = 7
	svc := NewService(repo, nil, cfg)

	outcome, err := svc.SubmitFeedResult(context.Background(), repository.SyncResult{FeedID: "f1", Status: entity.SyncStatusOK})
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.NewArticles)
	assert.Equal(t, 7, repo.lastSubmit.AutoDisableThreshold)
	assert.False(t, repo.lastSubmit.Now.IsZero())
}

func TestService_AutoDisableFailedFeeds(t *testing.T) {
	repo := &fakeFeedRepo{autoDisableCount: 2}
	svc := NewService(repo, nil, DefaultConfig())

	n, err := svc.AutoDisableFailedFeeds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_RecordSyncRun_NoopWithoutRepo(t *testing.T) {
	svc := NewService(&fakeFeedRepo{}, nil, DefaultConfig())
	err := svc.RecordSyncRun(context.Background(), &entity.FeedSyncLog{})
	require.NoError(t, err)
}

func TestService_RecordSyncRun_GeneratesSyncID(t *testing.T) {
	logs := &fakeSyncLogRepo{}
	svc := NewService(&fakeFeedRepo{}, logs, DefaultConfig())

	err := svc.RecordSyncRun(context.Background(), &entity.FeedSyncLog{TotalFeeds: 5})
	require.NoError(t, err)
	require.Len(t, logs.appended, 1)
	assert.NotEmpty(t, logs.appended[0].SyncID)
}
