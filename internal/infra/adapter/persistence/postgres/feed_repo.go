// Package postgres implements the store adapters (C1) over database/sql
// using the pgx stdlib driver. Every mutating method is a single statement
// or a single transaction; claims are expressed as atomic UPDATE ... WHERE
// rather than read-then-write.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

type FeedRepo struct{ db *sql.DB }

func NewFeedRepo(db *sql.DB) repository.FeedRepository {
	return &FeedRepo{db: db}
}

func scanFeed(row interface{ Scan(...any) error }) (*entity.Feed, error) {
	var f entity.Feed
	var headersJSON []byte
	err := row.Scan(
		&f.ID, &f.URL, &f.CategoryID, &f.Title, &f.Description, &f.Logo, &f.IsActive,
		&f.Health.LastSyncAt, &f.Health.LastSuccessfulSyncAt, &f.Health.LastSyncStatus,
		&f.Health.ConsecutiveFailures, &f.Health.LastSyncError, &f.Health.LastSyncCrawlerID,
		&f.Health.LastSyncStartedAt,
		&f.Hints.CrawlWithJS, &f.Hints.CrawlDelaySec, &headersJSON, &f.Hints.UseProxy,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Hints.CustomHeaders = decodeHeaders(headersJSON)
	return &f, nil
}

// last_sync_crawler_id is nullable (NULL means unleased) but lands in a
// plain string field, so it is COALESCEd before scanning.
const feedColumns = `id, url, category_id, title, description, logo, is_active,
	last_sync_at, last_successful_sync_at, last_sync_status, consecutive_failures,
	last_sync_error, COALESCE(last_sync_crawler_id, ''), last_sync_started_at,
	crawl_with_js, crawl_delay_s, custom_headers, use_proxy, created_at, updated_at`

func (r *FeedRepo) Get(ctx context.Context, id string) (*entity.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return f, nil
}

func (r *FeedRepo) Create(ctx context.Context, f *entity.Feed) error {
	const query = `
INSERT INTO feeds (id, url, category_id, title, description, logo, is_active,
	crawl_with_js, crawl_delay_s, custom_headers, use_proxy, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())`
	_, err := r.db.ExecContext(ctx, query, f.ID, f.URL, f.CategoryID, f.Title, f.Description, f.Logo,
		f.IsActive, f.Hints.CrawlWithJS, f.Hints.CrawlDelaySec, encodeHeaders(f.Hints.CustomHeaders), f.Hints.UseProxy)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *FeedRepo) Update(ctx context.Context, f *entity.Feed) error {
	const query = `
UPDATE feeds SET url=$1, category_id=$2, title=$3, description=$4, logo=$5, is_active=$6,
	crawl_with_js=$7, crawl_delay_s=$8, custom_headers=$9, use_proxy=$10, updated_at=now()
WHERE id=$11`
	res, err := r.db.ExecContext(ctx, query, f.URL, f.CategoryID, f.Title, f.Description, f.Logo,
		f.IsActive, f.Hints.CrawlWithJS, f.Hints.CrawlDelaySec, encodeHeaders(f.Hints.CustomHeaders), f.Hints.UseProxy, f.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *FeedRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.Feed], error) {
	where, args := buildFeedFilter(filter)
	offset := (req.Page - 1) * req.PerPage
	if offset < 0 {
		offset = 0
	}

	countQuery := "SELECT COUNT(*) FROM feeds" + where
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return repository.Page[*entity.Feed]{}, fmt.Errorf("List: count: %w", err)
	}

	args = append(args, req.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM feeds%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		feedColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return repository.Page[*entity.Feed]{}, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.Feed, 0, req.PerPage)
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return repository.Page[*entity.Feed]{}, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, f)
	}
	return repository.NewPage(list, total, req), rows.Err()
}

func buildFeedFilter(filter repository.Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	i := 1
	for k, v := range filter {
		switch k {
		case "category_id", "is_active":
			clauses = append(clauses, fmt.Sprintf("%s = $%d", k, i))
			args = append(args, v)
			i++
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

// PendingFeeds implements the priority ordering: never-synced
// first, then ascending consecutive_failures, then NULL last_sync_at first,
// then oldest last_sync_at first.
func (r *FeedRepo) PendingFeeds(ctx context.Context, params repository.PendingFeedsParams) ([]*entity.Feed, error) {
	query := `
SELECT ` + feedColumns + `
FROM feeds
WHERE is_active = true
  AND consecutive_failures < $1
  AND (last_sync_crawler_id IS NULL OR last_sync_started_at < $2)`
	args := []any{params.AutoDisableThreshold, params.Now.Add(-params.LeaseTimeout)}

	if params.SkipRecentSuccess {
		query += ` AND (last_successful_sync_at IS NULL OR last_successful_sync_at < $3)`
		args = append(args, params.Now.Add(-time.Duration(params.SuccessIntervalMinutes)*time.Minute))
	}

	query += `
ORDER BY
  CASE WHEN last_sync_at IS NULL THEN 0 ELSE 1 END,
  consecutive_failures ASC,
  CASE WHEN last_sync_at IS NULL THEN 0 ELSE 1 END,
  last_sync_at ASC
LIMIT ` + fmt.Sprintf("$%d", len(args)+1)
	args = append(args, params.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("PendingFeeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	feeds := make([]*entity.Feed, 0, params.Limit)
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("PendingFeeds: scan: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

func (r *FeedRepo) AutoDisableFailedFeeds(ctx context.Context, threshold int) (int, error) {
	const query = `UPDATE feeds SET is_active = false, updated_at = now()
WHERE is_active = true AND consecutive_failures >= $1`
	res, err := r.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("AutoDisableFailedFeeds: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClaimFeed is the atomic compare-and-set lease acquisition.
func (r *FeedRepo) ClaimFeed(ctx context.Context, feedID, crawlerID string, leaseTimeout time.Duration, now time.Time) (*entity.Feed, error) {
	const query = `
UPDATE feeds SET last_sync_started_at = $1, last_sync_crawler_id = $2, updated_at = $1
WHERE id = $3
  AND is_active = true
  AND (last_sync_crawler_id IS NULL
       OR last_sync_started_at < $4
       OR last_sync_crawler_id = $2)
RETURNING ` + feedColumns

	row := r.db.QueryRowContext(ctx, query, now, crawlerID, feedID, now.Add(-leaseTimeout))
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := r.Get(ctx, feedID)
		if getErr == nil && existing == nil {
			return nil, entity.ErrNotFound
		}
		return nil, entity.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("ClaimFeed: %w", err)
	}
	return f, nil
}

// SubmitSyncResult applies the ok/failed transition in a single
// transaction.
func (r *FeedRepo) SubmitSyncResult(ctx context.Context, result repository.SyncResult) (repository.SubmitSyncResultOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.SubmitSyncResultOutcome{}, fmt.Errorf("SubmitSyncResult: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var outcome repository.SubmitSyncResultOutcome

	if result.Status == entity.SyncStatusOK {
		inserted, err := insertArticlesDedupedTx(ctx, tx, result.FeedID, result.Articles)
		if err != nil {
			return outcome, fmt.Errorf("SubmitSyncResult: insert articles: %w", err)
		}
		outcome.NewArticles = inserted

		const query = `
UPDATE feeds SET last_sync_at=$1, last_successful_sync_at=$1, last_sync_status='ok',
	consecutive_failures=0, last_sync_error=NULL, last_sync_crawler_id=NULL, updated_at=$1
WHERE id=$2
RETURNING consecutive_failures`
		if err := tx.QueryRowContext(ctx, query, result.Now, result.FeedID).Scan(&outcome.ConsecutiveFailures); err != nil {
			return outcome, fmt.Errorf("SubmitSyncResult: update feed: %w", err)
		}
	} else {
		const query = `
UPDATE feeds SET last_sync_at=$1, last_sync_status='failed', consecutive_failures = consecutive_failures + 1,
	last_sync_error=$2, last_sync_crawler_id=NULL, updated_at=$1
WHERE id=$3
RETURNING consecutive_failures`
		if err := tx.QueryRowContext(ctx, query, result.Now, result.ErrorMessage, result.FeedID).Scan(&outcome.ConsecutiveFailures); err != nil {
			return outcome, fmt.Errorf("SubmitSyncResult: update feed: %w", err)
		}
		if outcome.ConsecutiveFailures >= result.AutoDisableThreshold {
			if _, err := tx.ExecContext(ctx, `UPDATE feeds SET is_active=false WHERE id=$1`, result.FeedID); err != nil {
				return outcome, fmt.Errorf("SubmitSyncResult: auto-disable: %w", err)
			}
			outcome.AutoDisabled = true
		}
	}

	if err := tx.Commit(); err != nil {
		return outcome, fmt.Errorf("SubmitSyncResult: commit: %w", err)
	}
	return outcome, nil
}

func insertArticlesDedupedTx(ctx context.Context, tx *sql.Tx, feedID string, entries []entity.NewArticleInput) (int, error) {
	inserted := 0
	const query = `
INSERT INTO articles (feed_id, link, title, summary, published_date, thumbnail_url, status, max_retries, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,'pending',3,now(),now())
ON CONFLICT (link) DO NOTHING`
	for _, e := range entries {
		res, err := tx.ExecContext(ctx, query, feedID, e.Link, e.Title, e.Summary, e.PublishedDate, e.ThumbnailURL)
		if err != nil {
			return inserted, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *FeedRepo) ResetFailures(ctx context.Context, feedID string, reactivate bool) error {
	query := `UPDATE feeds SET consecutive_failures = 0, updated_at = now()`
	args := []any{}
	if reactivate {
		query += `, is_active = true, last_sync_crawler_id = NULL, last_sync_started_at = NULL`
	}
	if feedID != "" {
		args = append(args, feedID)
		query += fmt.Sprintf(` WHERE id = $%d`, len(args))
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ResetFailures: %w", err)
	}
	return nil
}

func (r *FeedRepo) Stats(ctx context.Context) (repository.FeedSyncStats, error) {
	const query = `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE is_active),
  COUNT(*) FILTER (WHERE NOT is_active),
  COUNT(*) FILTER (WHERE last_sync_crawler_id IS NOT NULL),
  COUNT(*) FILTER (WHERE last_sync_status = 'failed')
FROM feeds`
	var s repository.FeedSyncStats
	err := r.db.QueryRowContext(ctx, query).Scan(&s.TotalFeeds, &s.ActiveFeeds, &s.DisabledFeeds, &s.LeasedFeeds, &s.FailingFeeds)
	if err != nil {
		return s, fmt.Errorf("Stats: %w", err)
	}
	return s, nil
}
