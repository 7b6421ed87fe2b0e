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

type ArticleRepo struct{ db *sql.DB }

func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

// Nullable text/int columns that land in non-pointer entity fields are
// COALESCEd here so a NULL never reaches the scanner.
const articleColumns = `id, feed_id, link, title, COALESCE(summary, ''), chinese_summary, english_summary,
	thumbnail_url, published_date, status, is_locked, lock_timestamp, COALESCE(crawler_id, ''),
	retry_count, max_retries, COALESCE(error_message, ''), content_id,
	is_vectorized, COALESCE(vector_id, ''), vectorized_at, COALESCE(embedding_model, ''), COALESCE(vector_dimension, 0),
	vectorization_status, COALESCE(vectorization_error, ''), created_at, updated_at`

func scanArticle(row interface{ Scan(...any) error }) (*entity.Article, error) {
	var a entity.Article
	err := row.Scan(
		&a.ID, &a.FeedID, &a.Link, &a.Title, &a.Summary, &a.ChineseSummary, &a.EnglishSummary,
		&a.ThumbnailURL, &a.PublishedDate, &a.Status, &a.Lease.IsLocked, &a.Lease.LockTimestamp, &a.Lease.CrawlerID,
		&a.RetryCount, &a.MaxRetries, &a.ErrorMessage, &a.ContentID,
		&a.Vector.IsVectorized, &a.Vector.VectorID, &a.Vector.VectorizedAt, &a.Vector.EmbeddingModel, &a.Vector.VectorDimension,
		&a.Vector.VectorizationStatus, &a.Vector.VectorizationError, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

func (r *ArticleRepo) GetByLink(ctx context.Context, feedID, link string) (*entity.Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE feed_id = $1 AND link = $2`, feedID, link)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByLink: %w", err)
	}
	return a, nil
}

func (r *ArticleRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.Article], error) {
	where, args := buildArticleFilter(filter)
	offset := (req.Page - 1) * req.PerPage
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles"+where, args...).Scan(&total); err != nil {
		return repository.Page[*entity.Article]{}, fmt.Errorf("List: count: %w", err)
	}

	args = append(args, req.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM articles%s ORDER BY published_date DESC NULLS LAST LIMIT $%d OFFSET $%d`,
		articleColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return repository.Page[*entity.Article]{}, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.Article, 0, req.PerPage)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return repository.Page[*entity.Article]{}, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, a)
	}
	return repository.NewPage(list, total, req), rows.Err()
}

func buildArticleFilter(filter repository.Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	i := 1
	for k, v := range filter {
		switch k {
		case "feed_id", "status", "vectorization_status":
			clauses = append(clauses, fmt.Sprintf("%s = $%d", k, i))
			args = append(args, v)
			i++
		case repository.DateRangeKey:
			if dr, ok := v.(repository.DateRange); ok {
				if dr.From != nil {
					clauses = append(clauses, fmt.Sprintf("published_date >= $%d", i))
					args = append(args, *dr.From)
					i++
				}
				if dr.To != nil {
					clauses = append(clauses, fmt.Sprintf("published_date <= $%d", i))
					args = append(args, *dr.To)
					i++
				}
			}
		case repository.RetryRangeKey:
			if rr, ok := v.(repository.RetryRange); ok {
				if rr.Min != nil {
					clauses = append(clauses, fmt.Sprintf("retry_count >= $%d", i))
					args = append(args, *rr.Min)
					i++
				}
				if rr.Max != nil {
					clauses = append(clauses, fmt.Sprintf("retry_count <= $%d", i))
					args = append(args, *rr.Max)
					i++
				}
			}
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

func (r *ArticleRepo) InsertBatchDeduped(ctx context.Context, feedID string, entries []entity.NewArticleInput) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("InsertBatchDeduped: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	inserted, err := insertArticlesDedupedTx(ctx, tx, feedID, entries)
	if err != nil {
		return 0, fmt.Errorf("InsertBatchDeduped: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("InsertBatchDeduped: commit: %w", err)
	}
	return inserted, nil
}

// PendingArticles implements selection: status=pending,
// is_locked=false, retry_count<max_retries, ordered by retry_count asc then
// published_date desc.
func (r *ArticleRepo) PendingArticles(ctx context.Context, limit int) ([]*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE status = 'pending' AND is_locked = false AND retry_count < max_retries
ORDER BY retry_count ASC, published_date DESC NULLS LAST
LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("PendingArticles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("PendingArticles: scan: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ClaimArticle is the atomic lease acquisition.
func (r *ArticleRepo) ClaimArticle(ctx context.Context, articleID int64, crawlerID string, now time.Time) (*entity.Article, error) {
	const query = `
UPDATE articles SET is_locked = true, lock_timestamp = $1, crawler_id = $2, updated_at = $1
WHERE id = $3 AND is_locked = false
RETURNING ` + articleColumns

	row := r.db.QueryRowContext(ctx, query, now, crawlerID, articleID)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := r.Get(ctx, articleID)
		if getErr == nil && existing == nil {
			return nil, entity.ErrNotFound
		}
		return nil, entity.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("ClaimArticle: %w", err)
	}
	return a, nil
}

// SubmitCrawlResult applies the ok/failed transition, verifying
// the submitting crawlerID still holds the lease.
func (r *ArticleRepo) SubmitCrawlResult(ctx context.Context, result repository.CrawlResult) (*entity.Article, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("SubmitCrawlResult: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentCrawler string
	var isLocked bool
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(crawler_id, ''), is_locked FROM articles WHERE id = $1 FOR UPDATE`, result.ArticleID).
		Scan(&currentCrawler, &isLocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("SubmitCrawlResult: lookup: %w", err)
	}
	if !isLocked || currentCrawler != result.CrawlerID {
		return nil, entity.ErrConflict
	}

	if result.Status == entity.ArticleStatusOK {
		var contentID int64
		err = tx.QueryRowContext(ctx, `
INSERT INTO article_contents (html_content, text_content, created_at)
VALUES ($1, $2, $3) RETURNING id`, result.HTMLContent, result.TextContent, result.Now).Scan(&contentID)
		if err != nil {
			return nil, fmt.Errorf("SubmitCrawlResult: insert content: %w", err)
		}

		const query = `
UPDATE articles SET status='ok', content_id=$1, is_locked=false, lock_timestamp=NULL,
	crawler_id=NULL, error_message=NULL, updated_at=$2
WHERE id=$3
RETURNING ` + articleColumns
		row := tx.QueryRowContext(ctx, query, contentID, result.Now, result.ArticleID)
		a, err := scanArticle(row)
		if err != nil {
			return nil, fmt.Errorf("SubmitCrawlResult: update ok: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("SubmitCrawlResult: commit: %w", err)
		}
		return a, nil
	}

	const query = `
UPDATE articles SET status='failed', retry_count = retry_count + 1, is_locked=false,
	lock_timestamp=NULL, crawler_id=NULL, error_message=$1, updated_at=$2
WHERE id=$3
RETURNING ` + articleColumns
	row := tx.QueryRowContext(ctx, query, result.ErrorMessage, result.Now, result.ArticleID)
	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("SubmitCrawlResult: update failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("SubmitCrawlResult: commit: %w", err)
	}
	return a, nil
}

func (r *ArticleRepo) ResetArticle(ctx context.Context, articleID int64) error {
	const query = `
UPDATE articles SET status='pending', retry_count=0, error_message=NULL,
	is_locked=false, lock_timestamp=NULL, crawler_id=NULL, updated_at=now()
WHERE id=$1`
	res, err := r.db.ExecContext(ctx, query, articleID)
	if err != nil {
		return fmt.Errorf("ResetArticle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// PendingVectorization implements candidate selection.
func (r *ArticleRepo) PendingVectorization(ctx context.Context, limit int) ([]*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE vectorization_status = 'pending' AND content_id IS NOT NULL
ORDER BY published_date DESC NULLS LAST
LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("PendingVectorization: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("PendingVectorization: scan: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *ArticleRepo) ClaimVectorization(ctx context.Context, articleID int64) (*entity.Article, error) {
	const query = `
UPDATE articles SET vectorization_status = 'in_progress', updated_at = now()
WHERE id = $1 AND vectorization_status = 'pending'
RETURNING ` + articleColumns

	row := r.db.QueryRowContext(ctx, query, articleID)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("ClaimVectorization: %w", err)
	}
	return a, nil
}

const maxVectorizationErrorLen = 1000

func (r *ArticleRepo) UpdateVectorResult(ctx context.Context, articleID int64, result repository.VectorResult) error {
	if result.OK {
		const query = `
UPDATE articles SET is_vectorized=true, vector_id=$1, vectorized_at=$2, embedding_model=$3,
	vector_dimension=$4, vectorization_status='ok', vectorization_error=NULL, updated_at=$2
WHERE id=$5`
		_, err := r.db.ExecContext(ctx, query, result.VectorID, result.Now, result.EmbeddingModel, result.VectorDimension, articleID)
		if err != nil {
			return fmt.Errorf("UpdateVectorResult: %w", err)
		}
		return nil
	}

	msg := result.ErrorMessage
	if len(msg) > maxVectorizationErrorLen {
		msg = msg[:maxVectorizationErrorLen]
	}
	const query = `
UPDATE articles SET vectorization_status='failed', vectorization_error=$1, updated_at=$2
WHERE id=$3`
	_, err := r.db.ExecContext(ctx, query, msg, result.Now, articleID)
	if err != nil {
		return fmt.Errorf("UpdateVectorResult: %w", err)
	}
	return nil
}

func (r *ArticleRepo) UpdateSummaries(ctx context.Context, articleID int64, chinese, english *string, clearSummary bool) error {
	const query = `
UPDATE articles SET chinese_summary = COALESCE($1, chinese_summary),
	english_summary = COALESCE($2, english_summary),
	summary = CASE WHEN $3 THEN NULL ELSE summary END,
	updated_at = now()
WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, chinese, english, clearSummary, articleID)
	if err != nil {
		return fmt.Errorf("UpdateSummaries: %w", err)
	}
	return nil
}

func (r *ArticleRepo) ApplyProcessingStep(ctx context.Context, articleID int64, result repository.ProcessingStepResult) error {
	if result.OK {
		if result.Step != "content_saved" {
			return nil
		}
		const query = `
UPDATE articles SET status='ok', content_id=$1, is_locked=false, lock_timestamp=NULL,
	crawler_id=NULL, error_message=NULL, updated_at=$2
WHERE id=$3`
		_, err := r.db.ExecContext(ctx, query, result.ContentID, result.Now, articleID)
		if err != nil {
			return fmt.Errorf("ApplyProcessingStep: %w", err)
		}
		return nil
	}

	const query = `
UPDATE articles SET status='failed', error_message=$1, is_locked=false,
	lock_timestamp=NULL, crawler_id=NULL, updated_at=$2
WHERE id=$3`
	_, err := r.db.ExecContext(ctx, query, result.ErrorMessage, result.Now, articleID)
	if err != nil {
		return fmt.Errorf("ApplyProcessingStep: %w", err)
	}
	return nil
}

func (r *ArticleRepo) ArticlesForDigest(ctx context.Context, feedID string, from, to time.Time) ([]*entity.Article, error) {
	const query = `
SELECT ` + articleColumns + `
FROM articles
WHERE feed_id = $1 AND status = 'ok'
  AND COALESCE(published_date, created_at) BETWEEN $2 AND $3
ORDER BY COALESCE(published_date, created_at) DESC`
	rows, err := r.db.QueryContext(ctx, query, feedID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ArticlesForDigest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.Article, 0, 32)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ArticlesForDigest: scan: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *ArticleRepo) FeedsWithOKArticlesOn(ctx context.Context, from, to time.Time) ([]string, error) {
	const query = `
SELECT DISTINCT feed_id FROM articles
WHERE status = 'ok' AND COALESCE(published_date, created_at) BETWEEN $1 AND $2`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("FeedsWithOKArticlesOn: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("FeedsWithOKArticlesOn: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ArticleRepo) VectorizationStats(ctx context.Context) (map[entity.VectorizationStatus]int64, error) {
	const query = `SELECT vectorization_status, COUNT(*) FROM articles GROUP BY vectorization_status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("VectorizationStats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[entity.VectorizationStatus]int64)
	for rows.Next() {
		var status entity.VectorizationStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("VectorizationStats: scan: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type ArticleContentRepo struct{ db *sql.DB }

func NewArticleContentRepo(db *sql.DB) repository.ArticleContentRepository {
	return &ArticleContentRepo{db: db}
}

func (r *ArticleContentRepo) Get(ctx context.Context, id int64) (*entity.ArticleContent, error) {
	var c entity.ArticleContent
	err := r.db.QueryRowContext(ctx, `SELECT id, html_content, text_content, created_at FROM article_contents WHERE id = $1`, id).
		Scan(&c.ID, &c.HTMLContent, &c.TextContent, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &c, nil
}

func (r *ArticleContentRepo) Create(ctx context.Context, content *entity.ArticleContent) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO article_contents (html_content, text_content, created_at)
VALUES ($1, $2, $3) RETURNING id`, content.HTMLContent, content.TextContent, content.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	return id, nil
}
