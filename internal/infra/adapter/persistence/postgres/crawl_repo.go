package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

type CrawlBatchRepo struct{ db *sql.DB }

func NewCrawlBatchRepo(db *sql.DB) repository.CrawlBatchRepository {
	return &CrawlBatchRepo{db: db}
}

const crawlBatchColumns = `batch_id, article_id, feed_id, crawler_id, final_status, error_stage,
	error_type, error_message, original_html_size, processed_html_size, processed_text_size,
	content_hash, started_at, ended_at, total_processing_time_ms, max_memory_usage_bytes,
	avg_cpu_usage_percent, image_count, link_count, video_count`

func scanCrawlBatch(row interface{ Scan(...any) error }) (*entity.CrawlBatch, error) {
	var b entity.CrawlBatch
	err := row.Scan(
		&b.BatchID, &b.ArticleID, &b.FeedID, &b.CrawlerID, &b.FinalStatus, &b.ErrorStage,
		&b.ErrorType, &b.ErrorMessage, &b.OriginalHTMLSize, &b.ProcessedHTMLSize, &b.ProcessedTextSize,
		&b.ContentHash, &b.StartedAt, &b.EndedAt, &b.TotalProcessingTimeMs, &b.MaxMemoryUsageBytes,
		&b.AvgCPUUsagePercent, &b.ImageCount, &b.LinkCount, &b.VideoCount,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *CrawlBatchRepo) Append(ctx context.Context, batch *entity.CrawlBatch, logs []entity.CrawlLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertBatch = `
INSERT INTO crawl_batches (` + crawlBatchColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	_, err = tx.ExecContext(ctx, insertBatch,
		batch.BatchID, batch.ArticleID, batch.FeedID, batch.CrawlerID, batch.FinalStatus, batch.ErrorStage,
		batch.ErrorType, batch.ErrorMessage, batch.OriginalHTMLSize, batch.ProcessedHTMLSize, batch.ProcessedTextSize,
		batch.ContentHash, batch.StartedAt, batch.EndedAt, batch.TotalProcessingTimeMs, batch.MaxMemoryUsageBytes,
		batch.AvgCPUUsagePercent, batch.ImageCount, batch.LinkCount, batch.VideoCount)
	if err != nil {
		return fmt.Errorf("Append: insert batch: %w", err)
	}

	const insertLog = `INSERT INTO crawl_logs (batch_id, stage, duration_ms, message, created_at) VALUES ($1,$2,$3,$4,now())`
	for _, l := range logs {
		if _, err := tx.ExecContext(ctx, insertLog, batch.BatchID, l.Stage, l.DurationMs, l.Message); err != nil {
			return fmt.Errorf("Append: insert log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Append: commit: %w", err)
	}
	return nil
}

func (r *CrawlBatchRepo) Get(ctx context.Context, batchID string) (*entity.CrawlBatch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+crawlBatchColumns+` FROM crawl_batches WHERE batch_id = $1`, batchID)
	b, err := scanCrawlBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return b, nil
}

func (r *CrawlBatchRepo) Logs(ctx context.Context, batchID string) ([]entity.CrawlLog, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, stage, duration_ms, message, created_at
FROM crawl_logs WHERE batch_id = $1 ORDER BY id ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("Logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []entity.CrawlLog
	for rows.Next() {
		var l entity.CrawlLog
		if err := rows.Scan(&l.ID, &l.BatchID, &l.Stage, &l.DurationMs, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("Logs: scan: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *CrawlBatchRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.CrawlBatch], error) {
	where, args := "", []any{}
	if feedID, ok := filter["feed_id"]; ok {
		where = " WHERE feed_id = $1"
		args = append(args, feedID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM crawl_batches"+where, args...).Scan(&total); err != nil {
		return repository.Page[*entity.CrawlBatch]{}, fmt.Errorf("List: count: %w", err)
	}

	offset := (req.Page - 1) * req.PerPage
	if offset < 0 {
		offset = 0
	}
	args = append(args, req.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM crawl_batches%s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		crawlBatchColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return repository.Page[*entity.CrawlBatch]{}, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.CrawlBatch, 0, req.PerPage)
	for rows.Next() {
		b, err := scanCrawlBatch(rows)
		if err != nil {
			return repository.Page[*entity.CrawlBatch]{}, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, b)
	}
	return repository.NewPage(list, total, req), rows.Err()
}

func (r *CrawlBatchRepo) Stats(ctx context.Context) (repository.CrawlStats, error) {
	const query = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE final_status = 'ok'), COUNT(*) FILTER (WHERE final_status = 'failed'),
       COALESCE(AVG(total_processing_time_ms), 0)
FROM crawl_batches`
	var s repository.CrawlStats
	err := r.db.QueryRowContext(ctx, query).Scan(&s.TotalBatches, &s.SuccessBatches, &s.FailedBatches, &s.AvgProcessingTimeMs)
	if err != nil {
		return s, fmt.Errorf("Stats: %w", err)
	}
	return s, nil
}

// ResetBatch re-queues the batch's article (lease cleared, status back to
// pending, error cleared — retry_count is ResetArticle's job, not this
// one's) and deletes the batch's logs, in one transaction.
func (r *CrawlBatchRepo) ResetBatch(ctx context.Context, batchID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ResetBatch: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var articleID int64
	err = tx.QueryRowContext(ctx, `SELECT article_id FROM crawl_batches WHERE batch_id = $1`, batchID).Scan(&articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ResetBatch: lookup: %w", err)
	}

	const resetArticle = `
UPDATE articles SET status='pending', error_message=NULL,
	is_locked=false, lock_timestamp=NULL, crawler_id=NULL, updated_at=now()
WHERE id=$1`
	if _, err := tx.ExecContext(ctx, resetArticle, articleID); err != nil {
		return fmt.Errorf("ResetBatch: reset article: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM crawl_logs WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("ResetBatch: delete logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ResetBatch: commit: %w", err)
	}
	return nil
}

type FeedExtractionScriptRepo struct{ db *sql.DB }

func NewFeedExtractionScriptRepo(db *sql.DB) repository.FeedExtractionScriptRepository {
	return &FeedExtractionScriptRepo{db: db}
}

const scriptColumns = `id, feed_id, version, script, description, is_published, created_at`

func (r *FeedExtractionScriptRepo) Published(ctx context.Context, feedID string) (*entity.FeedExtractionScript, error) {
	var s entity.FeedExtractionScript
	err := r.db.QueryRowContext(ctx, `
SELECT `+scriptColumns+` FROM feed_extraction_scripts WHERE feed_id = $1 AND is_published = true`, feedID).
		Scan(&s.ID, &s.FeedID, &s.Version, &s.Script, &s.Description, &s.IsPublished, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Published: %w", err)
	}
	return &s, nil
}

func (r *FeedExtractionScriptRepo) PublishedBatch(ctx context.Context, feedIDs []string) (map[string]*entity.FeedExtractionScript, error) {
	result := make(map[string]*entity.FeedExtractionScript, len(feedIDs))
	if len(feedIDs) == 0 {
		return result, nil
	}
	// Memoized per request: one query per distinct feed id, deduplicated by the caller's map usage.
	seen := make(map[string]bool, len(feedIDs))
	for _, id := range feedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		script, err := r.Published(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("PublishedBatch: %w", err)
		}
		if script != nil {
			result[id] = script
		}
	}
	return result, nil
}

func (r *FeedExtractionScriptRepo) Publish(ctx context.Context, script *entity.FeedExtractionScript) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Publish: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE feed_extraction_scripts SET is_published = false WHERE feed_id = $1 AND is_published = true`, script.FeedID); err != nil {
		return fmt.Errorf("Publish: clear previous: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
INSERT INTO feed_extraction_scripts (feed_id, version, script, description, is_published, created_at)
VALUES ($1, $2, $3, $4, true, now()) RETURNING id`,
		script.FeedID, script.Version, script.Script, script.Description).Scan(&script.ID)
	if err != nil {
		return fmt.Errorf("Publish: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Publish: commit: %w", err)
	}
	return nil
}

func (r *FeedExtractionScriptRepo) List(ctx context.Context, feedID string) ([]*entity.FeedExtractionScript, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scriptColumns+` FROM feed_extraction_scripts WHERE feed_id = $1 ORDER BY version DESC`, feedID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*entity.FeedExtractionScript
	for rows.Next() {
		var s entity.FeedExtractionScript
		if err := rows.Scan(&s.ID, &s.FeedID, &s.Version, &s.Script, &s.Description, &s.IsPublished, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

type VectorizationTaskRepo struct{ db *sql.DB }

func NewVectorizationTaskRepo(db *sql.DB) repository.VectorizationTaskRepository {
	return &VectorizationTaskRepo{db: db}
}

func (r *VectorizationTaskRepo) Append(ctx context.Context, task *entity.VectorizationTask) error {
	const query = `
INSERT INTO vectorization_tasks (batch_id, article_id, total, processed, success, failed,
	started_at, ended_at, embedding_model, status, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.ExecContext(ctx, query, task.BatchID, task.ArticleID, task.Total, task.Processed,
		task.Success, task.Failed, task.StartedAt, task.EndedAt, task.EmbeddingModel, task.Status, task.ErrorMessage)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

func (r *VectorizationTaskRepo) Get(ctx context.Context, batchID string) (*entity.VectorizationTask, error) {
	var t entity.VectorizationTask
	err := r.db.QueryRowContext(ctx, `
SELECT batch_id, article_id, total, processed, success, failed, started_at, ended_at, embedding_model, status, error_message
FROM vectorization_tasks WHERE batch_id = $1`, batchID).
		Scan(&t.BatchID, &t.ArticleID, &t.Total, &t.Processed, &t.Success, &t.Failed, &t.StartedAt, &t.EndedAt, &t.EmbeddingModel, &t.Status, &t.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &t, nil
}
