package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/repository"
)

type DailySummaryRepo struct{ db *sql.DB }

func NewDailySummaryRepo(db *sql.DB) repository.DailySummaryRepository {
	return &DailySummaryRepo{db: db}
}

const dailySummaryColumns = `id, feed_id, summary_date, language, summary_title, summary_content,
	article_count, article_ids, llm_provider, llm_model, generation_cost_tokens, status, created_at`

func scanDailySummary(row interface{ Scan(...any) error }) (*entity.DailySummary, error) {
	var s entity.DailySummary
	var ids pq.Int64Array
	err := row.Scan(&s.ID, &s.FeedID, &s.SummaryDate, &s.Language, &s.SummaryTitle, &s.SummaryContent,
		&s.ArticleCount, &ids, &s.LLMProvider, &s.LLMModel, &s.GenerationCostTokens, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ArticleIDs = []int64(ids)
	return &s, nil
}

func (r *DailySummaryRepo) Get(ctx context.Context, feedID string, date time.Time, language entity.Language) (*entity.DailySummary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+dailySummaryColumns+` FROM daily_summaries
WHERE feed_id = $1 AND summary_date = $2 AND language = $3`, feedID, date, language)
	s, err := scanDailySummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return s, nil
}

func (r *DailySummaryRepo) Create(ctx context.Context, s *entity.DailySummary) error {
	const query = `
INSERT INTO daily_summaries (feed_id, summary_date, language, summary_title, summary_content,
	article_count, article_ids, llm_provider, llm_model, generation_cost_tokens, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
ON CONFLICT (feed_id, summary_date, language) DO NOTHING
RETURNING id`
	err := r.db.QueryRowContext(ctx, query, s.FeedID, s.SummaryDate, s.Language, s.SummaryTitle, s.SummaryContent,
		s.ArticleCount, pq.Int64Array(s.ArticleIDs), s.LLMProvider, s.LLMModel, s.GenerationCostTokens, s.Status).Scan(&s.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *DailySummaryRepo) List(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[*entity.DailySummary], error) {
	where, args := "", []any{}
	if feedID, ok := filter["feed_id"]; ok {
		where = " WHERE feed_id = $1"
		args = append(args, feedID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_summaries"+where, args...).Scan(&total); err != nil {
		return repository.Page[*entity.DailySummary]{}, fmt.Errorf("List: count: %w", err)
	}

	offset := (req.Page - 1) * req.PerPage
	if offset < 0 {
		offset = 0
	}
	args = append(args, req.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM daily_summaries%s ORDER BY summary_date DESC LIMIT $%d OFFSET $%d`,
		dailySummaryColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return repository.Page[*entity.DailySummary]{}, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.DailySummary, 0, req.PerPage)
	for rows.Next() {
		s, err := scanDailySummary(rows)
		if err != nil {
			return repository.Page[*entity.DailySummary]{}, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, s)
	}
	return repository.NewPage(list, total, req), rows.Err()
}

type RawHotTopicRepo struct{ db *sql.DB }

func NewRawHotTopicRepo(db *sql.DB) repository.RawHotTopicRepository {
	return &RawHotTopicRepo{db: db}
}

func (r *RawHotTopicRepo) ForDate(ctx context.Context, date time.Time) ([]*entity.RawHotTopic, error) {
	const query = `
SELECT id, platform, title, description, url, status, topic_date
FROM raw_hot_topics WHERE topic_date = $1 AND status = 'active'`
	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("ForDate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*entity.RawHotTopic
	for rows.Next() {
		var t entity.RawHotTopic
		if err := rows.Scan(&t.ID, &t.Platform, &t.Title, &t.Description, &t.URL, &t.Status, &t.TopicDate); err != nil {
			return nil, fmt.Errorf("ForDate: scan: %w", err)
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

type UnifiedHotTopicRepo struct{ db *sql.DB }

func NewUnifiedHotTopicRepo(db *sql.DB) repository.UnifiedHotTopicRepository {
	return &UnifiedHotTopicRepo{db: db}
}

func (r *UnifiedHotTopicRepo) ReplaceForDate(ctx context.Context, date time.Time, topics []*entity.UnifiedHotTopic) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ReplaceForDate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM unified_hot_topics WHERE topic_date = $1`, date); err != nil {
		return fmt.Errorf("ReplaceForDate: delete: %w", err)
	}

	const insert = `
INSERT INTO unified_hot_topics (topic_date, unified_title, unified_summary, keywords, category,
	related_topic_hashes, source_platforms, topic_count, representative_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())`
	for _, t := range topics {
		_, err := tx.ExecContext(ctx, insert, t.TopicDate, t.UnifiedTitle, t.UnifiedSummary,
			pq.StringArray(t.Keywords), t.Category, pq.StringArray(t.RelatedTopicHashes),
			pq.StringArray(t.SourcePlatforms), t.TopicCount, t.RepresentativeURL)
		if err != nil {
			return fmt.Errorf("ReplaceForDate: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceForDate: commit: %w", err)
	}
	return nil
}

func (r *UnifiedHotTopicRepo) ForDate(ctx context.Context, date time.Time) ([]*entity.UnifiedHotTopic, error) {
	const query = `
SELECT id, topic_date, unified_title, unified_summary, keywords, category, related_topic_hashes,
	source_platforms, topic_count, representative_url, created_at
FROM unified_hot_topics WHERE topic_date = $1 ORDER BY topic_count DESC`
	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("ForDate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*entity.UnifiedHotTopic
	for rows.Next() {
		var t entity.UnifiedHotTopic
		var keywords, hashes, platforms pq.StringArray
		if err := rows.Scan(&t.ID, &t.TopicDate, &t.UnifiedTitle, &t.UnifiedSummary, &keywords, &t.Category,
			&hashes, &platforms, &t.TopicCount, &t.RepresentativeURL, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ForDate: scan: %w", err)
		}
		t.Keywords = []string(keywords)
		t.RelatedTopicHashes = []string(hashes)
		t.SourcePlatforms = []string(platforms)
		list = append(list, &t)
	}
	return list, rows.Err()
}

type LLMProviderConfigRepo struct{ db *sql.DB }

func NewLLMProviderConfigRepo(db *sql.DB) repository.LLMProviderConfigRepository {
	return &LLMProviderConfigRepo{db: db}
}

const llmProviderColumns = `id, provider_type, api_key, api_secret, app_id, app_secret, api_base_url,
	api_version, region, request_timeout_ms, max_retries, default_model, is_active, created_at, updated_at`

func scanLLMProvider(row interface{ Scan(...any) error }) (*entity.LLMProviderConfig, error) {
	var c entity.LLMProviderConfig
	var timeoutMs int64
	err := row.Scan(&c.ID, &c.ProviderType, &c.APIKey, &c.APISecret, &c.AppID, &c.AppSecret, &c.APIBaseURL,
		&c.APIVersion, &c.Region, &timeoutMs, &c.MaxRetries, &c.DefaultModel, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.RequestTimeout = time.Duration(timeoutMs) * time.Millisecond
	return &c, nil
}

func (r *LLMProviderConfigRepo) Get(ctx context.Context, providerType string) (*entity.LLMProviderConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+llmProviderColumns+` FROM llm_provider_configs WHERE provider_type = $1`, providerType)
	c, err := scanLLMProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return c, nil
}

func (r *LLMProviderConfigRepo) GetDefault(ctx context.Context) (*entity.LLMProviderConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+llmProviderColumns+` FROM llm_provider_configs WHERE is_active = true ORDER BY id ASC LIMIT 1`)
	c, err := scanLLMProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetDefault: %w", err)
	}
	return c, nil
}

func (r *LLMProviderConfigRepo) List(ctx context.Context) ([]*entity.LLMProviderConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+llmProviderColumns+` FROM llm_provider_configs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*entity.LLMProviderConfig
	for rows.Next() {
		c, err := scanLLMProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

type FeedCategoryRepo struct{ db *sql.DB }

func NewFeedCategoryRepo(db *sql.DB) repository.FeedCategoryRepository {
	return &FeedCategoryRepo{db: db}
}

func (r *FeedCategoryRepo) Get(ctx context.Context, id string) (*entity.FeedCategory, error) {
	var c entity.FeedCategory
	err := r.db.QueryRowContext(ctx, `SELECT id, name, sort_order, created_at FROM feed_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &c, nil
}

func (r *FeedCategoryRepo) List(ctx context.Context) ([]*entity.FeedCategory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, sort_order, created_at FROM feed_categories ORDER BY sort_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*entity.FeedCategory
	for rows.Next() {
		var c entity.FeedCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *FeedCategoryRepo) Create(ctx context.Context, c *entity.FeedCategory) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO feed_categories (id, name, sort_order, created_at) VALUES ($1,$2,$3,now())`,
		c.ID, c.Name, c.SortOrder)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

type FeedSyncLogRepo struct{ db *sql.DB }

func NewFeedSyncLogRepo(db *sql.DB) repository.FeedSyncLogRepository {
	return &FeedSyncLogRepo{db: db}
}

func (r *FeedSyncLogRepo) Append(ctx context.Context, log *entity.FeedSyncLog) error {
	const query = `
INSERT INTO feed_sync_logs (sync_id, total_feeds, synced_feeds, failed_feeds, total_articles,
	status, start_time, end_time, total_time_ms, details, triggered_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.ExecContext(ctx, query, log.SyncID, log.TotalFeeds, log.SyncedFeeds, log.FailedFeeds,
		log.TotalArticles, log.Status, log.StartTime, log.EndTime, log.TotalTimeMs, log.Details, log.TriggeredBy)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

func (r *FeedSyncLogRepo) Get(ctx context.Context, syncID string) (*entity.FeedSyncLog, error) {
	var l entity.FeedSyncLog
	err := r.db.QueryRowContext(ctx, `
SELECT sync_id, total_feeds, synced_feeds, failed_feeds, total_articles, status, start_time, end_time, total_time_ms, details, triggered_by
FROM feed_sync_logs WHERE sync_id = $1`, syncID).
		Scan(&l.SyncID, &l.TotalFeeds, &l.SyncedFeeds, &l.FailedFeeds, &l.TotalArticles, &l.Status,
			&l.StartTime, &l.EndTime, &l.TotalTimeMs, &l.Details, &l.TriggeredBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &l, nil
}

func (r *FeedSyncLogRepo) List(ctx context.Context, req repository.PageRequest) (repository.Page[*entity.FeedSyncLog], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_sync_logs`).Scan(&total); err != nil {
		return repository.Page[*entity.FeedSyncLog]{}, fmt.Errorf("List: count: %w", err)
	}

	offset := (req.Page - 1) * req.PerPage
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sync_id, total_feeds, synced_feeds, failed_feeds, total_articles, status, start_time, end_time, total_time_ms, details, triggered_by
FROM feed_sync_logs ORDER BY start_time DESC LIMIT $1 OFFSET $2`, req.PerPage, offset)
	if err != nil {
		return repository.Page[*entity.FeedSyncLog]{}, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.FeedSyncLog, 0, req.PerPage)
	for rows.Next() {
		var l entity.FeedSyncLog
		if err := rows.Scan(&l.SyncID, &l.TotalFeeds, &l.SyncedFeeds, &l.FailedFeeds, &l.TotalArticles, &l.Status,
			&l.StartTime, &l.EndTime, &l.TotalTimeMs, &l.Details, &l.TriggeredBy); err != nil {
			return repository.Page[*entity.FeedSyncLog]{}, fmt.Errorf("List: scan: %w", err)
		}
		list = append(list, &l)
	}
	return repository.NewPage(list, total, req), rows.Err()
}
