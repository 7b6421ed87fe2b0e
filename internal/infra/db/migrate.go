package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/feed_categories.sql
var seedFeedCategoriesSQL string

// MigrateUp creates every table the coordinator's store adapters (C1), the
// pgvector-backed vector store (C2), and the model-provider registry (C3)
// read and write. Every statement is idempotent so MigrateUp is safe to run
// on every process start, matching the teacher's IF NOT EXISTS / ON CONFLICT
// style migration.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_categories (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    sort_order INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feeds (
    id                       TEXT PRIMARY KEY,
    url                      TEXT NOT NULL,
    category_id              TEXT REFERENCES feed_categories(id),
    title                    TEXT NOT NULL,
    description              TEXT NOT NULL DEFAULT '',
    logo                     TEXT NOT NULL DEFAULT '',
    is_active                BOOLEAN NOT NULL DEFAULT TRUE,
    last_sync_at             TIMESTAMPTZ,
    last_successful_sync_at  TIMESTAMPTZ,
    last_sync_status         TEXT NOT NULL DEFAULT 'none',
    consecutive_failures     INT NOT NULL DEFAULT 0,
    last_sync_error          TEXT NOT NULL DEFAULT '',
    last_sync_crawler_id     TEXT,
    last_sync_started_at     TIMESTAMPTZ,
    crawl_with_js            BOOLEAN NOT NULL DEFAULT FALSE,
    crawl_delay_s            INT NOT NULL DEFAULT 0,
    custom_headers           JSONB NOT NULL DEFAULT '{}',
    use_proxy                BOOLEAN NOT NULL DEFAULT FALSE,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS article_contents (
    id           BIGSERIAL PRIMARY KEY,
    html_content TEXT NOT NULL DEFAULT '',
    text_content TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id                    BIGSERIAL PRIMARY KEY,
    feed_id               TEXT NOT NULL REFERENCES feeds(id),
    link                  TEXT NOT NULL UNIQUE,
    title                 TEXT NOT NULL,
    summary               TEXT,
    chinese_summary       TEXT,
    english_summary       TEXT,
    thumbnail_url         TEXT NOT NULL DEFAULT '',
    published_date        TIMESTAMPTZ,
    status                TEXT NOT NULL DEFAULT 'pending',
    is_locked             BOOLEAN NOT NULL DEFAULT FALSE,
    lock_timestamp        TIMESTAMPTZ,
    crawler_id            TEXT,
    retry_count           INT NOT NULL DEFAULT 0,
    max_retries           INT NOT NULL DEFAULT 3,
    error_message         TEXT,
    content_id            BIGINT REFERENCES article_contents(id),
    is_vectorized         BOOLEAN NOT NULL DEFAULT FALSE,
    vector_id             TEXT,
    vectorized_at         TIMESTAMPTZ,
    embedding_model       TEXT,
    vector_dimension      INT,
    vectorization_status  TEXT NOT NULL DEFAULT 'pending',
    vectorization_error   TEXT,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// Selection and queue-ordering indexes: pending_feeds, pending_articles,
	// get_articles_for_vectorization all filter and order by these columns.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_feeds_active_failures ON feeds(is_active, consecutive_failures)`,
		`CREATE INDEX IF NOT EXISTS idx_feeds_category_id ON feeds(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_status_locked ON articles(status, is_locked)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_vectorization_status ON articles(vectorization_status)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_date ON articles(published_date DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// ILIKE search acceleration, kept from the teacher's own trigram approach.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	searchIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_title_gin ON articles USING gin(title gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_summary_gin ON articles USING gin(summary gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		_, _ = db.Exec(idx)
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS crawl_batches (
    batch_id                  TEXT PRIMARY KEY,
    article_id                BIGINT NOT NULL REFERENCES articles(id),
    feed_id                   TEXT NOT NULL REFERENCES feeds(id),
    crawler_id                TEXT NOT NULL DEFAULT '',
    final_status              TEXT NOT NULL,
    error_stage               TEXT NOT NULL DEFAULT '',
    error_type                TEXT NOT NULL DEFAULT '',
    error_message             TEXT NOT NULL DEFAULT '',
    original_html_size        BIGINT NOT NULL DEFAULT 0,
    processed_html_size       BIGINT NOT NULL DEFAULT 0,
    processed_text_size       BIGINT NOT NULL DEFAULT 0,
    content_hash              TEXT NOT NULL DEFAULT '',
    started_at                TIMESTAMPTZ NOT NULL,
    ended_at                  TIMESTAMPTZ NOT NULL,
    total_processing_time_ms  BIGINT NOT NULL DEFAULT 0,
    max_memory_usage_bytes    BIGINT NOT NULL DEFAULT 0,
    avg_cpu_usage_percent     DOUBLE PRECISION NOT NULL DEFAULT 0,
    image_count               INT NOT NULL DEFAULT 0,
    link_count                INT NOT NULL DEFAULT 0,
    video_count               INT NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS crawl_logs (
    id          BIGSERIAL PRIMARY KEY,
    batch_id    TEXT NOT NULL REFERENCES crawl_batches(batch_id) ON DELETE CASCADE,
    stage       TEXT NOT NULL,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    message     TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_crawl_logs_batch_id ON crawl_logs(batch_id)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_crawl_batches_feed_id ON crawl_batches(feed_id)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_extraction_scripts (
    id           BIGSERIAL PRIMARY KEY,
    feed_id      TEXT NOT NULL REFERENCES feeds(id),
    version      INT NOT NULL,
    script       TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	// At most one published script per feed.
	if _, err := db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_feed_extraction_scripts_published
    ON feed_extraction_scripts(feed_id) WHERE is_published`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS vectorization_tasks (
    batch_id        TEXT PRIMARY KEY,
    article_id      BIGINT NOT NULL REFERENCES articles(id),
    total           INT NOT NULL DEFAULT 0,
    processed       INT NOT NULL DEFAULT 0,
    success         INT NOT NULL DEFAULT 0,
    failed          INT NOT NULL DEFAULT 0,
    started_at      TIMESTAMPTZ NOT NULL,
    ended_at        TIMESTAMPTZ,
    embedding_model TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    error_message   TEXT NOT NULL DEFAULT ''
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS daily_summaries (
    id                     BIGSERIAL PRIMARY KEY,
    feed_id                TEXT NOT NULL REFERENCES feeds(id),
    summary_date           DATE NOT NULL,
    language               TEXT NOT NULL,
    summary_title          TEXT NOT NULL DEFAULT '',
    summary_content        TEXT NOT NULL DEFAULT '',
    article_count          INT NOT NULL DEFAULT 0,
    article_ids            BIGINT[] NOT NULL DEFAULT '{}',
    llm_provider           TEXT NOT NULL DEFAULT '',
    llm_model              TEXT NOT NULL DEFAULT '',
    generation_cost_tokens INT NOT NULL DEFAULT 0,
    status                 TEXT NOT NULL,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (feed_id, summary_date, language)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS raw_hot_topics (
    id          BIGSERIAL PRIMARY KEY,
    platform    TEXT NOT NULL,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active',
    topic_date  DATE NOT NULL
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_raw_hot_topics_date_status ON raw_hot_topics(topic_date, status)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS unified_hot_topics (
    id                   BIGSERIAL PRIMARY KEY,
    topic_date           DATE NOT NULL,
    unified_title        TEXT NOT NULL,
    unified_summary      TEXT NOT NULL,
    keywords             TEXT[] NOT NULL DEFAULT '{}',
    category             TEXT NOT NULL,
    related_topic_hashes TEXT[] NOT NULL DEFAULT '{}',
    source_platforms     TEXT[] NOT NULL DEFAULT '{}',
    topic_count          INT NOT NULL DEFAULT 0,
    representative_url   TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_unified_hot_topics_date ON unified_hot_topics(topic_date)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_sync_logs (
    sync_id        TEXT PRIMARY KEY,
    total_feeds    INT NOT NULL DEFAULT 0,
    synced_feeds   INT NOT NULL DEFAULT 0,
    failed_feeds   INT NOT NULL DEFAULT 0,
    total_articles INT NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    start_time     TIMESTAMPTZ NOT NULL,
    end_time       TIMESTAMPTZ,
    total_time_ms  BIGINT NOT NULL DEFAULT 0,
    details        TEXT NOT NULL DEFAULT '',
    triggered_by   TEXT NOT NULL DEFAULT ''
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS llm_provider_configs (
    id                 BIGSERIAL PRIMARY KEY,
    provider_type      TEXT NOT NULL UNIQUE,
    api_key            TEXT NOT NULL DEFAULT '',
    api_secret         TEXT NOT NULL DEFAULT '',
    app_id             TEXT NOT NULL DEFAULT '',
    app_secret         TEXT NOT NULL DEFAULT '',
    api_base_url       TEXT NOT NULL DEFAULT '',
    api_version        TEXT NOT NULL DEFAULT '',
    region             TEXT NOT NULL DEFAULT '',
    request_timeout_ms BIGINT NOT NULL DEFAULT 30000,
    max_retries        INT NOT NULL DEFAULT 3,
    default_model      TEXT NOT NULL DEFAULT '',
    is_active          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// Vector store (C2): pgvector-backed collections. A single table holds
	// every collection's records; collection_name plus an unconstrained
	// vector column let one database serve many embedding models/dimensions
	// at once, at the cost of a single shared ANN index (see Search's plain
	// distance-ordered scan rather than an ivfflat index here).
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS vector_collections (
    name       TEXT PRIMARY KEY,
    dimension  INT NOT NULL,
    metric     TEXT NOT NULL DEFAULT 'cosine',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS vector_records (
    collection_name TEXT NOT NULL REFERENCES vector_collections(name),
    record_id       TEXT NOT NULL,
    embedding       vector NOT NULL,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection_name, record_id)
)`); err != nil {
		return err
	}

	// Seed data (reference feed categories); duplicates are skipped.
	if _, err := db.Exec(seedFeedCategoriesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the vector-store tables only, leaving the
// relational entities of §3 intact. Use with caution: this deletes every
// stored embedding.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS vector_records CASCADE`,
		`DROP TABLE IF EXISTS vector_collections CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	// Note: we do NOT drop the vector extension, feeds, or articles tables.
	return nil
}

// MigrateDownVectorStoreOnly is an alias for MigrateDown kept for operator
// familiarity with the teacher's targeted-rollback naming.
func MigrateDownVectorStoreOnly(db *sql.DB) error {
	return MigrateDown(db)
}
