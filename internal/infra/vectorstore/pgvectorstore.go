package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"
)

// PGVectorStore implements Store on top of the coordinator's own Postgres
// database, using the pgvector extension. Collections map to rows sharing a
// collection_name column in a single vector_records table; there is no
// native per-collection dimension enforcement, so CreateIndex just records
// the declared dimension for IndexExists/bootstrap bookkeeping.
type PGVectorStore struct {
	db *sql.DB

	mu   sync.Mutex
	dims map[string]int
}

func NewPGVectorStore(db *sql.DB) *PGVectorStore {
	return &PGVectorStore{db: db, dims: make(map[string]int)}
}

func (s *PGVectorStore) IndexExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`, collection).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("IndexExists: %w", err)
	}
	return exists, nil
}

func (s *PGVectorStore) CreateIndex(ctx context.Context, collection string, dim int, metric string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_collections (name, dimension, metric, created_at) VALUES ($1,$2,$3,now())
ON CONFLICT (name) DO NOTHING`, collection, dim, metric)
	if err != nil {
		return fmt.Errorf("CreateIndex: %w", err)
	}
	s.mu.Lock()
	s.dims[collection] = dim
	s.mu.Unlock()
	return nil
}

func (s *PGVectorStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	const query = `
INSERT INTO vector_records (collection_name, record_id, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (collection_name, record_id)
DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, created_at = now()`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("Upsert: marshal metadata: %w", err)
		}
		vec := pgvector.NewVector(r.Vector)
		if _, err := tx.ExecContext(ctx, query, collection, r.ID, vec, metaJSON); err != nil {
			return fmt.Errorf("Upsert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PGVectorStore) Search(ctx context.Context, collection string, query []float32, topK int, filter map[string]any) ([]SearchHit, error) {
	vec := pgvector.NewVector(query)
	const sqlQuery = `
SELECT record_id, metadata, 1 - (embedding <=> $1) AS similarity
FROM vector_records
WHERE collection_name = $2
ORDER BY embedding <=> $1
LIMIT $3`
	rows, err := s.db.QueryContext(ctx, sqlQuery, vec, collection, topK)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		var id string
		var metaJSON []byte
		var score float64
		if err := rows.Scan(&id, &metaJSON, &score); err != nil {
			return nil, fmt.Errorf("Search: scan: %w", err)
		}
		var meta map[string]any
		_ = json.Unmarshal(metaJSON, &meta)
		if !matchesFilter(meta, filter) {
			continue
		}
		hits = append(hits, SearchHit{ID: id, Score: score, Metadata: meta})
	}
	return hits, rows.Err()
}

func (s *PGVectorStore) Get(ctx context.Context, collection string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	records := make([]Record, 0, len(ids))
	const query = `SELECT record_id, embedding, metadata FROM vector_records WHERE collection_name = $1 AND record_id = $2`
	for _, id := range ids {
		var recID string
		var vec pgvector.Vector
		var metaJSON []byte
		err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&recID, &vec, &metaJSON)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Get: %w", err)
		}
		var meta map[string]any
		_ = json.Unmarshal(metaJSON, &meta)
		records = append(records, Record{ID: recID, Vector: vec.Slice(), Metadata: meta})
	}
	return records, nil
}

func (s *PGVectorStore) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if len(filter) == 0 {
		var count int64
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_records WHERE collection_name = $1`, collection).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("Count: %w", err)
		}
		return count, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT metadata FROM vector_records WHERE collection_name = $1`, collection)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var count int64
	for rows.Next() {
		var metaJSON []byte
		if err := rows.Scan(&metaJSON); err != nil {
			return 0, fmt.Errorf("Count: scan: %w", err)
		}
		var meta map[string]any
		_ = json.Unmarshal(metaJSON, &meta)
		if matchesFilter(meta, filter) {
			count++
		}
	}
	return count, rows.Err()
}

func matchesFilter(meta map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		if fmt.Sprint(meta[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
