package vectorstore

import (
	"database/sql"
	"fmt"
	"os"
)

// NewFromEnv selects a Store implementation by VECTOR_STORE_DRIVER ("pgvector",
// the default, or "qdrant" with QDRANT_ADDR set).
func NewFromEnv(db *sql.DB) (Store, error) {
	driver := os.Getenv("VECTOR_STORE_DRIVER")
	switch driver {
	case "", "pgvector":
		return NewPGVectorStore(db), nil
	case "qdrant":
		addr := os.Getenv("QDRANT_ADDR")
		if addr == "" {
			return nil, fmt.Errorf("vectorstore: QDRANT_ADDR is required when VECTOR_STORE_DRIVER=qdrant")
		}
		return NewQdrantStore(addr)
	default:
		return nil, fmt.Errorf("vectorstore: unknown driver %q", driver)
	}
}
