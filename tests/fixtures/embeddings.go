// Package fixtures provides reusable test data generators for integration tests.
package fixtures

import (
	"fmt"

	"github.com/ossfeed/coordinator/internal/infra/vectorstore"
)

// RecordOption is a functional option for customizing test vector records.
type RecordOption func(*vectorstore.Record)

// NewTestRecord creates a valid vector-store Record with sensible defaults:
// the id format the vectorization scheduler assigns (article_{feed}_{id})
// and the metadata keys it writes alongside every upsert.
// Use functional options to customize the record for specific test cases.
//
// Example:
//
//	rec := NewTestRecord()
//	rec := NewTestRecord(WithRecordID("article_f2_42"), WithDimension(3072))
func NewTestRecord(opts ...RecordOption) *vectorstore.Record {
	r := &vectorstore.Record{
		ID:     "article_f1_1",
		Vector: GenerateTestVector(1536, 0.1),
		Metadata: map[string]any{
			"article_id":     int64(1),
			"feed_id":        "f1",
			"title":          "Test Article",
			"summary":        "A short summary used by similarity tests.",
			"published_date": "2024-01-02T10:00:00Z",
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// WithRecordID sets the record id.
func WithRecordID(id string) RecordOption {
	return func(r *vectorstore.Record) {
		r.ID = id
	}
}

// WithArticle sets the id and metadata to refer to the given feed/article
// pair, keeping the id format and metadata consistent.
func WithArticle(feedID string, articleID int64) RecordOption {
	return func(r *vectorstore.Record) {
		r.ID = fmt.Sprintf("article_%s_%d", feedID, articleID)
		r.Metadata["article_id"] = articleID
		r.Metadata["feed_id"] = feedID
	}
}

// WithDimension regenerates the vector at the given dimension.
func WithDimension(dim int) RecordOption {
	return func(r *vectorstore.Record) {
		r.Vector = GenerateTestVector(dim, 0.1)
	}
}

// WithVector sets the vector directly.
func WithVector(vec []float32) RecordOption {
	return func(r *vectorstore.Record) {
		r.Vector = vec
	}
}

// WithMetadata merges the given keys into the record's metadata.
func WithMetadata(meta map[string]any) RecordOption {
	return func(r *vectorstore.Record) {
		for k, v := range meta {
			r.Metadata[k] = v
		}
	}
}

// GenerateTestVector creates a deterministic vector of the specified dimension.
// The seed value is used to generate predictable but different vectors for testing.
//
// Example:
//
//	vec := GenerateTestVector(1536, 0.1) // [0.1, 0.101, 0.102, ...]
//	vec := GenerateTestVector(1536, 0.5) // [0.5, 0.501, 0.502, ...]
func GenerateTestVector(dimension int, seed float32) []float32 {
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = seed + float32(i)*0.001
	}
	return vec
}

// ZeroVector creates a vector of zeros with the specified dimension.
// Useful for testing edge cases with zero vectors.
//
// Example:
//
//	vec := ZeroVector(1536) // [0.0, 0.0, 0.0, ...]
func ZeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

// UnitVector creates a unit vector with 1.0 at the specified index and 0.0 elsewhere.
// Useful for testing specific similarity calculations.
//
// Example:
//
//	vec := UnitVector(1536, 0)    // [1.0, 0.0, 0.0, ...]
//	vec := UnitVector(1536, 100)  // [0.0, ..., 1.0, 0.0, ...]
func UnitVector(dimension int, index int) []float32 {
	vec := make([]float32, dimension)
	if index >= 0 && index < dimension {
		vec[index] = 1.0
	}
	return vec
}

// NormalizedVector creates a normalized vector (unit length) from the seed.
// The resulting vector has a magnitude of 1.0, suitable for cosine similarity tests.
//
// Example:
//
//	vec := NormalizedVector(1536, 0.1)
func NormalizedVector(dimension int, seed float32) []float32 {
	vec := GenerateTestVector(dimension, seed)

	// Calculate magnitude
	var magnitude float32
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = float32(sqrt64(float64(magnitude)))

	// Normalize
	if magnitude > 0 {
		for i := range vec {
			vec[i] /= magnitude
		}
	}

	return vec
}

// sqrt64 computes the square root of a float64.
// Using a simple Newton-Raphson method to avoid importing math package.
func sqrt64(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

// SimilarVector creates a vector directionally similar to the base vector.
// The retentionRatio parameter controls how much of the base vector is retained:
//   - 1.0 = identical to base vector (no perturbation)
//   - 0.0 = maximum perturbation (least similar)
//
// Note: This produces an approximate directionally similar vector for testing purposes.
// It does NOT guarantee a specific cosine similarity value.
//
// Example:
//
//	base := GenerateTestVector(1536, 0.1)
//	similar := SimilarVector(base, 0.9) // high retention, close to base
//	dissimilar := SimilarVector(base, 0.1) // low retention, far from base
func SimilarVector(base []float32, retentionRatio float32) []float32 {
	dimension := len(base)
	result := make([]float32, dimension)

	// Mix the base vector with a deterministic perturbation
	perturbation := 1.0 - retentionRatio
	for i := 0; i < dimension; i++ {
		// Add small perturbation based on index
		noise := perturbation * float32(i%10) * 0.01
		result[i] = base[i]*retentionRatio + noise
	}

	return result
}
