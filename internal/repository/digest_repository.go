package repository

import (
	"context"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
)

// DailySummaryRepository is the store adapter for DailySummary (C8).
type DailySummaryRepository interface {
	// Get returns the existing row for (feedID, date, language), or nil.
	Get(ctx context.Context, feedID string, date time.Time, language entity.Language) (*entity.DailySummary, error)

	// Create inserts a new row. The (feed_id, summary_date, language) unique
	// constraint means a caller must check Get first to implement the
	// no-op-on-rerun policy.
	Create(ctx context.Context, summary *entity.DailySummary) error

	List(ctx context.Context, filter Filter, req PageRequest) (Page[*entity.DailySummary], error)
}

// RawHotTopicRepository is the store adapter for the raw per-platform hot
// topics the aggregator consumes.
type RawHotTopicRepository interface {
	ForDate(ctx context.Context, date time.Time) ([]*entity.RawHotTopic, error)
}

// UnifiedHotTopicRepository is the store adapter for UnifiedHotTopic (C9).
type UnifiedHotTopicRepository interface {
	// ReplaceForDate deletes every row for date then inserts topics, in one
	// transaction.
	ReplaceForDate(ctx context.Context, date time.Time, topics []*entity.UnifiedHotTopic) error

	ForDate(ctx context.Context, date time.Time) ([]*entity.UnifiedHotTopic, error)
}

// LLMProviderConfigRepository is the store adapter for stored provider
// credentials (C3's registry backing store).
type LLMProviderConfigRepository interface {
	Get(ctx context.Context, providerType string) (*entity.LLMProviderConfig, error)
	GetDefault(ctx context.Context) (*entity.LLMProviderConfig, error)
	List(ctx context.Context) ([]*entity.LLMProviderConfig, error)
}
