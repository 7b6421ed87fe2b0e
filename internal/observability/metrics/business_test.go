package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordArticlesFetched(t *testing.T) {
	tests := []struct {
		name   string
		feedID string
		count  int
	}{
		{name: "single article", feedID: "feed-1", count: 1},
		{name: "multiple articles", feedID: "feed-2", count: 10},
		{name: "zero articles", feedID: "feed-3", count: 0},
		{name: "empty feed id", feedID: "", count: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordArticlesFetched(tt.feedID, tt.count)
			})
		})
	}
}

func TestRecordArticleSummarized(t *testing.T) {
	tests := []struct {
		name    string
		success bool
	}{
		{name: "success", success: true},
		{name: "failure", success: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordArticleSummarized(tt.success)
			})
		})
	}
}

func TestRecordSummarizationDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
	}{
		{name: "fast response", duration: 100 * time.Millisecond},
		{name: "normal response", duration: 1 * time.Second},
		{name: "slow response", duration: 5 * time.Second},
		{name: "zero duration", duration: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordSummarizationDuration(tt.duration)
			})
		})
	}
}

func TestRecordFeedCrawl(t *testing.T) {
	tests := []struct {
		name            string
		feedID          string
		duration        time.Duration
		itemsFound      int64
		itemsInserted   int64
		itemsDuplicated int64
	}{
		{name: "successful crawl", feedID: "feed-1", duration: 2 * time.Second, itemsFound: 10, itemsInserted: 8, itemsDuplicated: 2},
		{name: "empty crawl", feedID: "feed-2", duration: 500 * time.Millisecond, itemsFound: 0, itemsInserted: 0, itemsDuplicated: 0},
		{name: "all duplicates", feedID: "feed-3", duration: 1 * time.Second, itemsFound: 5, itemsInserted: 0, itemsDuplicated: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFeedCrawl(tt.feedID, tt.duration, tt.itemsFound, tt.itemsInserted, tt.itemsDuplicated)
			})
		})
	}
}

func TestRecordFeedCrawlError(t *testing.T) {
	tests := []struct {
		name      string
		feedID    string
		errorType string
	}{
		{name: "fetch failed", feedID: "feed-1", errorType: "fetch_failed"},
		{name: "parse error", feedID: "feed-2", errorType: "parse_error"},
		{name: "timeout", feedID: "feed-3", errorType: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFeedCrawlError(tt.feedID, tt.errorType)
			})
		})
	}
}

func TestUpdateArticlesTotal(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{name: "zero articles", count: 0},
		{name: "some articles", count: 100},
		{name: "many articles", count: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateArticlesTotal(tt.count)
			})
		})
	}
}

func TestUpdateFeedsTotal(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{name: "zero feeds", count: 0},
		{name: "some feeds", count: 10},
		{name: "many feeds", count: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateFeedsTotal(tt.count)
			})
		})
	}
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
	}{
		{name: "select query", operation: "select_articles", duration: 10 * time.Millisecond},
		{name: "insert query", operation: "insert_article", duration: 5 * time.Millisecond},
		{name: "slow query", operation: "complex_join", duration: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDBQuery(tt.operation, tt.duration)
			})
		})
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	tests := []struct {
		name   string
		active int
		idle   int
	}{
		{name: "no connections", active: 0, idle: 0},
		{name: "some active", active: 5, idle: 10},
		{name: "all active", active: 25, idle: 0},
		{name: "all idle", active: 0, idle: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDBConnectionStats(tt.active, tt.idle)
			})
		})
	}
}

func TestRecordContentFetch(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordContentFetchSuccess(200*time.Millisecond, 4096)
		RecordContentFetchFailed(50 * time.Millisecond)
		RecordContentFetchSkipped()
	})
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordArticlesFetched("feed-1", 10)
		RecordArticleSummarized(true)
		RecordSummarizationDuration(1 * time.Second)
		RecordFeedCrawl("feed-1", 2*time.Second, 10, 8, 2)
		RecordFeedCrawlError("feed-1", "test_error")
		UpdateArticlesTotal(100)
		UpdateFeedsTotal(10)
		RecordDBQuery("test_operation", 10*time.Millisecond)
		UpdateDBConnectionStats(5, 10)
	})
}
