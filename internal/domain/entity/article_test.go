package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticle_Validate(t *testing.T) {
	tests := []struct {
		name    string
		article Article
		wantErr bool
	}{
		{
			name:    "valid article",
			article: Article{Link: "https://example.com/a1", Title: "Hello"},
			wantErr: false,
		},
		{
			name:    "missing link",
			article: Article{Title: "Hello"},
			wantErr: true,
		},
		{
			name:    "missing title",
			article: Article{Link: "https://example.com/a1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.article.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArticle_IsTerminalFailure(t *testing.T) {
	a := Article{Status: ArticleStatusFailed, RetryCount: 3, MaxRetries: 3}
	assert.True(t, a.IsTerminalFailure())

	a.RetryCount = 2
	assert.False(t, a.IsTerminalFailure())

	a.Status = ArticleStatusOK
	a.RetryCount = 3
	assert.False(t, a.IsTerminalFailure())
}

func TestArticle_IsLeaseExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	timeout := 10 * time.Minute

	a := Article{}
	assert.True(t, a.IsLeaseExpired(now, timeout))

	locked := now.Add(-1 * time.Minute)
	a.Lease = CrawlLease{IsLocked: true, LockTimestamp: &locked}
	assert.False(t, a.IsLeaseExpired(now, timeout))

	stale := now.Add(-11 * time.Minute)
	a.Lease = CrawlLease{IsLocked: true, LockTimestamp: &stale}
	assert.True(t, a.IsLeaseExpired(now, timeout))
}
