// Package feedprobe validates a candidate feed URL before it is
// registered as a Feed: it fetches and parses the feed once and reports
// the metadata (title, description, logo) an operator would otherwise
// have to type by hand. It never writes anything; registration is the
// caller's job.
package feedprobe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ossfeed/coordinator/internal/resilience/circuitbreaker"
	"github.com/ossfeed/coordinator/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// Result is what a single probe learned about the feed.
type Result struct {
	Title         string
	Description   string
	Logo          string
	EntriesFound  int
	LatestEntryAt *time.Time
}

// Prober fetches and parses an RSS/Atom feed with circuit breaker and
// retry logic.
type Prober struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewProber creates a Prober using the given HTTP client. A nil client
// falls back to one with a 30-second timeout.
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Prober{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

// Probe fetches feedURL and parses it as RSS/Atom. SSRF validation of
// the URL is the registration path's job (Feed.Validate), not the
// probe's.
func (p *Prober) Probe(ctx context.Context, feedURL string) (*Result, error) {
	var result *Result
	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doProbe(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed probe circuit breaker open, request rejected",
					slog.String("url", feedURL),
					slog.String("state", p.circuitBreaker.State().String()))
			}
			return err
		}
		result = cbResult.(*Result)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return result, nil
}

func (p *Prober) doProbe(ctx context.Context, feedURL string) (*Result, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "ossfeed-coordinator"
	fp.Client = p.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Title:        feed.Title,
		Description:  feed.Description,
		EntriesFound: len(feed.Items),
	}
	if feed.Image != nil {
		result.Logo = feed.Image.URL
	}
	for _, it := range feed.Items {
		if it.PublishedParsed == nil {
			continue
		}
		if result.LatestEntryAt == nil || it.PublishedParsed.After(*result.LatestEntryAt) {
			result.LatestEntryAt = it.PublishedParsed
		}
	}
	return result, nil
}
