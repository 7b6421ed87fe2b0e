// Package pubsub is a thin, optional notification side channel over NATS.
// HTTP remains the contractual transport between the coordinator and its
// workers; a configured NATS connection lets a worker additionally
// subscribe to claim events instead of polling, but nothing in the
// coordinator depends on a subscriber being present.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Subjects used for best-effort claim notifications.
const (
	SubjectFeedClaimed          = "coordinator.feeds.claimed"
	SubjectArticleClaimed       = "coordinator.articles.claimed"
	SubjectVectorizationClaimed = "coordinator.vectorization.claimed"
)

// ClaimEvent is the payload published whenever a worker successfully
// claims a lease through the worker-facing RPC surface.
type ClaimEvent struct {
	ID        string    `json:"id"`
	ClaimedBy string    `json:"claimed_by"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Publisher wraps a *nats.Conn with the JSON envelope and trace
// propagation every publish call here uses. A nil *Publisher is valid and
// turns every method into a no-op, so callers never need a separate
// "is NATS configured" check.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials NATS_URL if set, returning a nil *Publisher (not an error)
// when no URL is configured — NATS notification is opt-in infrastructure,
// not a required dependency.
func Connect() (*Publisher, error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url, nats.Name("ossfeed-coordinator"), nats.MaxReconnects(5))
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	return &Publisher{conn: nc}, nil
}

// Close drains and closes the underlying connection. Safe to call on a nil
// Publisher.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// natsHeaderCarrier adapts nats.Msg headers for OTel's TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes event as JSON and publishes it on subject, injecting
// the caller's trace context into the message headers. A nil Publisher or
// a publish error is swallowed: claim notification is an optimization a
// worker can also get by polling, never something a claim's success should
// depend on.
func Publish[T any](ctx context.Context, p *Publisher, subject string, event T) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	_ = p.conn.PublishMsg(msg)
}

// Subscribe registers handler for JSON-encoded messages of type T on
// subject. Malformed messages are dropped rather than crashing the
// subscriber. Returns nil, nil on a nil Publisher.
func Subscribe[T any](p *Publisher, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	if p == nil || p.conn == nil {
		return nil, nil
	}
	return p.conn.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}
