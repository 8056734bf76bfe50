package publisher

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/dealscout/internal/product"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message under key to one of the streams
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// ScrapeEvent is the message emitted for a finished scrape.
type ScrapeEvent struct {
	Website   string           `json:"website"`
	Filters   product.Filter   `json:"filters"`
	Products  []product.Record `json:"products"`
	Timestamp time.Time        `json:"timestamp"`
}

// PublishScrape encodes ev as JSON and publishes it keyed by website.
func PublishScrape(ctx context.Context, p Publisher, ev ScrapeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ev.Website, data)
}

// NoopPublisher drops every message. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) TrimStreams(context.Context) error             { return nil }
func (NoopPublisher) Close() error                                  { return nil }
