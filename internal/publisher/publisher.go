// Package publisher announces finished feed refreshes to a message broker.
package publisher

import (
	"context"
	"time"
)

// Event describes the outcome of refreshing one feed.
type Event struct {
	CycleID   string    `json:"cycleId"`
	FeedID    int64     `json:"feedId"`
	FeedURL   string    `json:"feedUrl"`
	State     string    `json:"state"`
	FailedAt  string    `json:"failedAt,omitempty"`
	Inserted  int       `json:"inserted"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers refresh events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
