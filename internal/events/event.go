package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type names a cache lifecycle event.
type Type string

const (
	EntryWritten Type = "entry_written"
	EntryRemoved Type = "entry_removed"
	EntryExpired Type = "entry_expired"
	CacheCleared Type = "cache_cleared"
)

// Event describes one change to the cache contents.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Key        string    `json:"key,omitempty"`
	Size       int       `json:"size,omitempty"`
	TTLSeconds int64     `json:"ttlSeconds,omitempty"`
	Count      int       `json:"count,omitempty"`
	At         time.Time `json:"at"`
}

// New returns an event of type t for key, stamped with a fresh ID.
func New(t Type, key string) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: t,
		Key:  key,
		At:   time.Now().UTC(),
	}
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
