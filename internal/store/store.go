// Package store is the document store behind the sync engine. Events are
// persisted as JSON documents addressed by user, calendar, provider event id
// and base reference; multi-document sync actions run inside a session so a
// reader never observes a half-applied series split.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/calmirror/calmirror/internal/dates"
	"github.com/calmirror/calmirror/internal/event"
)

var ErrNotFound = errors.New("event not found")

// Filter selects event documents. Zero-valued fields are ignored.
type Filter struct {
	ID       string
	User     string
	Calendar string
	// GEventID matches the provider-assigned event id.
	GEventID string
	// BaseID matches instances whose recurrence references this base
	// document.
	BaseID string
	// StartOnOrAfter keeps only events starting on or after this instant.
	StartOnOrAfter time.Time
}

// EventStore is the persistence contract the sync processor writes through.
//
// InsertMany tolerates duplicates: items that collide with an existing
// (user, calendar, provider id) key are logged and skipped so a retried
// delivery cannot fail the whole batch. It returns the number actually
// inserted.
type EventStore interface {
	Find(ctx context.Context, f Filter) ([]event.Event, error)
	FindOne(ctx context.Context, f Filter) (*event.Event, error)
	InsertMany(ctx context.Context, evs []event.Event) (int, error)
	// UpsertOne replaces the first document matching f, or inserts ev if
	// none matches. Reports whether a new document was created.
	UpsertOne(ctx context.Context, f Filter, ev event.Event) (bool, error)
	// UpdateOne applies fn to the first document matching f and persists
	// the result, returning the updated document.
	UpdateOne(ctx context.Context, f Filter, fn func(*event.Event)) (*event.Event, error)
	DeleteOne(ctx context.Context, f Filter) (int64, error)
	DeleteMany(ctx context.Context, f Filter) (int64, error)
	// WithSession runs fn against a session-scoped view of the store.
	// Implementations back this with a transaction where they can.
	WithSession(ctx context.Context, fn func(s EventStore) error) error
}

// startUnix parses a stored event date for range filtering. Unparseable
// dates sort first so they are never mistaken for future instances.
func startUnix(stored string) int64 {
	t, _, ok := dates.ParseStored(stored)
	if !ok {
		return 0
	}
	return t.Unix()
}
