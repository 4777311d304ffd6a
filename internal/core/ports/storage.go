// Package ports defines the interfaces between the event pipeline and its
// pluggable adapters (storage, collector, sinks). Components accept these
// interfaces and return concrete types.
package ports

import (
	"context"

	"github.com/feedlab/feedlab/internal/core/domain"
)

// KV is the small key-value surface the roster persists through. Watch is the
// change-notification hook: durable state is shared last-write-wins across
// writers, and readers resynchronize when another writer touches a key.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Watch registers fn to run with the new value after every Set or Delete
	// of key. The returned function unsubscribes.
	Watch(key string, fn func(value string)) (unsubscribe func())

	Close() error
}

// RosterStore owns the durable, ordered collection of participant rows.
type RosterStore interface {
	// Load returns the roster in insertion order. Missing or corrupt durable
	// state degrades to an empty roster; Load never fails.
	Load(ctx context.Context) []domain.ParticipantRow

	// Upsert replaces the row sharing the new row's session id in place, or
	// appends when no such row exists, then persists the whole roster. It
	// returns the updated roster.
	Upsert(ctx context.Context, row domain.ParticipantRow) ([]domain.ParticipantRow, error)

	// Clear persists an empty roster.
	Clear(ctx context.Context) error

	// OnChange registers fn to run with the freshly loaded roster whenever
	// the durable state changes, including changes by other writers.
	OnChange(fn func([]domain.ParticipantRow)) (unsubscribe func())
}
