package ports

import (
	"context"

	"github.com/feedlab/feedlab/internal/core/domain"
)

// Collector delivers a completed participant row plus the raw event log to
// the remote research sink. Delivery is best effort: Send reports success as
// a boolean and never returns an error or panics, so a dead collector cannot
// block local persistence.
type Collector interface {
	Send(ctx context.Context, row domain.ParticipantRow, events []domain.Event) bool
}

// EventSink is where trackers emit derived events. The session recorder is
// the production implementation; tests substitute an in-memory sink.
type EventSink interface {
	Record(action string, meta domain.Meta) (domain.Event, error)
}
