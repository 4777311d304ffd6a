// Package session owns the in-memory event log for each participant session
// and the registry of live sessions.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/core/ports"
)

// Recorder accumulates one session's ordered event log. It is the exclusive
// owner of the log for the session's lifetime: the log is append-only and only
// an explicit administrative reset clears it. Recorder is safe for use from
// multiple goroutines; user-initiated events and tracker callbacks interleave
// in arrival order.
type Recorder struct {
	mu            sync.Mutex
	sessionID     string
	participantID string
	start         time.Time
	clock         func() time.Time
	events        []domain.Event
}

var _ ports.EventSink = (*Recorder)(nil)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) { r.clock = clock }
}

// NewRecorder creates a recorder for a fresh session. The session id is a
// locally generated opaque string, unique per process lifetime.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sessionID: "ses_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.clock()
	return r
}

// SessionID returns the session's opaque identifier.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// ParticipantID returns the self-reported participant id, or "" before entry.
func (r *Recorder) ParticipantID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantID
}

// SetParticipantID stores the participant's self-reported id and records the
// participant_id_entered event carrying it.
func (r *Recorder) SetParticipantID(id string) {
	r.mu.Lock()
	r.participantID = id
	r.mu.Unlock()

	r.Record(domain.ActionParticipantIDEntered, domain.Meta{Text: id})
}

// Record appends one event to the log and returns it. The only validation is
// a non-empty action; appends always succeed and are immediately visible to
// readers of Events.
func (r *Recorder) Record(action string, meta domain.Meta) (domain.Event, error) {
	if action == "" {
		return domain.Event{}, fmt.Errorf("record: empty action")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	evt := domain.Event{
		ID:            "evt_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		SessionID:     r.sessionID,
		ParticipantID: r.participantID,
		Timestamp:     domain.ISOTime(now),
		ElapsedMs:     now.Sub(r.start).Milliseconds(),
		Action:        action,
		Meta:          meta,
	}
	r.events = append(r.events, evt)
	return evt, nil
}

// Events returns a copy of the log in insertion order.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the current log length.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Clear empties the log. Used only via an explicit administrative reset,
// never automatically.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
