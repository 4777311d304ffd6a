// Package tracking derives view_start/view_end and scroll events from the raw
// viewport observations clients report.
package tracking

import (
	"sync"
	"time"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/core/ports"
)

// maxIntervalMs bounds a single visible interval to one hour. A backgrounded
// tab can hold an interval open indefinitely; the clamp keeps pathological
// durations out of the accumulated totals.
const maxIntervalMs = int64(time.Hour / time.Millisecond)

// Observation is one reported intersection sample for a feed post.
type Observation struct {
	PostID string  `json:"post_id"`
	Ratio  float64 `json:"ratio"`
}

// VisibilityTracker turns intersection samples into paired view_start /
// view_end events and accumulates per-post dwell time. Observation batches
// may repeat the current state (hosts fire multiple threshold callbacks per
// transition); the tracker only reacts to actual transitions.
type VisibilityTracker struct {
	mu      sync.Mutex
	sink    ports.EventSink
	clock   func() time.Time
	targets map[string]bool
	state   map[string]*domain.VisibilityState
}

// VisibilityOption configures a VisibilityTracker.
type VisibilityOption func(*VisibilityTracker)

// WithVisibilityClock substitutes the wall clock, for tests.
func WithVisibilityClock(clock func() time.Time) VisibilityOption {
	return func(t *VisibilityTracker) { t.clock = clock }
}

// NewVisibility creates a tracker emitting into sink. No posts are observed
// until SetTargets registers them.
func NewVisibility(sink ports.EventSink, opts ...VisibilityOption) *VisibilityTracker {
	t := &VisibilityTracker{
		sink:    sink,
		clock:   time.Now,
		targets: make(map[string]bool),
		state:   make(map[string]*domain.VisibilityState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetTargets replaces the registered post set, e.g. after the feed is
// re-ordered. Posts leaving the set have their open interval closed first so
// the old registration cannot leak a dangling view_start.
func (t *VisibilityTracker) SetTargets(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]bool, len(ids))
	for _, id := range ids {
		next[id] = true
	}

	now := t.clock()
	for id, st := range t.state {
		if st.Visible && !next[id] {
			t.closeInterval(id, st, now)
		}
	}
	t.targets = next
}

// Observe processes one batch of intersection samples.
func (t *VisibilityTracker) Observe(entries []Observation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	for _, e := range entries {
		if e.PostID == "" || !t.targets[e.PostID] {
			continue
		}

		st := t.state[e.PostID]
		if st == nil {
			st = &domain.VisibilityState{}
			t.state[e.PostID] = st
		}

		switch {
		case e.Ratio > 0 && !st.Visible:
			st.Visible = true
			st.IntervalStart = now
			t.sink.Record(domain.ActionViewStart, domain.Meta{PostID: e.PostID, Ratio: e.Ratio})
		case e.Ratio <= 0 && st.Visible:
			t.closeInterval(e.PostID, st, now)
		}
	}
}

// closeInterval ends an open visible interval, clamping the duration to
// [0, maxIntervalMs]. Callers must hold t.mu.
func (t *VisibilityTracker) closeInterval(postID string, st *domain.VisibilityState, now time.Time) {
	dur := now.Sub(st.IntervalStart).Milliseconds()
	if dur < 0 {
		dur = 0
	}
	if dur > maxIntervalMs {
		dur = maxIntervalMs
	}
	st.AccumulatedMs += dur
	st.Visible = false
	t.sink.Record(domain.ActionViewEnd, domain.Meta{
		PostID:     postID,
		DurationMs: dur,
		TotalMs:    st.AccumulatedMs,
	})
}

// Accumulated returns the total dwell time recorded for a post so far, not
// counting a still-open interval.
func (t *VisibilityTracker) Accumulated(postID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st := t.state[postID]; st != nil {
		return st.AccumulatedMs
	}
	return 0
}

// Reset drops all visibility state. Registered targets are kept.
func (t *VisibilityTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = make(map[string]*domain.VisibilityState)
}
