package tracking

import (
	"testing"
	"time"

	"github.com/feedlab/feedlab/internal/core/domain"
)

// memSink collects emitted events for assertions.
type memSink struct {
	events []domain.Event
}

func (s *memSink) Record(action string, meta domain.Meta) (domain.Event, error) {
	evt := domain.Event{Action: action, Meta: meta}
	s.events = append(s.events, evt)
	return evt, nil
}

func (s *memSink) byAction(action string) []domain.Event {
	var out []domain.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newVisibilityFixture(targets ...string) (*VisibilityTracker, *memSink, *time.Time) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sink := &memSink{}
	tr := NewVisibility(sink, WithVisibilityClock(func() time.Time { return now }))
	tr.SetTargets(targets)
	return tr, sink, &now
}

func TestVisibility_PairedStartEnd(t *testing.T) {
	tr, sink, now := newVisibilityFixture("p1")

	tr.Observe([]Observation{{PostID: "p1", Ratio: 0.4}})
	*now = now.Add(2 * time.Second)
	tr.Observe([]Observation{{PostID: "p1", Ratio: 0}})

	starts := sink.byAction(domain.ActionViewStart)
	ends := sink.byAction(domain.ActionViewEnd)
	if len(starts) != 1 || len(ends) != 1 {
		t.Fatalf("starts = %d, ends = %d, want 1 and 1", len(starts), len(ends))
	}
	if starts[0].Ratio != 0.4 {
		t.Errorf("view_start ratio = %v, want 0.4", starts[0].Ratio)
	}
	if ends[0].DurationMs != 2000 {
		t.Errorf("view_end duration = %d, want 2000", ends[0].DurationMs)
	}
	if ends[0].TotalMs != 2000 {
		t.Errorf("view_end total = %d, want 2000", ends[0].TotalMs)
	}
	if tr.Accumulated("p1") != 2000 {
		t.Errorf("Accumulated = %d, want 2000", tr.Accumulated("p1"))
	}
}

func TestVisibility_IdempotentWhileVisible(t *testing.T) {
	tr, sink, _ := newVisibilityFixture("p1")

	for i := 0; i < 5; i++ {
		tr.Observe([]Observation{{PostID: "p1", Ratio: 0.8}})
	}

	if n := len(sink.byAction(domain.ActionViewStart)); n != 1 {
		t.Fatalf("view_start count = %d, want 1", n)
	}
}

func TestVisibility_IdempotentWhileHidden(t *testing.T) {
	tr, sink, _ := newVisibilityFixture("p1")

	tr.Observe([]Observation{{PostID: "p1", Ratio: 0}})
	tr.Observe([]Observation{{PostID: "p1", Ratio: 0}})

	if len(sink.events) != 0 {
		t.Fatalf("hidden-to-hidden transitions emitted %d events, want 0", len(sink.events))
	}
}

func TestVisibility_DurationClampedToOneHour(t *testing.T) {
	tr, sink, now := newVisibilityFixture("p1")

	tr.Observe([]Observation{{PostID: "p1", Ratio: 1}})
	*now = now.Add(7 * time.Hour) // backgrounded tab
	tr.Observe([]Observation{{PostID: "p1", Ratio: 0}})

	ends := sink.byAction(domain.ActionViewEnd)
	if len(ends) != 1 {
		t.Fatalf("view_end count = %d, want 1", len(ends))
	}
	if ends[0].DurationMs != maxIntervalMs {
		t.Errorf("clamped duration = %d, want %d", ends[0].DurationMs, maxIntervalMs)
	}
}

func TestVisibility_EndsNeverExceedStarts(t *testing.T) {
	tr, sink, now := newVisibilityFixture("p1")

	ratios := []float64{0.2, 0, 0, 0.9, 0.5, 0, 0.1, 0.1, 0}
	for _, r := range ratios {
		tr.Observe([]Observation{{PostID: "p1", Ratio: r}})
		*now = now.Add(100 * time.Millisecond)
	}

	starts := len(sink.byAction(domain.ActionViewStart))
	ends := len(sink.byAction(domain.ActionViewEnd))
	if ends > starts {
		t.Fatalf("ends = %d exceeds starts = %d", ends, starts)
	}
	for _, e := range sink.byAction(domain.ActionViewEnd) {
		if e.DurationMs < 0 || e.DurationMs > maxIntervalMs {
			t.Errorf("duration %d out of [0, %d]", e.DurationMs, maxIntervalMs)
		}
	}
}

func TestVisibility_UnregisteredIgnored(t *testing.T) {
	tr, sink, _ := newVisibilityFixture("p1")

	tr.Observe([]Observation{{PostID: "p9", Ratio: 1}, {PostID: "", Ratio: 1}})

	if len(sink.events) != 0 {
		t.Fatalf("unregistered posts emitted %d events, want 0", len(sink.events))
	}
}

func TestVisibility_SetTargetsClosesRemovedPosts(t *testing.T) {
	tr, sink, now := newVisibilityFixture("p1", "p2")

	tr.Observe([]Observation{{PostID: "p1", Ratio: 1}, {PostID: "p2", Ratio: 1}})
	*now = now.Add(time.Second)

	// Feed re-ordered without p1: its open interval must close exactly once.
	tr.SetTargets([]string{"p2"})

	ends := sink.byAction(domain.ActionViewEnd)
	if len(ends) != 1 || ends[0].PostID != "p1" {
		t.Fatalf("expected single view_end for p1, got %+v", ends)
	}

	// Later observations for p1 are ignored; p2's interval is still open.
	tr.Observe([]Observation{{PostID: "p1", Ratio: 0}})
	if n := len(sink.byAction(domain.ActionViewEnd)); n != 1 {
		t.Errorf("view_end count after stale observation = %d, want 1", n)
	}
	if tr.Accumulated("p1") != 1000 {
		t.Errorf("p1 accumulated = %d, want 1000", tr.Accumulated("p1"))
	}
}

func TestVisibility_AccumulationAcrossIntervals(t *testing.T) {
	tr, _, now := newVisibilityFixture("p1")

	for i := 0; i < 3; i++ {
		tr.Observe([]Observation{{PostID: "p1", Ratio: 1}})
		*now = now.Add(500 * time.Millisecond)
		tr.Observe([]Observation{{PostID: "p1", Ratio: 0}})
	}

	if got := tr.Accumulated("p1"); got != 1500 {
		t.Fatalf("Accumulated = %d, want 1500", got)
	}

	tr.Reset()
	if tr.Accumulated("p1") != 0 {
		t.Error("Reset() must drop accumulated totals")
	}
}
