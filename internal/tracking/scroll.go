package tracking

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/core/ports"
)

// Scroll directions relative to the previously emitted position.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionNone = "none"
)

// defaultFrameInterval coalesces scroll bursts to roughly one event per
// animation frame so a fast flick cannot flood the log.
const defaultFrameInterval = 16 * time.Millisecond

// ScrollTracker emits one scroll event per position change, rate-limited to a
// frame budget. Direction is computed against the last emitted position, so
// coalesced samples do not distort it.
type ScrollTracker struct {
	mu      sync.Mutex
	sink    ports.EventSink
	limiter *rate.Limiter
	hasLast bool
	lastY   int
}

// ScrollOption configures a ScrollTracker.
type ScrollOption func(*ScrollTracker)

// WithFrameInterval overrides the coalescing window. Zero disables
// coalescing entirely (used by tests).
func WithFrameInterval(d time.Duration) ScrollOption {
	return func(t *ScrollTracker) {
		if d <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		t.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewScroll creates a tracker emitting into sink.
func NewScroll(sink ports.EventSink, opts ...ScrollOption) *ScrollTracker {
	t := &ScrollTracker{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(defaultFrameInterval), 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe handles one reported scroll position. Samples arriving inside the
// coalescing window are dropped.
func (t *ScrollTracker) Observe(y int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.limiter.Allow() {
		return
	}

	direction := DirectionNone
	if t.hasLast {
		switch {
		case y > t.lastY:
			direction = DirectionDown
		case y < t.lastY:
			direction = DirectionUp
		}
	}
	t.lastY = y
	t.hasLast = true

	t.sink.Record(domain.ActionScroll, domain.Meta{Y: y, Direction: direction})
}

// Reset forgets the last emitted position.
func (t *ScrollTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasLast = false
	t.lastY = 0
}
