package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/tracking"
)

// Session bundles one participant session: its recorder plus the visibility
// and scroll trackers feeding the same log.
type Session struct {
	Recorder   *Recorder
	Visibility *tracking.VisibilityTracker
	Scroll     *tracking.ScrollTracker

	mu         sync.Mutex
	submitting bool
}

// TrySubmit claims the session's submit gate. It returns false while another
// submission is in flight, so a duplicate submit cannot race the collector
// call. Release with EndSubmit.
func (s *Session) TrySubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return false
	}
	s.submitting = true
	return true
}

// EndSubmit releases the submit gate.
func (s *Session) EndSubmit() {
	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()
}

// Reset clears the event log and all accumulated tracker state. This is the
// explicit administrative reset; nothing triggers it automatically.
func (s *Session) Reset() {
	s.Recorder.Clear()
	s.Visibility.Reset()
	s.Scroll.Reset()
}

// Manager is the registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
	clock    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock substitutes the wall clock for every session the manager
// opens, for tests.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates an empty session registry.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a new session, registers the post catalog as the visibility
// targets, and records session_start.
func (m *Manager) Open(posts []domain.Post) *Session {
	rec := NewRecorder(WithClock(m.clock))

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	s := &Session{
		Recorder:   rec,
		Visibility: tracking.NewVisibility(rec, tracking.WithVisibilityClock(m.clock)),
		Scroll:     tracking.NewScroll(rec),
	}
	s.Visibility.SetTargets(ids)

	m.mu.Lock()
	m.sessions[rec.SessionID()] = s
	m.mu.Unlock()

	rec.Record(domain.ActionSessionStart, domain.Meta{})
	m.logger.Info("session opened", slog.String("session_id", rec.SessionID()))
	return s
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// End records the terminal session_end event and drops the session from the
// registry. The recorder (and its log) stays usable by holders of the
// returned session for late reads.
func (m *Manager) End(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("end session: %q not found", id)
	}

	s.Recorder.Record(domain.ActionSessionEnd, domain.Meta{})
	m.logger.Info("session ended", slog.String("session_id", id))
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown best-effort records session_end for every live session before
// teardown. Abrupt teardown can still lose the terminal event; that matches
// the delivery guarantee of the instrument.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range live {
		select {
		case <-ctx.Done():
			m.logger.Warn("shutdown cut short before all sessions were closed")
			return
		default:
		}
		s.Recorder.Record(domain.ActionSessionEnd, domain.Meta{})
	}
}
