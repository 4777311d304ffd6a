// Package roster persists participant rows keyed by session id.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/core/ports"
)

// DefaultKey is the well-known key the roster is serialized under.
const DefaultKey = "feedlab.roster"

// Store implements ports.RosterStore over any KV medium. The whole roster is
// serialized as one JSON array so every write is atomic at the KV level and
// concurrent writers resolve last-write-wins.
type Store struct {
	kv     ports.KV
	key    string
	logger *slog.Logger
}

var _ ports.RosterStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the durable key, for tests sharing one KV.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a roster store over kv.
func New(kv ports.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the roster in insertion order. Missing or corrupt durable
// state degrades to an empty roster; corruption is logged, never surfaced.
func (s *Store) Load(ctx context.Context) []domain.ParticipantRow {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("roster load failed, treating as empty", slog.String("error", err.Error()))
		return []domain.ParticipantRow{}
	}
	if !ok || raw == "" {
		return []domain.ParticipantRow{}
	}

	var rows []domain.ParticipantRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		s.logger.Warn("roster state corrupt, treating as empty", slog.String("error", err.Error()))
		return []domain.ParticipantRow{}
	}
	if rows == nil {
		rows = []domain.ParticipantRow{}
	}
	return rows
}

// Upsert replaces the row with the same session id in place, or appends when
// none exists, then persists the whole roster.
func (s *Store) Upsert(ctx context.Context, row domain.ParticipantRow) ([]domain.ParticipantRow, error) {
	rows := s.Load(ctx)

	replaced := false
	for i := range rows {
		if rows[i].SessionID == row.SessionID {
			rows[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, row)
	}

	if err := s.persist(ctx, rows); err != nil {
		return nil, fmt.Errorf("upsert roster: %w", err)
	}
	return rows, nil
}

// Clear persists an empty roster.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.persist(ctx, []domain.ParticipantRow{}); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	return nil
}

// OnChange registers fn to run with the freshly loaded roster whenever the
// durable key changes, including writes by other holders of the same KV.
func (s *Store) OnChange(fn func([]domain.ParticipantRow)) func() {
	return s.kv.Watch(s.key, func(string) {
		fn(s.Load(context.Background()))
	})
}

func (s *Store) persist(ctx context.Context, rows []domain.ParticipantRow) error {
	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}
