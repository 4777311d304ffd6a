// Package runtime assembles the pipeline components into a runnable
// instrument and manages their lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/feedlab/feedlab/internal/config"
	"github.com/feedlab/feedlab/internal/core/ports"
	"github.com/feedlab/feedlab/internal/roster"
	"github.com/feedlab/feedlab/internal/server"
	"github.com/feedlab/feedlab/internal/session"
)

// Instrument is the assembled feed instrument: session registry, roster
// store, collector client, and the HTTP surface. Construct with New and the
// functional options; embed in larger programs or run standalone.
type Instrument struct {
	cfg       *config.Config
	kv        ports.KV
	roster    ports.RosterStore
	collector ports.Collector
	sessions  *session.Manager
	logger    *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// New creates an instrument from the given options. Config and a storage
// option are required; the roster store and session manager default from
// them.
func New(opts ...Option) (*Instrument, error) {
	ins := &Instrument{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(ins); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if ins.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig)")
	}
	if ins.kv == nil {
		return nil, fmt.Errorf("storage required (use WithSQLite, WithMemoryStorage, or WithKV)")
	}

	if ins.roster == nil {
		ins.roster = roster.New(ins.kv, roster.WithLogger(ins.logger))
	}
	if ins.collector == nil {
		return nil, fmt.Errorf("collector required (use WithCollector or WithCollectorClient)")
	}
	if ins.sessions == nil {
		ins.sessions = session.NewManager(session.WithManagerLogger(ins.logger))
	}

	return ins, nil
}

// Sessions exposes the session registry, mainly for tests.
func (ins *Instrument) Sessions() *session.Manager {
	return ins.sessions
}

// Roster exposes the roster store.
func (ins *Instrument) Roster() ports.RosterStore {
	return ins.roster
}

// Handler builds the HTTP handler without starting a listener, for embedding
// and tests.
func (ins *Instrument) Handler() http.Handler {
	srv := server.New(ins.logger)
	h := server.NewHandler(ins.sessions, ins.roster, ins.collector, ins.cfg.PostCatalog(), ins.cfg.Admin.Password, ins.logger)
	h.Routes(srv.Router)
	return srv.Router
}

// Start begins serving on the configured port. It blocks until the listener
// fails or Shutdown runs.
func (ins *Instrument) Start(ctx context.Context) error {
	ins.mu.Lock()
	ins.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", ins.cfg.Server.Port),
		Handler: ins.Handler(),
	}
	srv := ins.server
	ins.mu.Unlock()

	ins.logger.Info("instrument listening",
		slog.Int("port", ins.cfg.Server.Port),
		slog.Int("posts", len(ins.cfg.Posts)))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops the listener, records terminal session_end events for live
// sessions, and closes the storage medium.
func (ins *Instrument) Shutdown(ctx context.Context) error {
	ins.mu.Lock()
	srv := ins.server
	ins.mu.Unlock()

	var firstErr error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("http shutdown: %w", err)
		}
	}

	ins.sessions.Shutdown(ctx)

	if err := ins.kv.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close storage: %w", err)
	}
	return firstErr
}
