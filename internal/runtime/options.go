package runtime

import (
	"fmt"
	"log/slog"

	"github.com/feedlab/feedlab/internal/collector"
	"github.com/feedlab/feedlab/internal/config"
	"github.com/feedlab/feedlab/internal/core/ports"
	"github.com/feedlab/feedlab/internal/session"
	"github.com/feedlab/feedlab/internal/storage/memory"
	"github.com/feedlab/feedlab/internal/storage/sqlite"
)

// Option is a functional option for configuring an Instrument.
type Option func(*Instrument) error

// WithConfig sets the instrument configuration.
func WithConfig(cfg *config.Config) Option {
	return func(ins *Instrument) error {
		ins.cfg = cfg
		return nil
	}
}

// WithSQLite uses durable SQLite storage at path (default for deployments).
func WithSQLite(path string) Option {
	return func(ins *Instrument) error {
		kv, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		ins.kv = kv
		return nil
	}
}

// WithMemoryStorage uses in-memory storage. Rows do not survive a restart;
// intended for tests and demos.
func WithMemoryStorage() Option {
	return func(ins *Instrument) error {
		ins.kv = memory.New()
		return nil
	}
}

// WithKV sets a custom storage medium.
func WithKV(kv ports.KV) Option {
	return func(ins *Instrument) error {
		ins.kv = kv
		return nil
	}
}

// WithCollector points remote sync at the given endpoint. An empty URL
// yields a collector that reports every send as failed, which keeps the
// instrument usable offline.
func WithCollector(url, token string, opts ...collector.Option) Option {
	return func(ins *Instrument) error {
		opts = append(opts, collector.WithLogger(ins.logger))
		ins.collector = collector.New(url, token, opts...)
		return nil
	}
}

// WithCollectorClient sets a custom collector implementation.
func WithCollectorClient(c ports.Collector) Option {
	return func(ins *Instrument) error {
		ins.collector = c
		return nil
	}
}

// WithRosterStore sets a custom roster store.
func WithRosterStore(store ports.RosterStore) Option {
	return func(ins *Instrument) error {
		ins.roster = store
		return nil
	}
}

// WithSessionManager sets a custom session manager.
func WithSessionManager(m *session.Manager) Option {
	return func(ins *Instrument) error {
		ins.sessions = m
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before options that capture the
// logger, such as WithCollector.
func WithLogger(logger *slog.Logger) Option {
	return func(ins *Instrument) error {
		ins.logger = logger
		return nil
	}
}
