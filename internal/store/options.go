package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tcoratger/keth/internal/metrics"
)

// Pragmas holds the SQLite settings applied when a connection is opened.
type Pragmas struct {
	JournalMode string        // WAL, DELETE, TRUNCATE, MEMORY
	Synchronous string        // OFF, NORMAL, FULL
	BusyTimeout time.Duration // wait on SQLITE_BUSY before failing
}

// DefaultPragmas returns WAL journaling with NORMAL synchronous mode and a
// five second busy timeout.
func DefaultPragmas() Pragmas {
	return Pragmas{
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		BusyTimeout: 5 * time.Second,
	}
}

func (p Pragmas) statements() []string {
	return []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", p.JournalMode),
		fmt.Sprintf("PRAGMA synchronous = %s", p.Synchronous),
		fmt.Sprintf("PRAGMA busy_timeout = %d", p.BusyTimeout.Milliseconds()),
	}
}

type options struct {
	logger  *slog.Logger
	metrics metrics.StorageMetrics
	pragmas Pragmas
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		metrics: metrics.NoopCollector{},
		pragmas: DefaultPragmas(),
	}
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used for commit and lookup diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the collector that observes every store operation.
func WithMetrics(m metrics.StorageMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithPragmas overrides the SQLite pragmas. Empty fields keep their defaults.
func WithPragmas(p Pragmas) Option {
	return func(o *options) {
		if p.JournalMode != "" {
			o.pragmas.JournalMode = p.JournalMode
		}
		if p.Synchronous != "" {
			o.pragmas.Synchronous = p.Synchronous
		}
		if p.BusyTimeout > 0 {
			o.pragmas.BusyTimeout = p.BusyTimeout
		}
	}
}
