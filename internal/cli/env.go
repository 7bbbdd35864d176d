package cli

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tcoratger/keth/internal/backend"
	"github.com/tcoratger/keth/internal/config"
	"github.com/tcoratger/keth/internal/metrics"
	"github.com/tcoratger/keth/internal/store"
)

// env is everything a store command needs, built from the global flags.
type env struct {
	cfg       config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	store     *store.Store
	backend   *backend.Backend
	formatter *OutputFormatter
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, err
	}
	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newFormatter builds the formatter for cmd with a fresh run ID.
func (o *RootOptions) newFormatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
		RunID:     uuid.NewString(),
	}
}

// openEnv loads config, opens the store and wraps it in a backend.
// Callers must call close.
func (o *RootOptions) openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	formatter := o.newFormatter(cmd)
	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	logger = logger.With("run_id", formatter.RunID)

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewPrometheusCollector(registry)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	opts := append(cfg.StoreOptions(), store.WithLogger(logger), store.WithMetrics(collector))
	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	b, err := backend.New(st, cfg.Backend.CodeCacheSize,
		backend.WithLogger(logger),
		backend.WithMetrics(collector),
	)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create backend", err)
	}

	return &env{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		store:     st,
		backend:   b.WithContext(cmd.Context()),
		formatter: formatter,
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

// lookupFailed reports a failed read with the store error code.
func (e *env) lookupFailed(what string, err error) error {
	code := string(store.ErrorCodeOf(err))
	if code == "" {
		code = "E_LOOKUP"
	}
	if ferr := e.formatter.Error(code, fmt.Sprintf("%s: %v", what, err), nil); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitFailure, what, err)
}
