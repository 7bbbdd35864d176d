// Package config loads the exexdb configuration file.
//
// Files are YAML. Fields left out keep their defaults, and the merged result
// is checked against an embedded CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/tcoratger/keth/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Backend  BackendConfig  `yaml:"backend" json:"backend"`
}

// DatabaseConfig selects the SQLite file and its pragmas.
type DatabaseConfig struct {
	Path          string `yaml:"path" json:"path"`
	JournalMode   string `yaml:"journal_mode" json:"journal_mode"`
	Synchronous   string `yaml:"synchronous" json:"synchronous"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// BackendConfig sizes the state backend.
type BackendConfig struct {
	CodeCacheSize int `yaml:"code_cache_size" json:"code_cache_size"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	p := store.DefaultPragmas()
	return Config{
		Database: DatabaseConfig{
			Path:          "exex.db",
			JournalMode:   p.JournalMode,
			Synchronous:   p.Synchronous,
			BusyTimeoutMS: int(p.BusyTimeout.Milliseconds()),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Backend: BackendConfig{
			CodeCacheSize: 1024,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, errs
	}
	return cfg, nil
}

// ValidationError is one schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks cfg against the embedded schema.
// Returns all violations (does not fail fast).
func (c Config) Validate() ValidationErrors {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(c))
	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return errs
}

// StoreOptions converts the database section into store options.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithPragmas(store.Pragmas{
			JournalMode: c.Database.JournalMode,
			Synchronous: c.Database.Synchronous,
			BusyTimeout: time.Duration(c.Database.BusyTimeoutMS) * time.Millisecond,
		}),
	}
}
