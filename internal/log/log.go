// Package log builds the slog loggers used across the hades service.
//
// There is no package-level logger: every component takes a
// *slog.Logger in its constructor and scopes it with With(), e.g.
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	store, err := knowledge.NewDocumentStore(pool, logger.With("component", "docstore"))
//
// Tests that want silence use NewNop; tests that assert on output use
// NewWithWriter with a bytes.Buffer.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so dependents keep full access to the
// slog API (With, WithGroup, level methods) without a wrapper type.
type Logger = *slog.Logger

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted; zero value is Info.
	Level slog.Level

	// JSON selects the JSON handler instead of text.
	JSON bool

	// AddSource includes the caller's file:line in each record.
	AddSource bool
}

// New builds a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop builds a logger that discards everything. Test use only;
// production callers should always see their logs somewhere.
func NewNop() Logger {
	return slog.New(slog.DiscardHandler)
}
