// Package logging configures the process-wide zerolog logger.
//
// Standard output belongs to the hook's JSON decision document, so the
// logger writes to a file (or stderr for interactive commands) and never to
// stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config selects where and how log lines are written.
type Config struct {
	Level  string // debug, info, warn, error, disabled
	Format string // json or console
	// File is the log file path, created with its directory when missing.
	// Ignored when Output is set.
	File string
	// Output overrides File, e.g. os.Stderr for interactive commands.
	Output io.Writer
}

var (
	mu     sync.RWMutex
	base   = zerolog.Nop()
	closer io.Closer
)

// Init replaces the process logger. The returned function closes the log
// file, if one was opened. With neither File nor Output set, logging is
// discarded.
func Init(cfg Config) (func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return noClose, err
	}

	out := cfg.Output
	var f *os.File
	if out == nil && cfg.File != "" && level != zerolog.Disabled {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return noClose, fmt.Errorf("logging: create log directory: %w", err)
		}
		f, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return noClose, fmt.Errorf("logging: open log file: %w", err)
		}
		out = f
	}
	if out == nil {
		out = io.Discard
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: f != nil}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	mu.Lock()
	prev := closer
	base = logger
	closer = nil
	if f != nil {
		closer = f
	}
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	return func() error {
		mu.Lock()
		defer mu.Unlock()
		if closer == nil {
			return nil
		}
		err := closer.Close()
		closer = nil
		base = zerolog.Nop()
		return err
	}, nil
}

func noClose() error { return nil }

// ParseLevel maps a level name onto zerolog. The empty string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "none", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
}

// Component returns a logger tagged with the component name.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("component", name).Logger()
}
