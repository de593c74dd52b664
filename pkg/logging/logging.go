// Package logging builds the phuslu/log logger shared by the CLI, the
// pipeline and the HTTP server.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/coolbeans/fieldmap/pkg/config"
)

// New creates a logger from the logging configuration. Every logger carries
// a run_id so the lines of one invocation can be grouped.
func New(cfg config.LoggingConfig) (*log.Logger, error) {
	writer, err := newWriter(cfg)
	if err != nil {
		return nil, err
	}

	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		TimeFormat: "15:04:05",
		Writer:     writer,
	}
	logger.Context = log.NewContext(nil).Str("run_id", uuid.NewString()).Value()
	return logger, nil
}

func newWriter(cfg config.LoggingConfig) (log.Writer, error) {
	console := &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
		Writer:         os.Stderr,
	}

	switch cfg.Output {
	case "", "console":
		return console, nil
	case "file", "both":
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
			}
		}
		file := &log.FileWriter{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB * 1024 * 1024,
			MaxBackups: cfg.MaxBackups,
		}
		if cfg.Output == "file" {
			return file, nil
		}
		return &log.MultiEntryWriter{console, file}, nil
	}
	return nil, fmt.Errorf("unknown log output %q", cfg.Output)
}

// Discard returns a logger that drops everything, for tests and library use.
func Discard() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: log.IOWriter{Writer: io.Discard}}
}

// ToWriter returns a logger writing plain JSON lines to w at the given level.
func ToWriter(w io.Writer, level string) *log.Logger {
	return &log.Logger{Level: log.ParseLevel(level), Writer: log.IOWriter{Writer: w}}
}
