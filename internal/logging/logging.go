package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jrick/logrotate/rotator"
	"github.com/rs/zerolog"

	"github.com/petems/audio-recorder/internal/config"
)

// Console returns a console-only logger for use before the config is
// available.
func Console() zerolog.Logger {
	return zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
}

// New creates a zerolog logger writing to the console and to a rotated log
// file. The returned closer flushes and closes the file.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	console := consoleWriter(os.Stderr)
	if cfg.File == "-" {
		log := zerolog.New(console).Level(level).With().Timestamp().Caller().Logger()
		return log, nopCloser{}, nil
	}

	path := cfg.File
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxKB := cfg.MaxKB
	if maxKB <= 0 {
		maxKB = 1024
	}
	r, err := rotator.New(path, maxKB, false, 10)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create file rotator: %w", err)
	}

	// Multi-writer: console + file
	multi := zerolog.MultiLevelWriter(console, r)

	log := zerolog.New(multi).Level(level).With().Timestamp().Caller().Logger()
	return log, r, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

// Path returns the platform-specific log file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/state"
		}
	}

	return filepath.Join(base, "audio-recorder", "audio-recorder.log")
}
