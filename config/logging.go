package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ciotto/telegram-bot-deploy/errors"
)

// ParseLevel converts a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Newf(errors.CodeInvalidConfig, "unknown log level %q", name)
	}
}

// NewLogger builds the process logger. Without a filename it writes to
// fallback. The returned closer releases the log file, if any.
func (l Logging) NewLogger(fallback io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, nil, err
	}

	out := fallback
	var closer io.Closer = nopCloser{}
	if l.Filename != "" {
		f, err := os.OpenFile(l.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.WrapWithContext(err, errors.CodeIO, "failed to open log file",
				map[string]any{"path": l.Filename})
		}
		out = f
		closer = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if l.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
