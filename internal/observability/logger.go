package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger: JSON on stdout, trace-aware.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(os.Stdout, env)
}

func NewLoggerTo(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	switch env {
	case "dev":
		level = slog.LevelDebug
	case "test":
		level = slog.LevelWarn
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler)).With("service", "travelhub")
}
