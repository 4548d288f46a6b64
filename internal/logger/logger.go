package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"time"
)

var globalLogger *slog.Logger

// InitLogger configures the process-wide logger for env and installs it as
// the slog default.
func InitLogger(env string) {
	globalLogger = New(os.Stdout, env)
	slog.SetDefault(globalLogger)
}

// New builds a logger writing to w. Development gets debug-level text with
// source locations; production and staging get info-level JSON.
func New(w io.Writer, env string) *slog.Logger {
	opts := slog.HandlerOptions{
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	switch env {
	case "development":
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, &opts)
	case "development-json":
		opts.Level = slog.LevelDebug
		handler = slog.NewJSONHandler(w, &opts)
	case "production", "staging":
		opts.Level = slog.LevelInfo
		opts.AddSource = false
		handler = slog.NewJSONHandler(w, &opts)
	case "test":
		opts.Level = slog.LevelWarn
		opts.AddSource = false
		handler = slog.NewTextHandler(w, &opts)
	default:
		log.Printf("WARNING: Unknown APP_ENV '%s'. Defaulting to production logging.\n", env)
		opts.Level = slog.LevelInfo
		opts.AddSource = false
		handler = slog.NewJSONHandler(w, &opts)
	}
	return slog.New(handler)
}

// L returns the global logger, initialising a development logger if
// InitLogger has not run yet.
func L() *slog.Logger {
	if globalLogger == nil {
		InitLogger("development")
		log.Println("WARNING: Logger accessed before explicit initialization. Using default development logger.")
	}
	return globalLogger
}

// Discard is a logger that drops everything, for tests and tools.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
