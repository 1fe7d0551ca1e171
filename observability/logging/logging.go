package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log sink. An empty File logs to stdout.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string, opts Options) *slog.Logger {
	return slog.New(handlerFor(Writer(opts), service, env, opts.Level, true))
}

// Writer returns the sink described by opts. File sinks rotate through
// lumberjack.
func Writer(opts Options) io.Writer {
	path := strings.TrimSpace(opts.File)
	if path == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
}

// New builds a logger over w without touching the process defaults.
func New(w io.Writer, service, env string) *slog.Logger {
	return slog.New(handlerFor(w, service, env, slog.LevelDebug, false))
}

func handlerFor(w io.Writer, service, env string, level slog.Level, install bool) slog.Handler {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withAttrs := handler.WithAttrs(attrs)
	if !install {
		return withAttrs
	}

	slog.SetDefault(slog.New(withAttrs))

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(withAttrs, slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return withAttrs
}
