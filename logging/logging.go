package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/Shoowa/cotejo/config"
)

const redacted = "[REDACTED]"

func configure(cfg *config.Config) *slog.HandlerOptions {
	logLevel := &slog.LevelVar{}
	switch cfg.Logger.Level {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	default:
		logLevel.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	return opts
}

// CreateLogger builds the session logger. Callers hand it, or a child of it,
// to every component; nothing in the module reads slog.Default.
func CreateLogger(cfg *config.Config) *slog.Logger {
	return createLogger(cfg, os.Stdout)
}

// CreateLoggerTo writes to w instead of stdout, which the CLI keeps for
// results.
func CreateLoggerTo(cfg *config.Config, w io.Writer) *slog.Logger {
	return createLogger(cfg, w)
}

func createLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	goVersion := slog.String("lang", runtime.Version())
	appVersion := slog.String("app", config.AppVersion)
	group := slog.Group("version", goVersion, appVersion)

	opts := configure(cfg)
	handler := slog.NewJSONHandler(w, opts)
	logger := slog.New(handler).With(group)

	logger.Info("Logger", "level", opts.Level.Level())
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component returns a child logger tagged with the component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}

// Secret is a value that must never be written out.
type Secret string

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }
