package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "graylogic-audio"

// Logger is the service logger.
//
// It satisfies the small Logger interfaces declared by the pipewire, device,
// mqtt and monitor packages, so one instance is threaded through the service
// and narrowed per component with Component.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to cfg.Output ("stdout" or "stderr").
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Build version attached to every entry
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter is New with an explicit destination. cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler = slog.NewJSONHandler(output, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)}
}

// parseLevel maps debug, info, warn (or warning) and error to a slog level.
// Anything else is info.
func parseLevel(level string) slog.Level {
	level = strings.ToLower(level)
	if level == "warning" {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// With returns a Logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags entries with the emitting component.
//
//	log.Component("pipewire").Debug("sync acknowledged", "seq", 3)
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the JSON info logger used until the config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
