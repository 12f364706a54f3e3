// Package logging configures the process-wide structured logger for
// custodiad: JSON lines on stdout, level-filtered, tagged with the service
// name and deployment environment so log aggregation can separate daemons
// sharing a host.
package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the daemon logger and installs it as the slog default so
// package-level helpers and the bridged standard logger share one sink.
func Setup(service, env string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	logger := slog.New(handler).With(slog.String("service", strings.TrimSpace(service)))
	if env = strings.TrimSpace(env); env != "" {
		logger = logger.With(slog.String("env", env))
	}
	slog.SetDefault(logger)

	// Route the standard library logger through the same handler so stray
	// log.Printf calls from dependencies stay structured.
	bridge := slog.NewLogLogger(handler, slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return logger
}

// ParseLevel maps the -log-level flag value onto a slog level. Unknown values
// fall back to info rather than failing startup.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
