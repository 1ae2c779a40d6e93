// Copyright 2025 Takhin Data, Inc.

// Package logging wraps log/slog with the component/request-scoped
// helpers the rest of this agent expects, mirroring the teacher's
// pkg/logger.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger is a slog.Logger with a couple of convenience constructors.
type Logger struct {
	*slog.Logger
}

// Config controls verbosity and encoding.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// New builds a Logger writing to stdout per cfg.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent scopes the logger to a named subsystem.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// WithRequestID scopes the logger to a single HTTP request.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With("request_id", requestID)}
}

// FromContext scopes the logger to the chi request ID carried on ctx,
// if the RequestID middleware set one, so call chains below the HTTP
// layer (gate, store, audit) don't need requestID threaded through
// every signature by hand. Returns l unchanged if ctx carries none.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		return l
	}
	return l.WithRequestID(reqID)
}

// Fatal logs at error level then terminates the process, matching the
// teacher's startup-failure convention (spec §6 exit codes).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}

var defaultLogger = New(Config{Level: "info", Format: "json"})

// SetDefault installs logger as both the package default and the
// process-wide slog default.
func SetDefault(logger *Logger) {
	defaultLogger = logger
	slog.SetDefault(logger.Logger)
}

// Default returns the current package-level logger.
func Default() *Logger {
	return defaultLogger
}
