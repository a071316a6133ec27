// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logger used throughout the
// module. It wraps log/slog with a severity scheme (TRACE..ERROR, plus
// OFF) that the standard library doesn't have, and two output formats,
// text and json, chosen at startup from configuration.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Severity levels, ordered from the least to the most severe. These are
// the string values accepted in configuration (cfg.LoggingConfig.Severity).
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// slog only defines four levels out of the box; TRACE sits below DEBUG and
// OFF sits above ERROR so that nothing at all is emitted.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

var severityNames = map[slog.Level]string{
	LevelTrace: TRACE,
	LevelDebug: DEBUG,
	LevelInfo:  INFO,
	LevelWarn:  WARNING,
	LevelError: ERROR,
}

func severityToLevel(severity string) slog.Level {
	switch severity {
	case TRACE:
		return LevelTrace
	case DEBUG:
		return LevelDebug
	case INFO:
		return LevelInfo
	case WARNING:
		return LevelWarn
	case ERROR:
		return LevelError
	default:
		return LevelOff
	}
}

// loggerFactory owns the mutable state (format, level, destination) behind
// the package-level logging functions, so that SetLogFormat/SetLogSeverity
// can be called once at startup without threading a logger through every
// call site in the facade.
type loggerFactory struct {
	format string
	level  *slog.LevelVar
	writer io.Writer
	file   *os.File
}

var defaultLoggerFactory = &loggerFactory{
	format: "text",
	level:  func() *slog.LevelVar { v := new(slog.LevelVar); v.Set(LevelInfo); return v }(),
	writer: os.Stderr,
}

var defaultLogger = slog.New(defaultLoggerFactory.createHandler())

func (f *loggerFactory) createHandler() slog.Handler {
	opts := &slog.HandlerOptions{
		Level: f.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := a.Value.Any().(slog.Level)
				a.Key = "severity"
				if name, ok := severityNames[lvl]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	}

	if f.format == "json" {
		return slog.NewJSONHandler(f.writer, opts)
	}
	return slog.NewTextHandler(f.writer, opts)
}

func rebuild() {
	defaultLogger = slog.New(defaultLoggerFactory.createHandler())
}

// SetLogFormat switches between "text" and "json" output. Anything other
// than "json" (including the empty string) is treated as text.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	rebuild()
}

// SetLogSeverity sets the minimum severity that will be emitted.
func SetLogSeverity(severity string) {
	defaultLoggerFactory.level.Set(severityToLevel(severity))
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	defaultLoggerFactory.writer = w
	rebuild()
}

// InitLogFile points logging at a file on disk, opening it for append and
// creating it if necessary. The caller is responsible for log rotation.
func InitLogFile(path string, format string, severity string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	defaultLoggerFactory.file = f
	defaultLoggerFactory.writer = f
	defaultLoggerFactory.format = format
	defaultLoggerFactory.level.Set(severityToLevel(severity))
	rebuild()
	return nil
}

func Tracef(format string, v ...any) { logf(LevelTrace, format, v...) }
func Debugf(format string, v ...any) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(LevelError, format, v...) }

func logf(level slog.Level, format string, v ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}
