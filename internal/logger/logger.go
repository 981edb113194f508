// Package logger provides structured, level-gated logging for the PII
// scrubbing pipeline.
//
// Each entry is written as a single line with fixed-width columns:
//
//	2006-01-02 15:04:05.000 | MODULE       | ACTION                 | LEVEL | message
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
//
// The scrubber never raises an error to its caller: this logger is the
// only place a detector failure, a dropped LLM entity, or a cache error
// becomes visible short of the audit record.
//
// Usage:
//
//	log := logger.New(ModuleScrubber, cfg.LogLevel)
//	log.Info(ActionScrubChunked, "12 chunks, 4 concurrent workers")
//	log.Errorf(ActionDetectLLM, "chunk %d: %v", chunkIdx, err)
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Module names the pipeline component a Logger speaks for. Kept as a
// distinct string type, rather than a free-form argument to New, so every
// call site names a module from the fixed set this pipeline actually has.
// One Logger is constructed per process and shared by every pipeline
// component, so there is a single module tag; it's the Action on each
// entry that distinguishes where a line came from.
type Module string

// ModuleScrubber is the module tag for the PII scrubbing pipeline process.
const ModuleScrubber Module = "SCRUBBER"

// Action names the operation a log entry describes, filling the ACTION
// column. Centralizing the set here keeps the vocabulary stable across
// packages instead of each call site inventing its own ad hoc string.
type Action string

// Actions logged across the detection, orchestration, and CLI layers.
const (
	ActionScrub          Action = "scrub"
	ActionScrubSingle    Action = "scrub_single"
	ActionScrubChunked   Action = "scrub_chunked"
	ActionScrubChunk     Action = "scrub_chunk"
	ActionRedact         Action = "redactor"
	ActionDetectLLM      Action = "detect"
	ActionParseResponse  Action = "parse_response"
	ActionCompilePattern Action = "compile_pattern"
)

// Level represents a log severity.
type Level int

// Log severity constants, ordered lowest to highest.
const (
	LevelDebug Level = iota // fine-grained diagnostic output
	LevelInfo               // normal operational messages
	LevelWarn               // unexpected but recoverable conditions
	LevelError              // failures requiring attention
)

// Logger writes structured log lines for a single module.
type Logger struct {
	module Module
	level  Level
	out    *log.Logger
}

// New creates a Logger for the given module, gated at the given level string.
// Unrecognized level strings default to "info".
func New(module Module, levelStr string) *Logger {
	return &Logger{
		module: Module(strings.ToUpper(string(module))),
		level:  parseLevel(levelStr),
		// No prefix or flags — we supply the full line ourselves.
		out: log.New(os.Stderr, "", 0),
	}
}

// SetLevel changes the minimum log level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level = parseLevel(levelStr)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(action Action, msg string) { l.write(LevelDebug, "DEBUG", action, msg) }

// Info logs at INFO level.
func (l *Logger) Info(action Action, msg string) { l.write(LevelInfo, "INFO ", action, msg) }

// Warn logs at WARN level.
func (l *Logger) Warn(action Action, msg string) { l.write(LevelWarn, "WARN ", action, msg) }

// Error logs at ERROR level.
func (l *Logger) Error(action Action, msg string) { l.write(LevelError, "ERROR", action, msg) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(action Action, format string, args ...any) {
	l.Debug(action, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(action Action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(action Action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(action Action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

// Fatal logs at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatal(action Action, msg string) {
	l.Error(action, msg)
	os.Exit(1)
}

// Fatalf logs a formatted message at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatalf(action Action, format string, args ...any) {
	l.Fatal(action, fmt.Sprintf(format, args...))
}

// write emits one log line if level >= l.level.
func (l *Logger) write(level Level, levelLabel string, action Action, msg string) {
	if level < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.out.Printf("%s | %-12s | %-22s | %s | %s", ts, l.module, action, levelLabel, msg)
}

// parseLevel converts a string to a Level, defaulting to LevelInfo.
func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
