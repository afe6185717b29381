// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels.
//
// Design goals:
//   - Simple API (Errorf, Warnf, Infof, Debugf, Tracef)
//   - Centralized verbosity control
//   - Zero formatting logic at call sites
//   - Backed by zap, with optional size-rotated file output
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("enriching %s", ticker)
//	logger.Debugf("spot=%f vol=%f", spot, vol)
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// Options configures the zap backend.
type Options struct {
	File       string // rotate into this file instead of stderr when set
	MaxSizeMB  int    // rotation size, default 100
	MaxBackups int    // rotated files kept, default 3
	MaxAgeDays int    // default 30
	JSON       bool   // JSON encoder instead of console
}

var (
	mu      sync.RWMutex
	current = Info
	sugar   *zap.SugaredLogger
)

func init() {
	sugar = newZap(Options{})
}

// Init replaces the backend. Safe to call again, e.g. after config is loaded.
func Init(opts Options) {
	l := newZap(opts)

	mu.Lock()
	old := sugar
	sugar = l
	mu.Unlock()

	_ = old.Sync()
}

func newZap(opts Options) *zap.SugaredLogger {
	encConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		CallerKey:      "C",
		MessageKey:     "M",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var ws zapcore.WriteSyncer
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 100
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		if opts.MaxAgeDays <= 0 {
			opts.MaxAgeDays = 30
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	} else {
		// stderr keeps logs apart from command output
		ws = zapcore.Lock(os.Stderr)
	}

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encConfig)
	} else {
		enc = zapcore.NewConsoleEncoder(encConfig)
	}

	// verbosity is filtered in logf, so the core accepts everything
	core := zapcore.NewCore(enc, ws, zapcore.DebugLevel)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

// SetVerbosity sets the global logging verbosity.
// Typically called once during application startup
// (e.g. after parsing CLI flags).
func SetVerbosity(v int) {
	if v < int(Error) {
		v = int(Error)
	}
	if v > int(Trace) {
		v = int(Trace)
	}
	mu.Lock()
	current = Level(v)
	mu.Unlock()
}

// Verbosity returns the active level.
func Verbosity() Level {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

// logf is the internal logging helper.
// It checks verbosity and hands the entry to zap at the matching zap level.
func logf(l Level, zl zapcore.Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if current < l {
		return
	}
	if l == Trace {
		format = "[TRACE] " + format
	}
	sugar.Logf(zl, format, args...)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	logf(Error, zapcore.ErrorLevel, format, args...)
}

// Warnf logs a recoverable problem, such as a contract skipped by a batch.
// It is shown at Info verbosity.
func Warnf(format string, args ...any) {
	logf(Info, zapcore.WarnLevel, format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	logf(Info, zapcore.InfoLevel, format, args...)
}

// Debugf logs debugging information.
// Use this for diagnostic output useful during development.
func Debugf(format string, args ...any) {
	logf(Debug, zapcore.DebugLevel, format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, zapcore.DebugLevel, format, args...)
}
