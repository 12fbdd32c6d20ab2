// Package logger provides structured logging using Zap.
package logger

import (
	"os"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	mu    sync.RWMutex
)

// Options tunes the global logger beyond the environment switch.
type Options struct {
	Level string
	// File, when set, receives a copy of every entry, rotated daily.
	File string
}

// Init initializes the global logger for the given environment.
// For "production", it uses a JSON encoder. For all other environments,
// it uses a human-readable console encoder.
func Init(env string) {
	InitWithOptions(env, Options{})
}

// InitWithOptions is Init with an explicit level and optional log file. It
// replaces any logger installed earlier, so main can start with Init and
// reconfigure once the config is loaded.
func InitWithOptions(env string, opts Options) {
	base, err := build(env, opts)
	if err != nil {
		// Keep logging to stdout when the log file cannot be opened.
		base, _ = build(env, Options{Level: opts.Level})
	}
	if base == nil {
		base = zap.NewNop()
	}

	next := base.Sugar()
	mu.Lock()
	prev := sugar
	sugar = next
	mu.Unlock()

	if prev != nil {
		_ = prev.Sync()
	}
	if err != nil {
		next.Errorw("failed to open log file, logging to stdout only", "file", opts.File, "error", err)
	}
}

func build(env string, opts Options) (*zap.Logger, error) {
	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	if env == "production" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := parseLevel(opts.Level, env)
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)}

	if opts.File != "" {
		rl, err := rotatelogs.New(
			opts.File+".%Y%m%d",
			rotatelogs.WithLinkName(opts.File),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(7*24*time.Hour),
		)
		if err != nil {
			return nil, err
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rl), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func parseLevel(l, env string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	if env == "production" {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

// Get returns the global sugared logger.
// If Init has not been called, it initializes a development logger.
func Get() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		return s
	}

	mu.Lock()
	defer mu.Unlock()
	if sugar == nil {
		base, err := build("development", Options{})
		if err != nil {
			base = zap.NewNop()
		}
		sugar = base.Sugar()
	}
	return sugar
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		_ = s.Sync()
	}
}
