// Package logger is a thin package-level wrapper around a zap SugaredLogger.
//
// Until Init is called every function logs to a no-op logger, so packages can
// log freely from tests without setup.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init builds the process logger. format is "console" or "json"; when
// outputPath is set logs are also written to outputPath/bot.log.
func Init(level, format, outputPath string) error {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.InfoLevel)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0o755); err != nil {
			return err
		}
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(outputPath, "bot.log"))
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the process logger.
func Set(l *zap.Logger) {
	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
}

// L returns the underlying zap logger, e.g. for libraries that want one.
func L() *zap.Logger {
	return get().Desugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(msg string) { get().Info(msg) }

func Infof(template string, args ...interface{}) { get().Infof(template, args...) }

// Infow logs a message with structured key-value context.
func Infow(msg string, keysAndValues ...interface{}) { get().Infow(msg, keysAndValues...) }

func Warnf(template string, args ...interface{}) { get().Warnf(template, args...) }

func Warnw(msg string, keysAndValues ...interface{}) { get().Warnw(msg, keysAndValues...) }

// Error logs msg at error level with err attached as a field.
func Error(msg string, err error) { get().Errorw(msg, "error", err) }

func Errorf(template string, args ...interface{}) { get().Errorf(template, args...) }

// Fatal logs and exits the process.
func Fatal(msg string, err error) { get().Fatalw(msg, "error", err) }

func Fatalf(template string, args ...interface{}) { get().Fatalf(template, args...) }

// Sync flushes buffered entries. Call it before exit.
func Sync() { _ = get().Sync() }
