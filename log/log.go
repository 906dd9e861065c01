// Package log provides the process wide zap logger.
package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.RWMutex
	sugared    *zap.SugaredLogger
	baseLogger *zap.Logger
)

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	mu.Lock()
	baseLogger = zapLogger
	sugared = zapLogger.Sugar()
	mu.Unlock()
	return nil
}

// GetZapLogger returns the base zap logger, falling back to a production
// logger if Init was never called.
func GetZapLogger() *zap.Logger {
	getSugared()
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

func getSugared() *zap.SugaredLogger {
	mu.RLock()
	l := sugared
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if sugared == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		sugared = baseLogger.Sugar()
	}
	return sugared
}

// Sync flushes any buffered log entries
func Sync() {
	_ = getSugared().Sync()
}

func Debugf(template string, args ...interface{}) {
	getSugared().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	getSugared().Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	getSugared().Info(args...)
}

func Infof(template string, args ...interface{}) {
	getSugared().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	getSugared().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	getSugared().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	getSugared().Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	getSugared().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	getSugared().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	getSugared().Errorw(msg, keysAndValues...)
}

func Fatal(args ...interface{}) {
	getSugared().Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	getSugared().Fatalf(template, args...)
	os.Exit(1)
}
