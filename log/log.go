// Package log holds the process-wide structured logger.
//
// Every layer of the gateway logs through Logger() so that access lines,
// admission decisions and error reports share one encoder configuration.
package log

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the shared zap logger, building it on first use.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}

	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	if logger.CompareAndSwap(nil, l) {
		return l
	}
	return logger.Load()
}

// Replace swaps the shared logger. Safe to call concurrently with Logger().
// Intended for tests and for main to install a development encoder.
func Replace(l *zap.Logger) {
	logger.Store(l)
}
