// Package logging provides ready-made implementations of es.Logger.
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/getpup/seqsourcing/es"
)

// ZapLogger adapts a zap logger to the es.Logger interface.
// Keyvals are passed through as zap's loosely-typed sugared key/value pairs.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap creates a ZapLogger from a *zap.Logger.
// The caller keeps ownership of the underlying logger (sync, levels, sinks).
func NewZap(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{
		// Skip this adapter's frame so call sites are reported correctly.
		sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// Debug implements es.Logger.
func (l *ZapLogger) Debug(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

// Info implements es.Logger.
func (l *ZapLogger) Info(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error implements es.Logger.
func (l *ZapLogger) Error(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

var _ es.Logger = (*ZapLogger)(nil)
