// Package logging constructs the zap.Logger every worker and background
// component logs through. Workers log structured fields (worker_id,
// attention_point, slot) at debug/info level. Nothing in this module logs
// at Fatal; the unreachable slot-index states in internal/catalogue and
// internal/registry panic instead.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level selects the minimum enabled log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a production-style JSON zap.Logger at the given minimum
// level. Callers should defer Sync() on the returned logger.
func New(level Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	return cfg.Build()
}

// NewNop returns a logger that discards everything, for tests and
// library callers that don't want log output.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// WorkerFields builds the structured fields every worker loop iteration
// logs with: which worker, which attention point in its loop, and
// (for partitioned workers) which queue/slot it's operating on.
func WorkerFields(workerID string, attentionPoint string, slot int) []zap.Field {
	return []zap.Field{
		zap.String("worker_id", workerID),
		zap.String("attention_point", attentionPoint),
		zap.Int("slot", slot),
	}
}
