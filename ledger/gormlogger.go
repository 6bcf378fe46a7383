package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm's log output to the global zap logger.
type gormLogger struct {
	level logger.LogLevel
}

func newGormLogger() *gormLogger {
	return &gormLogger{level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		zap.S().Infow(msg, "data", data)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		zap.S().Warnw(msg, "data", data)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		zap.S().Errorw(msg, "data", data)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []interface{}{
		"sql", sql,
		"rows", rows,
		"elapsed", elapsed,
	}

	switch {
	case err != nil && err != logger.ErrRecordNotFound && l.level >= logger.Error:
		zap.S().Errorw("sql failed", append(fields, "error", err)...)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		zap.S().Warnw("slow sql", append(fields, "threshold", slowQueryThreshold)...)
	case l.level >= logger.Info:
		zap.S().Debugw("sql", fields...)
	}
}
