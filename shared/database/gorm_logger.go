package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transparencia-backend/shared/logger"
)

// queryLogger routes gorm's statement log into the service logger. Missing
// rows are not errors here, the services turn them into 404s.
type queryLogger struct {
	log   *logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newQueryLogger(log *logger.Logger, level gormlogger.LogLevel, slow time.Duration) *queryLogger {
	return &queryLogger{log: log.With("component", "gorm"), level: level, slow: slow}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Info {
		q.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Warn {
		q.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Error {
		q.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && q.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		q.log.Error("query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case q.slow > 0 && elapsed > q.slow && q.level >= gormlogger.Warn:
		sql, rows := fc()
		q.log.Warn("slow query", "elapsed", elapsed, "threshold", q.slow, "rows", rows, "sql", sql)
	case q.level >= gormlogger.Info:
		sql, rows := fc()
		q.log.Debug("query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
