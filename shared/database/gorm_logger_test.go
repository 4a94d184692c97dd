package database

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/logger"
)

func observedSession(t *testing.T, level gormlogger.LogLevel, slow time.Duration) (*gorm.DB, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	db := dbtest.New(t, &participation.SocialLink{})
	return db.Session(&gorm.Session{Logger: newQueryLogger(log, level, slow)}), logs
}

func TestQueryLoggerSkipsMissingRows(t *testing.T) {
	db, logs := observedSession(t, gormlogger.Warn, time.Hour)

	var link participation.SocialLink
	err := db.First(&link, 42).Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Zero(t, logs.Len())
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	db, logs := observedSession(t, gormlogger.Warn, time.Hour)

	require.Error(t, db.Exec("SELECT * FROM no_such_table").Error)
	failed := logs.FilterMessage("query failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "gorm", failed[0].ContextMap()["component"])
	assert.Contains(t, failed[0].ContextMap()["sql"], "no_such_table")
}

func TestQueryLoggerSlowAndSilent(t *testing.T) {
	db, logs := observedSession(t, gormlogger.Warn, time.Nanosecond)
	var n int64
	require.NoError(t, db.Model(&participation.SocialLink{}).Count(&n).Error)
	assert.Equal(t, 1, logs.FilterMessage("slow query").Len())

	quiet, quietLogs := observedSession(t, gormlogger.Silent, time.Nanosecond)
	require.Error(t, quiet.Exec("SELECT * FROM no_such_table").Error)
	assert.Zero(t, quietLogs.Len())
}
