package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestTableFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM products WHERE id = ?":                            "products",
		"UPDATE download_tokens SET download_count = download_count + 1": "download_tokens",
		"INSERT INTO `orders` (`id`) VALUES (?)":                         "orders",
		`SELECT COUNT(1) FROM (SELECT id FROM "public"."bundles") AS b`:  "bundles",
		"DELETE FROM bundle_products WHERE bundle_id = ?":                "bundle_products",
		"VACUUM": "",
	}
	for sql, want := range cases {
		assert.Equal(t, want, tableFromSQL(sql), sql)
	}
}

func TestMaskParam(t *testing.T) {
	assert.Equal(t, "b***@example.com", MaskParam("buyer@example.com"))
	assert.Equal(t, "0a1b2c***", MaskParam("0a1b2c3d4e5f60718293a4b5c6d7e8f9"))
	assert.Equal(t, "completed", MaskParam("completed"))
	assert.Equal(t, "cs_test_1", MaskParam("cs_test_1"))
}

func TestParamsFilter(t *testing.T) {
	quiet := NewGormLogger(DefaultGormLoggerConfig())
	_, params := quiet.ParamsFilter(context.Background(), "SELECT 1", "buyer@example.com")
	assert.Nil(t, params)

	verbose := NewGormLogger(GormLoggerConfig{Level: gormlogger.Info, LogParams: true})
	_, params = verbose.ParamsFilter(context.Background(), "SELECT 1", "buyer@example.com", int64(7))
	assert.Equal(t, []interface{}{"b***@example.com", int64(7)}, params)
}

func TestTraceLogsSlowQueriesWithTable(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: 500 * time.Millisecond, IgnoreRecordNotFound: true})

	sql := func() (string, int64) { return "UPDATE download_tokens SET download_count = download_count + 1", 1 }
	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	l.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now(), sql, errors.New("disk full"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "download_tokens", entries[0].ContextMap()["table"])
	assert.Equal(t, "UPDATE", entries[0].ContextMap()["operation"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
