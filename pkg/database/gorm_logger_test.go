package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })
	return &buf
}

func TestGormLogger_Trace(t *testing.T) {
	query := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("slow query is a warning", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(10 * time.Millisecond)

		l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

		assert.Contains(t, buf.String(), `"level":"warn"`)
		assert.Contains(t, buf.String(), "SELECT 1")
	})

	t.Run("record not found is silent", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(time.Second)

		l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)

		assert.Empty(t, buf.String())
	})

	t.Run("other errors are logged", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(time.Second)

		l.Trace(context.Background(), time.Now(), query, errors.New("syntax error"))

		assert.Contains(t, buf.String(), `"level":"error"`)
		assert.Contains(t, buf.String(), "syntax error")
	})

	t.Run("silent mode logs nothing", func(t *testing.T) {
		buf := captureLog(t)
		l := NewGormLogger(time.Millisecond).LogMode(gormlogger.Silent)

		l.Trace(context.Background(), time.Now().Add(-time.Second), query, errors.New("boom"))

		assert.Empty(t, buf.String())
	})
}
