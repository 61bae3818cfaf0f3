// Package logger_test contains tests for the logger package
package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "warn")

	l.Info("should be dropped")
	l.Warn("should be kept", "task_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "should be kept", entry["msg"])
	assert.Equal(t, "abc", entry["task_id"])
}

func TestFromContext(t *testing.T) {
	t.Run("returns fallback without logger", func(t *testing.T) {
		fallback, _ := logger.GetTestLogger(t)
		assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		stored, _ := logger.GetTestLogger(t)
		fallback, _ := logger.GetTestLogger(t)
		ctx := logger.WithLogger(context.Background(), stored)
		assert.Same(t, stored, logger.FromContextOrDefault(ctx, fallback))
	})

	t.Run("adds request id to fallback", func(t *testing.T) {
		fallback, buf := logger.GetTestLogger(t)
		ctx := logger.WithRequestID(context.Background(), "req-42")

		logger.FromContextOrDefault(ctx, fallback).Info("hello")

		logger.AssertLogContains(t, buf, `"request_id":"req-42"`)
		assert.Equal(t, "req-42", logger.RequestID(ctx))
	})

	t.Run("adds request id to stored logger", func(t *testing.T) {
		stored, buf := logger.GetTestLogger(t)
		ctx := logger.WithLogger(context.Background(), stored)
		ctx = logger.WithRequestID(ctx, "req-7")

		logger.FromContext(ctx).Info("hello")

		entries, err := buf.GetLogEntries()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "req-7", entries[0]["request_id"])
	})
}
