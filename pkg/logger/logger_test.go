package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestContextFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf, Format: "json"})

	ctx := logg.WithRequestID(context.Background(), "req-1")
	ctx = logg.WithSubject(ctx, "user-1")
	logg.Info(ctx, "hello")
	logg.Info(context.Background(), "bare")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "api", entries[0]["service"])
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Equal(t, "user-1", entries[0]["subject_id"])
	assert.NotContains(t, entries[1], "request_id")
}

func TestWarnErrOmitsStackByDefault(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf, Format: "json"})

	logg.WarnErr(context.Background(), "mirror failed", errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.NotContains(t, entries[0], "stack")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestLevelFiltersAndErrorCarriesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "cron", Level: zerolog.WarnLevel, Output: &buf, Format: "json"})

	ctx := logg.WithFields(context.Background(), map[string]any{"job": "resync"})
	logg.Info(ctx, "dropped")
	logg.Error(ctx, "job failed", errors.New("timeout"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "resync", entries[0]["job"])
	assert.Equal(t, "timeout", entries[0]["error"])
	assert.NotEmpty(t, entries[0]["stack"])
}

func TestNopDiscards(t *testing.T) {
	logg := Nop()
	ctx := logg.WithRequestID(context.Background(), "req")
	logg.Error(ctx, "ignored", errors.New("x"))
}
