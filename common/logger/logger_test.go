package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(buf, nil))}
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestWithOwner_AttachesOwnerID(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.WithOwner("u1").Info("upload rejected")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "u1", rec["owner_id"])
	assert.Equal(t, "upload rejected", rec["msg"])
}

func TestWithEntry_ChainsWithOwner(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.WithOwner("u1").WithEntry("abc-123").Info("entry deleted")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "u1", rec["owner_id"])
	assert.Equal(t, "abc-123", rec["entry_id"])
}

func TestWithOwner_DoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	_ = log.WithOwner("u1")
	log.Info("no context")

	rec := lastRecord(t, &buf)
	_, present := rec["owner_id"]
	assert.False(t, present)
}

func TestError_AttachesStack(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Error("boom")

	rec := lastRecord(t, &buf)
	assert.Contains(t, rec["stack"], "goroutine")
}
