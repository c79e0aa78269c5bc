package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGelfWriter struct {
	messages []*gelf.Message
}

func (w *fakeGelfWriter) WriteMessage(m *gelf.Message) error {
	w.messages = append(w.messages, m)
	return nil
}

func TestGelfHandler_ForwardsRecord(t *testing.T) {
	w := &fakeGelfWriter{}
	h := NewGelfHandler(w, slog.LevelInfo, "console")

	logger := slog.New(h)
	logger.Info("vehicle connected", "vehicle", "drone")

	require.Len(t, w.messages, 1)
	m := w.messages[0]
	assert.Equal(t, "vehicle connected", m.Short)
	assert.Equal(t, int32(gelfLevelInfo), m.Level)
	assert.Equal(t, "console", m.Facility)
	assert.Equal(t, "drone", m.Extra["_vehicle"])
}

func TestGelfHandler_LevelGate(t *testing.T) {
	w := &fakeGelfWriter{}
	h := NewGelfHandler(w, slog.LevelWarn, "console")

	logger := slog.New(h)
	logger.Info("below gate")
	logger.Warn("at gate")

	require.Len(t, w.messages, 1)
	assert.Equal(t, "at gate", w.messages[0].Short)
	assert.Equal(t, int32(gelfLevelWarning), w.messages[0].Level)
}

func TestGelfHandler_WithAttrsCarryOver(t *testing.T) {
	w := &fakeGelfWriter{}
	h := NewGelfHandler(w, slog.LevelDebug, "console")

	logger := slog.New(h).With("component", "intake")
	logger.Error("socket closed")

	require.Len(t, w.messages, 1)
	m := w.messages[0]
	assert.Equal(t, int32(gelfLevelError), m.Level)
	assert.Equal(t, "intake", m.Extra["_component"])
}

func TestGelfLevel_Mapping(t *testing.T) {
	assert.Equal(t, int32(gelfLevelDebug), gelfLevel(slog.LevelDebug))
	assert.Equal(t, int32(gelfLevelInfo), gelfLevel(slog.LevelInfo))
	assert.Equal(t, int32(gelfLevelWarning), gelfLevel(slog.LevelWarn))
	assert.Equal(t, int32(gelfLevelError), gelfLevel(slog.LevelError))
}

func TestGelfHandler_ContextIgnored(t *testing.T) {
	w := &fakeGelfWriter{}
	h := NewGelfHandler(w, slog.LevelInfo, "console")
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}
