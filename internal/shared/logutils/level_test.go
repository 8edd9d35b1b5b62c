package logutils

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelTraceBelowDebug(t *testing.T) {
	assert.Less(t, LevelTrace, slog.LevelDebug)

	var buf bytes.Buffer
	debugOnly := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	debugOnly.Log(context.Background(), LevelTrace, "wire")
	assert.Empty(t, buf.String())

	trace := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))
	trace.Log(context.Background(), LevelTrace, "wire")
	assert.Contains(t, buf.String(), "msg=wire")
}
