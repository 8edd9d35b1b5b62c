package heartbeat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePinger struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (f *fakePinger) Ping(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) == 0 {
		return 3, nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	if err != nil {
		return 0, err
	}
	return 3, nil
}

func (f *fakePinger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestMonitor_LogsTransitionsOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	down := errors.New("spawn node: not found")
	p := &fakePinger{errs: []error{nil, nil, down, down, nil}}
	m := NewMonitor(p, "", logger)

	ctx := context.Background()
	assert.True(t, m.Check(ctx))
	assert.True(t, m.Check(ctx))
	assert.False(t, m.Check(ctx))
	assert.False(t, m.Check(ctx))
	assert.True(t, m.Check(ctx))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "tool host available"), out)
	assert.Equal(t, 1, strings.Count(out, "tool host unavailable"), out)

	st := m.Status()
	assert.True(t, st.Checked)
	assert.True(t, st.Available)
	assert.Equal(t, 3, st.Tools)
	assert.NoError(t, st.Err)
}

func TestMonitor_StatusBeforeFirstProbe(t *testing.T) {
	m := NewMonitor(&fakePinger{}, "", nil)
	assert.Equal(t, Status{}, m.Status())
}

func TestMonitor_StartProbesImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &fakePinger{}
	m := NewMonitor(p, "@every 1h", slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Eventually(t, func() bool { return p.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestMonitor_InvalidSchedule(t *testing.T) {
	m := NewMonitor(&fakePinger{}, "every now and then", nil)
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")
}
