// Package heartbeat watches the availability of the external tool host.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// DefaultSchedule checks the tool host every five minutes.
const DefaultSchedule = "@every 5m"

const pingTimeout = 30 * time.Second

// Pinger probes the tool host and reports how many tools it exposes.
type Pinger interface {
	Ping(ctx context.Context) (int, error)
}

// Monitor pings the tool host on a cron schedule and logs availability
// changes. A failed probe is never fatal; the bridge keeps retrying calls on
// its own.
type Monitor struct {
	pinger   Pinger
	schedule string
	logger   *slog.Logger

	mu        sync.Mutex
	checked   bool
	available bool
	tools     int
	lastErr   error
}

// Status is a snapshot of the last probe.
type Status struct {
	Checked   bool
	Available bool
	Tools     int
	Err       error
}

// NewMonitor creates a Monitor. An empty schedule means DefaultSchedule.
func NewMonitor(p Pinger, schedule string, logger *slog.Logger) *Monitor {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{pinger: p, schedule: schedule, logger: logger}
}

// Start runs one probe immediately, then on every tick of the schedule,
// until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	c := robfigcron.New()
	if _, err := c.AddFunc(m.schedule, func() { m.Check(ctx) }); err != nil {
		return fmt.Errorf("heartbeat: schedule %q: %w", m.schedule, err)
	}

	m.logger.Info("heartbeat: started", "schedule", m.schedule)
	m.Check(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("heartbeat: stopped")
	return ctx.Err()
}

// Check probes the tool host once and reports whether it answered.
func (m *Monitor) Check(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	n, err := m.pinger.Ping(pctx)
	up := err == nil

	m.mu.Lock()
	changed := !m.checked || m.available != up
	m.checked = true
	m.available = up
	m.tools = n
	m.lastErr = err
	m.mu.Unlock()

	switch {
	case changed && up:
		m.logger.Info("heartbeat: tool host available", "tools", n)
	case changed:
		m.logger.Warn("heartbeat: tool host unavailable", "err", err)
	default:
		m.logger.Debug("heartbeat: probe", "available", up, "tools", n)
	}
	return up
}

// Status returns the result of the last probe.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Checked: m.checked, Available: m.available, Tools: m.tools, Err: m.lastErr}
}
