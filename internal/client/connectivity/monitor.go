// Package connectivity tracks whether the remote service is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/events"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

// Prober checks reachability; the gRPC client's Ping in production.
type Prober interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	// InitiallyOnline is the state reported before the first probe.
	InitiallyOnline bool
	NewTicker       timex.TickerFactory
}

// Monitor publishes events.Online and events.Offline on state transitions.
type Monitor struct {
	prober Prober
	bus    *events.Bus
	logger logging.Logger
	clock  timex.Clock
	opts   Options

	mu     sync.RWMutex
	online bool
}

func NewMonitor(p Prober, bus *events.Bus, logger logging.Logger, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	if opts.NewTicker == nil {
		opts.NewTicker = timex.NewTicker
	}
	return &Monitor{
		prober: p,
		bus:    bus,
		logger: logger.With("module", "connectivity"),
		clock:  timex.SystemClock,
		opts:   opts,
		online: opts.InitiallyOnline,
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records the new state and publishes an event if it changed.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	typ := events.Offline
	if online {
		typ = events.Online
	}
	m.logger.Info(ctx, "connectivity changed", "state", string(typ))
	m.bus.Publish(ctx, events.Event{Type: typ, At: m.clock.Now()})
}

// Probe pings once and updates the state.
func (m *Monitor) Probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	err := m.prober.Ping(pctx)
	cancel()

	if err != nil && ctx.Err() != nil {
		return
	}
	m.SetOnline(ctx, err == nil)
}

// Run probes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.opts.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.Probe(ctx)

	for {
		select {
		case <-ticker.C():
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
