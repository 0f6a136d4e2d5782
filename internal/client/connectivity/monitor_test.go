package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/events"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *fakeProber) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return err
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func recorder(bus *events.Bus) (func() []events.Type, func()) {
	var mu sync.Mutex
	var got []events.Type
	unsub := bus.Subscribe(func(e events.Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})
	return func() []events.Type {
		mu.Lock()
		defer mu.Unlock()
		return append([]events.Type(nil), got...)
	}, unsub
}

func TestSetOnline_PublishesOnlyTransitions(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	seen, unsub := recorder(bus)
	defer unsub()

	m := NewMonitor(&fakeProber{}, bus, logging.Nop(), Options{})
	ctx := context.Background()

	assert.False(t, m.IsOnline())
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, true)
	m.SetOnline(ctx, true)
	m.SetOnline(ctx, false)

	assert.Equal(t, []events.Type{events.Online, events.Offline}, seen())
	assert.False(t, m.IsOnline())
}

func TestProbe_FollowsPingResult(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	p := &fakeProber{results: []error{nil, errors.New("unavailable"), nil}}
	m := NewMonitor(p, bus, logging.Nop(), Options{InitiallyOnline: true})
	ctx := context.Background()

	m.Probe(ctx)
	assert.True(t, m.IsOnline())
	m.Probe(ctx)
	assert.False(t, m.IsOnline())
	m.Probe(ctx)
	assert.True(t, m.IsOnline())
}

func TestRun_ProbesImmediatelyAndOnTick(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	seen, unsub := recorder(bus)
	defer unsub()

	tick := &manualTicker{ch: make(chan time.Time)}
	p := &fakeProber{results: []error{errors.New("down"), nil}}
	m := NewMonitor(p, bus, logging.Nop(), Options{
		InitiallyOnline: true,
		NewTicker:       func(time.Duration) timex.Ticker { return tick },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, 5*time.Millisecond)

	tick.ch <- time.Now()
	require.Eventually(t, m.IsOnline, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []events.Type{events.Offline, events.Online}, seen())
}
