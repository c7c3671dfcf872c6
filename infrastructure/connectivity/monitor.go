// Package connectivity tracks whether the remote memo service is reachable
// and notifies subscribers of transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"easymemo/application/ports"
)

const (
	// DefaultProbeTimeout bounds one reachability request
	DefaultProbeTimeout = 5 * time.Second
	// DefaultInterval is the periodic probe cadence
	DefaultInterval = 30 * time.Second
)

// Monitor holds one connectivity state fed by two inputs: a periodic probe
// and platform network-change events injected through NotifyChange. Both
// funnel through the same transition logic, so they cannot race each other
// into inconsistent state.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(online bool)

	remote       ports.RemoteAPI
	probeTimeout time.Duration
	interval     time.Duration
	rescheduled  chan struct{}
	logger       *zap.Logger
}

var _ ports.Connectivity = (*Monitor)(nil)

// Option configures a Monitor
type Option func(*Monitor)

// WithProbeTimeout overrides the per-probe bound
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.probeTimeout = d }
}

// WithInterval overrides the periodic probe cadence
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithInitialState seeds the last-known flag, typically from the persisted
// snapshot, so the first operations before any probe lean the right way.
func WithInitialState(online bool) Option {
	return func(m *Monitor) { m.online = online }
}

// NewMonitor creates a monitor. It starts with the seeded state until the
// first probe or event arrives.
func NewMonitor(remote ports.RemoteAPI, logger *zap.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		remote:       remote,
		probeTimeout: DefaultProbeTimeout,
		interval:     DefaultInterval,
		rescheduled:  make(chan struct{}, 1),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online returns the last-known reachability without blocking
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback. Callbacks run synchronously on
// the goroutine that observed the transition, in registration order.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Probe issues one reachability request and folds the result into the state.
// It never fails: an error or a timeout is simply "offline".
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	online := m.remote.Probe(probeCtx)
	m.setState(online)
	return online
}

// NotifyChange feeds a platform-level network event into the monitor
func (m *Monitor) NotifyChange(online bool) {
	m.setState(online)
}

// SetInterval changes the periodic probe cadence. A running Run loop picks the
// new cadence up immediately.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()

	select {
	case m.rescheduled <- struct{}{}:
	default:
	}
}

func (m *Monitor) currentInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Run probes periodically until the context is cancelled. Going offline never
// cancels operations already in flight; they fail or succeed on their own
// timeouts.
func (m *Monitor) Run(ctx context.Context) {
	timer := time.NewTimer(m.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.rescheduled:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(m.currentInterval())
		case <-timer.C:
			m.Probe(ctx)
			timer.Reset(m.currentInterval())
		}
	}
}

func (m *Monitor) setState(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if online {
		m.logger.Info("Connectivity restored")
	} else {
		m.logger.Info("Connectivity lost")
	}

	for _, fn := range subs {
		fn(online)
	}
}
