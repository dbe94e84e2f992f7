// Package feed receives daemon state snapshots over the live channel and applies
// them to a session in arrival order.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwulff/pyroshow-go/internal/health"
)

// Source delivers raw snapshot payloads. Run blocks until ctx is cancelled or the
// connection fails, sending each payload to out in the order it arrived.
type Source interface {
	Run(ctx context.Context, out chan<- []byte) error
}

// Applier takes a raw snapshot. session.Session implements it.
type Applier interface {
	ApplySnapshot(ctx context.Context, raw []byte) error
	Health() (health.Health, error)
}

// HealthFunc is called with the fresh health of the staged show after each applied
// snapshot and on every evaluation tick.
type HealthFunc func(health.Health)

// DefaultRetryInterval is how long the monitor waits before reconnecting a source.
const DefaultRetryInterval = 2 * time.Second

// Monitor pumps a source into an applier, reconnecting when the source fails.
type Monitor struct {
	Source        Source
	Target        Applier
	OnHealth      HealthFunc
	RetryInterval time.Duration
	// EvaluateEvery re-evaluates health between snapshots so a silent feed ages
	// receivers out. Zero evaluates only when a snapshot arrives.
	EvaluateEvery time.Duration
	Logger        *slog.Logger

	applied  uint64
	rejected uint64
}

// Stats reports how many payloads were applied and rejected. Call it only after Run
// has returned.
func (m *Monitor) Stats() (applied, rejected uint64) {
	return m.applied, m.rejected
}

func (m *Monitor) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Monitor) retryInterval() time.Duration {
	if m.RetryInterval > 0 {
		return m.RetryInterval
	}
	return DefaultRetryInterval
}

// Run consumes the source until ctx is cancelled. Payloads that fail to decode are
// logged and skipped; the previous snapshot stays in force.
func (m *Monitor) Run(ctx context.Context) error {
	payloads := make(chan []byte, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var tick <-chan time.Time
		if m.EvaluateEvery > 0 {
			ticker := time.NewTicker(m.EvaluateEvery)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case raw, ok := <-payloads:
				if !ok {
					return
				}
				m.apply(ctx, raw)
			case <-tick:
				m.evaluate()
			}
		}
	}()

	err := m.runSource(ctx, payloads)
	close(payloads)
	<-done
	return err
}

func (m *Monitor) runSource(ctx context.Context, payloads chan<- []byte) error {
	log := m.logger()
	for {
		err := m.Source.Run(ctx, payloads)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("live feed disconnected, will retry",
				"error", err,
				"retry_in", m.retryInterval())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.retryInterval()):
		}
	}
}

func (m *Monitor) apply(ctx context.Context, raw []byte) {
	log := m.logger()
	if err := m.Target.ApplySnapshot(ctx, raw); err != nil {
		m.rejected++
		log.Warn("snapshot rejected", "error", err, "size", len(raw))
		return
	}
	m.applied++
	m.evaluate()
}

func (m *Monitor) evaluate() {
	if m.OnHealth == nil {
		return
	}
	h, err := m.Target.Health()
	if err != nil {
		m.logger().Debug("health not evaluated", "error", err)
		return
	}
	m.OnHealth(h)
}
