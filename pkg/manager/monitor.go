package manager

import (
	"context"
	"time"

	"migfleet/pkg/log"
)

// monitor is the periodic refresh loop: every interval it rebuilds the
// partition registry and then the telemetry cache. The wait is interruptible
// so shutdown never sits out the remainder of an interval.
type monitor struct {
	interval time.Duration
	stop     chan struct{}
	exited   chan struct{}
}

func startMonitor(ctx context.Context, interval time.Duration, pass func(context.Context)) *monitor {
	m := &monitor{
		interval: interval,
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	go m.run(ctx, pass)

	return m
}

func (m *monitor) run(ctx context.Context, pass func(context.Context)) {
	logger := log.GetLogger(ctx).WithField("component", "monitor")
	logger.Infof("monitoring started, interval %s", m.interval)

	defer close(m.exited)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			logger.Info("monitoring stopped")

			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// halt signals the loop and waits for it to exit. Safe to call once.
func (m *monitor) halt() {
	close(m.stop)
	<-m.exited
}
