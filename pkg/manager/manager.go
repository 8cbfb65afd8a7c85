package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"migfleet/pkg/accounting"
	"migfleet/pkg/defaults"
	"migfleet/pkg/errors"
	"migfleet/pkg/log"
	"migfleet/pkg/partition"
	"migfleet/pkg/ports"
	"migfleet/pkg/telemetry"
)

// Config holds the manager's tunables.
type Config struct {
	// MonitorInterval is the refresh cadence used when StartMonitoring is
	// called without an explicit interval.
	MonitorInterval time.Duration
}

// Manager is the owning facade over the device inventory, partition
// registry, telemetry cache, command worker and monitor loop. It is
// constructed explicitly and passed to callers; there is no process-wide
// instance. At most one initialized Manager may exist per driver, since the
// driver's global init/teardown is scoped to the manager's lifetime.
type Manager struct {
	driver ports.Driver
	clock  func() time.Time
	cfg    Config

	mu          sync.Mutex
	initialized bool
	inventory   *partition.Inventory
	registry    *partition.Registry
	cache       *telemetry.Cache
	acct        *accounting.Service
	worker      *worker
	mon         *monitor
}

// New builds a manager over the supplied ports. Call Init before use.
func New(p *ports.Collection, cfg Config) *Manager {
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = defaults.MonitorInterval
	}

	return &Manager{
		driver: p.Driver,
		clock:  clock,
		cfg:    cfg,
	}
}

// Init performs driver initialization, builds the device inventory, runs one
// synchronous registry refresh and starts the command worker. Any error is
// fatal: the manager cannot run partially initialized and the caller is
// expected to abort.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return errors.ErrAlreadyRunning
	}

	if m.driver == nil {
		return errors.NewInitFailure(errors.ErrDriverRequired)
	}

	logger := log.GetLogger(ctx).WithField("component", "manager")

	if err := m.driver.Init(); err != nil {
		return errors.NewInitFailure(fmt.Errorf("driver init: %w", err))
	}

	inventory, err := partition.BuildInventory(ctx, m.driver)
	if err != nil {
		_ = m.driver.Shutdown()

		return err
	}

	m.inventory = inventory
	m.registry = partition.NewRegistry(inventory)
	m.registry.Refresh(ctx)

	m.cache = telemetry.NewCache(m.registry, m.clock)
	m.acct = accounting.NewService(inventory)

	m.worker = newWorker(m.registry.Refresh)
	m.worker.start(ctx)

	m.initialized = true

	logger.Infof("manager initialized, %d devices, %d partitions", inventory.Count(), len(m.registry.All()))

	return nil
}

// Shutdown stops the monitor loop, drains and stops the command worker
// (cancelling any still-queued commands), and releases the driver. It is
// idempotent.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return
	}

	logger := log.GetLogger(ctx).WithField("component", "manager")

	if m.mon != nil {
		m.mon.halt()
		m.mon = nil
	}

	m.worker.stop()

	if err := m.driver.Shutdown(); err != nil {
		logger.Warnf("driver shutdown: %v", err)
	}

	m.initialized = false

	logger.Info("manager shut down")
}

// StartMonitoring starts the periodic refresh loop, stopping any previous
// one first so two loops never run concurrently. A non-positive interval
// selects the configured default.
func (m *Manager) StartMonitoring(ctx context.Context, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return errors.ErrNotInitialized
	}

	if m.mon != nil {
		m.mon.halt()
		m.mon = nil
	}

	if interval <= 0 {
		interval = m.cfg.MonitorInterval
	}

	m.mon = startMonitor(ctx, interval, m.monitorPass)

	return nil
}

// StopMonitoring stops the refresh loop if one is running.
func (m *Manager) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mon != nil {
		m.mon.halt()
		m.mon = nil
	}
}

func (m *Manager) monitorPass(ctx context.Context) {
	m.registry.Refresh(ctx)
	m.cache.RebuildAll(ctx)
}

func (m *Manager) ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return errors.ErrNotInitialized
	}

	return nil
}

func (m *Manager) device(index int) (partition.ManagedDevice, error) {
	if err := m.ready(); err != nil {
		return partition.ManagedDevice{}, err
	}

	return m.inventory.ByIndex(index)
}

// Accounting returns the process-accounting service for the fleet.
func (m *Manager) Accounting() *accounting.Service {
	return m.acct
}
