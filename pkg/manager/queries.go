package manager

import (
	"context"

	"migfleet/pkg/models"
)

// Read operations never block on the driver: they serve from the cached
// registry and telemetry under their locks. The exceptions are documented
// per method.

// Partitions returns all currently registered partition descriptors.
func (m *Manager) Partitions() []models.Partition {
	if err := m.ready(); err != nil {
		return nil
	}

	return m.registry.All()
}

// PartitionsForDevice returns the registered partitions of one device. An
// out-of-range index yields an empty slice, matching an empty device.
func (m *Manager) PartitionsForDevice(index int) []models.Partition {
	if err := m.ready(); err != nil {
		return nil
	}

	return m.registry.ForDevice(index)
}

// FindPartition returns the registered descriptor for the given uuid.
func (m *Manager) FindPartition(uuid string) (models.Partition, bool) {
	if err := m.ready(); err != nil {
		return models.Partition{}, false
	}

	return m.registry.ByUUID(uuid)
}

// IsPartitioningEnabled reports the partitioning mode of a device as of the
// last refresh pass.
func (m *Manager) IsPartitioningEnabled(index int) bool {
	if err := m.ready(); err != nil {
		return false
	}

	return m.registry.ModeEnabled(index)
}

// Telemetry returns the most recent snapshot for the given partition,
// collecting on demand when the cache misses. Unknown uuids fail with a
// not-found error before any driver call is made.
func (m *Manager) Telemetry(ctx context.Context, uuid string) (models.Telemetry, error) {
	if err := m.ready(); err != nil {
		return models.Telemetry{}, err
	}

	return m.cache.Cached(ctx, uuid)
}

// AllTelemetry returns the snapshot cache, collecting fresh when no refresh
// has populated it yet.
func (m *Manager) AllTelemetry(ctx context.Context) map[string]models.Telemetry {
	if err := m.ready(); err != nil {
		return nil
	}

	return m.cache.AllCached(ctx)
}

// Profiles lists the partition profiles a device supports. Profiles are
// queried from the driver on demand; they are static per device and not
// cached.
func (m *Manager) Profiles(index int) ([]models.Profile, error) {
	dev, err := m.device(index)
	if err != nil {
		return nil, err
	}

	return dev.Handle.Profiles()
}

// DeviceCount returns the number of managed devices.
func (m *Manager) DeviceCount() int {
	if err := m.ready(); err != nil {
		return 0
	}

	return m.inventory.Count()
}

// Devices returns the identity of every managed device.
func (m *Manager) Devices() []models.Device {
	if err := m.ready(); err != nil {
		return nil
	}

	managed := m.inventory.Devices()
	out := make([]models.Device, 0, len(managed))

	for _, dev := range managed {
		out = append(out, dev.Info)
	}

	return out
}

// DeviceName returns the name captured for a device at startup.
func (m *Manager) DeviceName(index int) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}

	dev, err := m.inventory.ByIndex(index)
	if err != nil {
		return "", err
	}

	return dev.Info.Name, nil
}

// SystemInfo reports the driver stack versions. This is a driver call.
func (m *Manager) SystemInfo() (models.SystemInfo, error) {
	if err := m.ready(); err != nil {
		return models.SystemInfo{}, err
	}

	return m.driver.SystemInfo()
}

// QueueDepth returns the number of commands waiting on the worker.
func (m *Manager) QueueDepth() int {
	if err := m.ready(); err != nil {
		return 0
	}

	return m.worker.depth()
}

// RefreshCount returns the number of completed registry refresh passes.
func (m *Manager) RefreshCount() uint64 {
	if err := m.ready(); err != nil {
		return 0
	}

	return m.registry.RefreshCount()
}
