package ports

import "migfleet/pkg/models"

// Driver is the external hardware-management contract the manager depends
// on. Calls are synchronous and may be slow (hardware round-trip); every one
// of them can fail with a driver error. Implementations must be safe for use
// from multiple goroutines.
type Driver interface {
	// Init performs the driver's global initialization. It is scoped to the
	// manager's lifetime: acquired in Init, released in Shutdown.
	Init() error

	// Shutdown releases the driver's global state.
	Shutdown() error

	// DeviceCount returns the number of accelerators visible to the driver.
	DeviceCount() (int, error)

	// DeviceByIndex acquires the handle for the accelerator at the given
	// index (0..count-1).
	DeviceByIndex(index int) (Device, error)

	// SystemInfo reports driver/library version strings.
	SystemInfo() (models.SystemInfo, error)
}

// Device is the handle for one physical accelerator.
type Device interface {
	UUID() (string, error)
	Name() (string, error)
	TotalMemory() (uint64, error)

	// PartitionMode reports whether partitioning is currently enabled. A
	// device that does not support partitioning reads as not enabled.
	PartitionMode() (bool, error)
	SetPartitionMode(enabled bool) error

	// Profiles lists the partition profiles this device supports.
	Profiles() ([]models.Profile, error)

	// CreatePartition instantiates a partition from the given profile and
	// returns its instance id.
	CreatePartition(profileID uint32) (uint32, error)
	DestroyPartition(instanceID uint32) error

	// Partitions enumerates the partitions currently present on the device.
	Partitions() ([]PartitionDevice, error)

	// CreateComputeInstance subdivides the given partition instance and
	// returns the new compute instance id.
	CreateComputeInstance(instanceID, profileID uint32) (uint32, error)

	// Parent-level sensors, shared with the device's partitions.
	PowerUsage() (uint32, error)
	Temperature() (uint32, error)

	// Accounting facility.
	AccountingMode() (bool, error)
	SetAccountingMode(enabled bool) error
	AccountingStats() ([]models.ProcessAccounting, error)
}

// PartitionDevice is the handle for one partition of a device. The registry
// keys partitions by the UUID in their descriptor, never by this handle.
type PartitionDevice interface {
	// Descriptor resolves the partition's full descriptor. ParentDeviceIndex
	// is filled in by the registry, not the driver.
	Descriptor() (models.Partition, error)

	Utilization() (models.Utilization, error)
	MemoryInfo() (models.MemoryInfo, error)

	// PowerUsage and Temperature may be unsupported on a partition that
	// shares its parent's power/thermal envelope; callers fall back to the
	// parent device on error.
	PowerUsage() (uint32, error)
	Temperature() (uint32, error)

	RunningProcesses() ([]models.Process, error)
}
