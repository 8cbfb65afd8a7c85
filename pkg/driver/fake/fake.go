// Package fake is an in-memory Driver implementation with deterministic
// behavior, used by tests and the daemon's --driver=fake mode. It models the
// partitioning semantics of real hardware closely enough for the registry,
// cache and worker to be exercised without devices present.
package fake

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

// DeviceSpec seeds one fake accelerator.
type DeviceSpec struct {
	UUID                string
	Name                string
	TotalMemory         uint64
	PartitioningEnabled bool
	Profiles            []models.Profile
	Partitions          []PartitionSpec
	Accounting          []models.ProcessAccounting
}

// PartitionSpec seeds one pre-existing partition on a device.
type PartitionSpec struct {
	UUID               string
	InstanceID         uint32
	ProfileID          uint32
	MemorySize         uint64 // derived from the profile when zero
	ComputeInstanceIDs []uint32
	Utilization        models.Utilization
	Processes          []models.Process
}

// Driver is the fake fleet. All state is guarded by one mutex; every method
// is safe for concurrent use.
type Driver struct {
	mu          sync.Mutex
	devices     []*device
	initialized bool

	countErr  error
	handleErr map[int]error

	mutations      int
	telemetryCalls int
}

// NewDriver builds a fake fleet from the supplied specs, indexed in order.
func NewDriver(specs ...DeviceSpec) *Driver {
	drv := &Driver{handleErr: map[int]error{}}

	for i, spec := range specs {
		dev := &device{
			drv:     drv,
			index:   i,
			uuid:    spec.UUID,
			name:    spec.Name,
			memory:  spec.TotalMemory,
			enabled: spec.PartitioningEnabled,
			power:   120000,
			temp:    45,
			acct:    spec.Accounting,
		}

		if dev.uuid == "" {
			dev.uuid = fmt.Sprintf("GPU-%s", uuid.NewString())
		}

		dev.profiles = append(dev.profiles, spec.Profiles...)

		for _, p := range spec.Partitions {
			dev.addPartition(p)
		}

		drv.devices = append(drv.devices, dev)
	}

	return drv
}

// Init marks the driver initialized.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.initialized = true

	return nil
}

// Shutdown releases the driver.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.initialized = false

	return nil
}

// DeviceCount returns the fleet size, or the injected error.
func (d *Driver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.countErr != nil {
		return 0, d.countErr
	}

	return len(d.devices), nil
}

// DeviceByIndex returns the handle at index, or the injected error.
func (d *Driver) DeviceByIndex(index int) (ports.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.handleErr[index]; err != nil {
		return nil, err
	}

	if index < 0 || index >= len(d.devices) {
		return nil, errors.NewDriverError(2, "DeviceByIndex", "invalid argument")
	}

	return d.devices[index], nil
}

// SystemInfo reports fixed fake versions.
func (d *Driver) SystemInfo() (models.SystemInfo, error) {
	return models.SystemInfo{
		DriverVersion:  "550.00",
		LibraryVersion: "12.550.00",
		CUDAVersion:    "12.4",
	}, nil
}

// FailDeviceCount injects an error into DeviceCount.
func (d *Driver) FailDeviceCount(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.countErr = err
}

// FailHandle injects an error into DeviceByIndex for one index.
func (d *Driver) FailHandle(index int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handleErr[index] = err
}

// FailPartitionList injects an error into Partitions for one device.
func (d *Driver) FailPartitionList(index int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if index >= 0 && index < len(d.devices) {
		d.devices[index].listErr = err
	}
}

// SetPartitionMemory rewrites the memory size of every partition on one
// device, so tests can distinguish refresh generations.
func (d *Driver) SetPartitionMemory(index int, memory uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < 0 || index >= len(d.devices) {
		return
	}

	for _, p := range d.devices[index].partitions {
		p.memorySize = memory
	}
}

// MutatingCalls returns how many mutating driver calls have been made.
func (d *Driver) MutatingCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.mutations
}

// TelemetryCalls returns how many telemetry getters have been invoked.
func (d *Driver) TelemetryCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.telemetryCalls
}
