package fake

import (
	"fmt"

	"github.com/google/uuid"

	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

type device struct {
	drv    *Driver
	index  int
	uuid   string
	name   string
	memory uint64

	enabled      bool
	profiles     []models.Profile
	partitions   []*part
	nextInstance uint32
	listErr      error

	power uint32
	temp  uint32

	acctEnabled bool
	acct        []models.ProcessAccounting
}

func (d *device) addPartition(spec PartitionSpec) {
	p := &part{
		dev:         d,
		uuid:        spec.UUID,
		instanceID:  spec.InstanceID,
		profileID:   spec.ProfileID,
		memorySize:  spec.MemorySize,
		ciIDs:       append([]uint32(nil), spec.ComputeInstanceIDs...),
		utilization: spec.Utilization,
		processes:   append([]models.Process(nil), spec.Processes...),
	}

	if p.uuid == "" {
		p.uuid = fmt.Sprintf("MIG-%s", uuid.NewString())
	}

	if prof, ok := d.profile(spec.ProfileID); ok {
		if p.memorySize == 0 {
			p.memorySize = prof.MemorySizeMB * 1024 * 1024
		}

		p.multiprocessors = prof.MultiprocessorCount
		p.maxCI = prof.MaxComputeInstances
	}

	if len(p.ciIDs) == 0 {
		p.ciIDs = []uint32{0}
	}

	if spec.InstanceID >= d.nextInstance {
		d.nextInstance = spec.InstanceID + 1
	}

	d.partitions = append(d.partitions, p)
}

func (d *device) profile(id uint32) (models.Profile, bool) {
	for _, prof := range d.profiles {
		if prof.ID == id {
			return prof, true
		}
	}

	return models.Profile{}, false
}

func (d *device) UUID() (string, error) {
	return d.uuid, nil
}

func (d *device) Name() (string, error) {
	return d.name, nil
}

func (d *device) TotalMemory() (uint64, error) {
	return d.memory, nil
}

func (d *device) PartitionMode() (bool, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	return d.enabled, nil
}

func (d *device) SetPartitionMode(enabled bool) error {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.mutations++
	d.enabled = enabled

	// Disabling partitioning tears down the device's instances, like a
	// reset on real hardware.
	if !enabled {
		d.partitions = nil
	}

	return nil
}

func (d *device) Profiles() ([]models.Profile, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	return append([]models.Profile(nil), d.profiles...), nil
}

func (d *device) CreatePartition(profileID uint32) (uint32, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.mutations++

	if !d.enabled {
		return 0, errors.NewDriverError(3, "CreatePartition", "partitioning not enabled")
	}

	if _, ok := d.profile(profileID); !ok {
		return 0, errors.NewDriverError(2, "CreatePartition", fmt.Sprintf("unknown profile %d", profileID))
	}

	instanceID := d.nextInstance
	d.addPartition(PartitionSpec{InstanceID: instanceID, ProfileID: profileID})

	return instanceID, nil
}

func (d *device) DestroyPartition(instanceID uint32) error {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.mutations++

	for i, p := range d.partitions {
		if p.instanceID == instanceID {
			d.partitions = append(d.partitions[:i], d.partitions[i+1:]...)

			return nil
		}
	}

	return errors.NewDriverError(6, "DestroyPartition", fmt.Sprintf("instance %d not found", instanceID))
}

func (d *device) Partitions() ([]ports.PartitionDevice, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	if d.listErr != nil {
		return nil, d.listErr
	}

	out := make([]ports.PartitionDevice, 0, len(d.partitions))
	for _, p := range d.partitions {
		out = append(out, p)
	}

	return out, nil
}

func (d *device) CreateComputeInstance(instanceID, profileID uint32) (uint32, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.mutations++

	for _, p := range d.partitions {
		if p.instanceID != instanceID {
			continue
		}

		if p.maxCI > 0 && uint32(len(p.ciIDs)) >= p.maxCI {
			return 0, errors.NewDriverError(8, "CreateComputeInstance", "insufficient capacity")
		}

		ciID := uint32(len(p.ciIDs))
		p.ciIDs = append(p.ciIDs, ciID)

		return ciID, nil
	}

	return 0, errors.NewDriverError(6, "CreateComputeInstance", fmt.Sprintf("instance %d not found", instanceID))
}

func (d *device) PowerUsage() (uint32, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.telemetryCalls++

	return d.power, nil
}

func (d *device) Temperature() (uint32, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.telemetryCalls++

	return d.temp, nil
}

func (d *device) AccountingMode() (bool, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	return d.acctEnabled, nil
}

func (d *device) SetAccountingMode(enabled bool) error {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	d.drv.mutations++
	d.acctEnabled = enabled

	return nil
}

func (d *device) AccountingStats() ([]models.ProcessAccounting, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()

	return append([]models.ProcessAccounting(nil), d.acct...), nil
}
