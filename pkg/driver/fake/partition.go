package fake

import (
	"migfleet/pkg/errors"
	"migfleet/pkg/models"
)

type part struct {
	dev *device

	uuid            string
	instanceID      uint32
	profileID       uint32
	memorySize      uint64
	multiprocessors uint32
	maxCI           uint32
	ciIDs           []uint32

	utilization models.Utilization
	processes   []models.Process
}

func (p *part) Descriptor() (models.Partition, error) {
	p.dev.drv.mu.Lock()
	defer p.dev.drv.mu.Unlock()

	return models.Partition{
		UUID:                    p.uuid,
		InstanceID:              p.instanceID,
		ProfileID:               p.profileID,
		MemorySize:              p.memorySize,
		MultiprocessorCount:     p.multiprocessors,
		MaxComputeInstances:     p.maxCI,
		CurrentComputeInstances: uint32(len(p.ciIDs)),
		ComputeInstanceIDs:      append([]uint32(nil), p.ciIDs...),
	}, nil
}

func (p *part) Utilization() (models.Utilization, error) {
	p.dev.drv.mu.Lock()
	defer p.dev.drv.mu.Unlock()

	p.dev.drv.telemetryCalls++

	return p.utilization, nil
}

func (p *part) MemoryInfo() (models.MemoryInfo, error) {
	p.dev.drv.mu.Lock()
	defer p.dev.drv.mu.Unlock()

	p.dev.drv.telemetryCalls++

	used := p.memorySize / 4

	return models.MemoryInfo{
		Used:  used,
		Free:  p.memorySize - used,
		Total: p.memorySize,
	}, nil
}

// PowerUsage is unsupported on fake partitions: they share the parent's
// power envelope, so callers fall back to the parent device.
func (p *part) PowerUsage() (uint32, error) {
	return 0, errors.NewDriverError(3, "PowerUsage", "not supported on partition")
}

// Temperature is unsupported on fake partitions, same as PowerUsage.
func (p *part) Temperature() (uint32, error) {
	return 0, errors.NewDriverError(3, "Temperature", "not supported on partition")
}

func (p *part) RunningProcesses() ([]models.Process, error) {
	p.dev.drv.mu.Lock()
	defer p.dev.drv.mu.Unlock()

	p.dev.drv.telemetryCalls++

	return append([]models.Process(nil), p.processes...), nil
}
