//go:build linux && cgo

package nvml

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"migfleet/pkg/models"
)

type partition struct {
	parent nvml.Device
	handle nvml.Device
}

// Descriptor resolves the partition's identity and geometry from the driver.
// The parent device index is left zero; the registry fills it in.
func (p *partition) Descriptor() (models.Partition, error) {
	uuid, ret := p.handle.GetUUID()
	if ret != nvml.SUCCESS {
		return models.Partition{}, apiError("nvmlDeviceGetUUID", ret)
	}

	giID, ret := p.handle.GetGpuInstanceId()
	if ret != nvml.SUCCESS {
		return models.Partition{}, apiError("nvmlDeviceGetGpuInstanceId", ret)
	}

	gi, ret := p.parent.GetGpuInstanceById(giID)
	if ret != nvml.SUCCESS {
		return models.Partition{}, apiError("nvmlDeviceGetGpuInstanceById", ret)
	}

	giInfo, ret := gi.GetInfo()
	if ret != nvml.SUCCESS {
		return models.Partition{}, apiError("nvmlGpuInstanceGetInfo", ret)
	}

	mem, ret := p.handle.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return models.Partition{}, apiError("nvmlDeviceGetMemoryInfo", ret)
	}

	attrs, ret := p.handle.GetAttributes()
	if ret != nvml.SUCCESS {
		return models.Partition{}, apiError("nvmlDeviceGetAttributes", ret)
	}

	ciIDs := computeInstanceIDs(gi)

	return models.Partition{
		UUID:                    uuid,
		InstanceID:              giInfo.Id,
		ProfileID:               giInfo.ProfileId,
		MemorySize:              mem.Total,
		MultiprocessorCount:     attrs.MultiprocessorCount,
		MaxComputeInstances:     attrs.GpuInstanceSliceCount,
		CurrentComputeInstances: uint32(len(ciIDs)),
		ComputeInstanceIDs:      ciIDs,
	}, nil
}

func (p *partition) Utilization() (models.Utilization, error) {
	util, ret := p.handle.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return models.Utilization{}, apiError("nvmlDeviceGetUtilizationRates", ret)
	}

	return models.Utilization{
		GPU:    util.Gpu,
		Memory: util.Memory,
	}, nil
}

func (p *partition) MemoryInfo() (models.MemoryInfo, error) {
	mem, ret := p.handle.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return models.MemoryInfo{}, apiError("nvmlDeviceGetMemoryInfo", ret)
	}

	return models.MemoryInfo{
		Used:  mem.Used,
		Free:  mem.Free,
		Total: mem.Total,
	}, nil
}

// PowerUsage is typically unsupported on a MIG device. The caller falls back
// to the parent device's reading.
func (p *partition) PowerUsage() (uint32, error) {
	power, ret := p.handle.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetPowerUsage", ret)
	}

	return power, nil
}

// Temperature is typically unsupported on a MIG device, same as PowerUsage.
func (p *partition) Temperature() (uint32, error) {
	temp, ret := p.handle.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetTemperature", ret)
	}

	return temp, nil
}

func (p *partition) RunningProcesses() ([]models.Process, error) {
	infos, ret := p.handle.GetComputeRunningProcesses()
	if ret != nvml.SUCCESS {
		return nil, apiError("nvmlDeviceGetComputeRunningProcesses", ret)
	}

	procs := make([]models.Process, 0, len(infos))

	for _, info := range infos {
		name, ret := nvml.SystemGetProcessName(int(info.Pid))
		if ret != nvml.SUCCESS {
			name = fmt.Sprintf("pid_%d", info.Pid)
		}

		procs = append(procs, models.Process{
			PID:        info.Pid,
			Name:       name,
			UsedMemory: info.UsedGpuMemory,
		})
	}

	return procs, nil
}

func computeInstanceIDs(gi nvml.GpuInstance) []uint32 {
	ids := []uint32{}

	for slot := 0; slot < nvml.COMPUTE_INSTANCE_PROFILE_COUNT; slot++ {
		info, ret := gi.GetComputeInstanceProfileInfo(slot, nvml.COMPUTE_INSTANCE_ENGINE_PROFILE_SHARED)
		if ret != nvml.SUCCESS {
			continue
		}

		cis, ret := gi.GetComputeInstances(&info)
		if ret != nvml.SUCCESS {
			continue
		}

		for _, ci := range cis {
			ciInfo, ret := ci.GetInfo()
			if ret != nvml.SUCCESS {
				continue
			}

			ids = append(ids, ciInfo.Id)
		}
	}

	return ids
}
