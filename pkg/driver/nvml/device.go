//go:build linux && cgo

package nvml

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

type device struct {
	handle nvml.Device
}

func (d *device) UUID() (string, error) {
	uuid, ret := d.handle.GetUUID()
	if ret != nvml.SUCCESS {
		return "", apiError("nvmlDeviceGetUUID", ret)
	}

	return uuid, nil
}

func (d *device) Name() (string, error) {
	name, ret := d.handle.GetName()
	if ret != nvml.SUCCESS {
		return "", apiError("nvmlDeviceGetName", ret)
	}

	return name, nil
}

func (d *device) TotalMemory() (uint64, error) {
	mem, ret := d.handle.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetMemoryInfo", ret)
	}

	return mem.Total, nil
}

// PartitionMode reads the device's current MIG mode. Devices without MIG
// support report the mode as disabled rather than failing.
func (d *device) PartitionMode() (bool, error) {
	current, _, ret := d.handle.GetMigMode()
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return false, nil
	}

	if ret != nvml.SUCCESS {
		return false, apiError("nvmlDeviceGetMigMode", ret)
	}

	return current == nvml.DEVICE_MIG_ENABLE, nil
}

func (d *device) SetPartitionMode(enabled bool) error {
	mode := nvml.DEVICE_MIG_DISABLE
	if enabled {
		mode = nvml.DEVICE_MIG_ENABLE
	}

	activation, ret := d.handle.SetMigMode(mode)
	if ret != nvml.SUCCESS {
		return apiError("nvmlDeviceSetMigMode", ret)
	}

	// The mode change may need a GPU reset before it takes effect.
	if activation != nvml.SUCCESS {
		return apiError("nvmlDeviceSetMigMode activation", activation)
	}

	return nil
}

// Profiles enumerates the GPU instance profiles the device supports. Profile
// slots the hardware does not implement are skipped.
func (d *device) Profiles() ([]models.Profile, error) {
	profiles := []models.Profile{}

	for slot := 0; slot < nvml.GPU_INSTANCE_PROFILE_COUNT; slot++ {
		info, ret := d.handle.GetGpuInstanceProfileInfo(slot)
		if ret == nvml.ERROR_NOT_SUPPORTED || ret == nvml.ERROR_INVALID_ARGUMENT {
			continue
		}

		if ret != nvml.SUCCESS {
			return nil, apiError("nvmlDeviceGetGpuInstanceProfileInfo", ret)
		}

		profiles = append(profiles, models.Profile{
			ID:                  info.Id,
			MemorySizeMB:        info.MemorySizeMB,
			MultiprocessorCount: info.MultiprocessorCount,
			MaxComputeInstances: info.SliceCount,
			Name:                fmt.Sprintf("%dg.%dgb", info.SliceCount, (info.MemorySizeMB+512)/1024),
		})
	}

	return profiles, nil
}

// CreatePartition creates a GPU instance from the profile with the given id
// and returns the new instance's id.
func (d *device) CreatePartition(profileID uint32) (uint32, error) {
	info, err := d.profileByID(profileID)
	if err != nil {
		return 0, err
	}

	gi, ret := d.handle.CreateGpuInstance(&info)
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceCreateGpuInstance", ret)
	}

	giInfo, ret := gi.GetInfo()
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlGpuInstanceGetInfo", ret)
	}

	return giInfo.Id, nil
}

func (d *device) DestroyPartition(instanceID uint32) error {
	gi, ret := d.handle.GetGpuInstanceById(int(instanceID))
	if ret != nvml.SUCCESS {
		return apiError("nvmlDeviceGetGpuInstanceById", ret)
	}

	if ret := gi.Destroy(); ret != nvml.SUCCESS {
		return apiError("nvmlGpuInstanceDestroy", ret)
	}

	return nil
}

// Partitions enumerates the MIG devices currently present. MIG slots are
// sparse; unoccupied indexes are skipped.
func (d *device) Partitions() ([]ports.PartitionDevice, error) {
	max, ret := d.handle.GetMaxMigDeviceCount()
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return nil, nil
	}

	if ret != nvml.SUCCESS {
		return nil, apiError("nvmlDeviceGetMaxMigDeviceCount", ret)
	}

	parts := []ports.PartitionDevice{}

	for i := 0; i < max; i++ {
		mig, ret := d.handle.GetMigDeviceHandleByIndex(i)
		if ret == nvml.ERROR_NOT_FOUND || ret == nvml.ERROR_INVALID_ARGUMENT {
			continue
		}

		if ret != nvml.SUCCESS {
			return nil, apiError("nvmlDeviceGetMigDeviceHandleByIndex", ret)
		}

		parts = append(parts, &partition{parent: d.handle, handle: mig})
	}

	return parts, nil
}

// CreateComputeInstance subdivides the GPU instance with the given id using
// the compute instance profile with the given id.
func (d *device) CreateComputeInstance(instanceID, profileID uint32) (uint32, error) {
	gi, ret := d.handle.GetGpuInstanceById(int(instanceID))
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetGpuInstanceById", ret)
	}

	info, err := computeProfileByID(gi, profileID)
	if err != nil {
		return 0, err
	}

	ci, ret := gi.CreateComputeInstance(&info)
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlGpuInstanceCreateComputeInstance", ret)
	}

	ciInfo, ret := ci.GetInfo()
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlComputeInstanceGetInfo", ret)
	}

	return ciInfo.Id, nil
}

func (d *device) PowerUsage() (uint32, error) {
	power, ret := d.handle.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetPowerUsage", ret)
	}

	return power, nil
}

func (d *device) Temperature() (uint32, error) {
	temp, ret := d.handle.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetTemperature", ret)
	}

	return temp, nil
}

func (d *device) AccountingMode() (bool, error) {
	state, ret := d.handle.GetAccountingMode()
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return false, nil
	}

	if ret != nvml.SUCCESS {
		return false, apiError("nvmlDeviceGetAccountingMode", ret)
	}

	return state == nvml.FEATURE_ENABLED, nil
}

func (d *device) SetAccountingMode(enabled bool) error {
	state := nvml.FEATURE_DISABLED
	if enabled {
		state = nvml.FEATURE_ENABLED
	}

	if ret := d.handle.SetAccountingMode(state); ret != nvml.SUCCESS {
		return apiError("nvmlDeviceSetAccountingMode", ret)
	}

	return nil
}

// AccountingStats returns the accounting record for every pid the driver has
// tracked. Pids that exit between the list call and the stats call are
// skipped.
func (d *device) AccountingStats() ([]models.ProcessAccounting, error) {
	pids, ret := d.handle.GetAccountingPids()
	if ret != nvml.SUCCESS {
		return nil, apiError("nvmlDeviceGetAccountingPids", ret)
	}

	records := make([]models.ProcessAccounting, 0, len(pids))

	for _, pid := range pids {
		stats, ret := d.handle.GetAccountingStats(uint32(pid))
		if ret != nvml.SUCCESS {
			continue
		}

		name, ret := nvml.SystemGetProcessName(pid)
		if ret != nvml.SUCCESS {
			name = fmt.Sprintf("pid_%d", pid)
		}

		records = append(records, models.ProcessAccounting{
			PID:            uint32(pid),
			Name:           name,
			GPUUtilization: stats.GpuUtilization,
			MaxMemoryUsage: stats.MaxMemoryUsage,
			TimeMs:         stats.Time,
			StartTime:      stats.StartTime,
			IsRunning:      stats.IsRunning == 1,
		})
	}

	return records, nil
}

func (d *device) profileByID(profileID uint32) (nvml.GpuInstanceProfileInfo, error) {
	for slot := 0; slot < nvml.GPU_INSTANCE_PROFILE_COUNT; slot++ {
		info, ret := d.handle.GetGpuInstanceProfileInfo(slot)
		if ret != nvml.SUCCESS {
			continue
		}

		if info.Id == profileID {
			return info, nil
		}
	}

	return nvml.GpuInstanceProfileInfo{}, errors.NewDriverError(
		int(nvml.ERROR_INVALID_ARGUMENT),
		"nvmlDeviceGetGpuInstanceProfileInfo",
		fmt.Sprintf("no partition profile with id %d", profileID),
	)
}

func computeProfileByID(gi nvml.GpuInstance, profileID uint32) (nvml.ComputeInstanceProfileInfo, error) {
	for slot := 0; slot < nvml.COMPUTE_INSTANCE_PROFILE_COUNT; slot++ {
		info, ret := gi.GetComputeInstanceProfileInfo(slot, nvml.COMPUTE_INSTANCE_ENGINE_PROFILE_SHARED)
		if ret != nvml.SUCCESS {
			continue
		}

		if info.Id == profileID {
			return info, nil
		}
	}

	return nvml.ComputeInstanceProfileInfo{}, errors.NewDriverError(
		int(nvml.ERROR_INVALID_ARGUMENT),
		"nvmlGpuInstanceGetComputeInstanceProfileInfo",
		fmt.Sprintf("no compute instance profile with id %d", profileID),
	)
}
