//go:build linux && cgo

// Package nvml implements the device driver contract on top of the NVIDIA
// management library. Every call maps a non-success return code to a typed
// driver error carrying the numeric code and the failing call.
package nvml

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

// Driver talks to the NVIDIA driver through libnvidia-ml. The zero value is
// usable; Init must succeed before any other call.
type Driver struct{}

// New creates the NVML-backed driver.
func New() *Driver {
	return &Driver{}
}

// Init loads and initializes the management library.
func (d *Driver) Init() error {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return apiError("nvmlInit", ret)
	}

	return nil
}

// Shutdown releases the management library.
func (d *Driver) Shutdown() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return apiError("nvmlShutdown", ret)
	}

	return nil
}

// DeviceCount returns the number of accelerators visible to the driver.
func (d *Driver) DeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, apiError("nvmlDeviceGetCount", ret)
	}

	return count, nil
}

// DeviceByIndex acquires the handle for the accelerator at the given index.
func (d *Driver) DeviceByIndex(index int) (ports.Device, error) {
	handle, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, apiError("nvmlDeviceGetHandleByIndex", ret)
	}

	return &device{handle: handle}, nil
}

// SystemInfo reports the driver, library and CUDA versions.
func (d *Driver) SystemInfo() (models.SystemInfo, error) {
	driverVersion, ret := nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return models.SystemInfo{}, apiError("nvmlSystemGetDriverVersion", ret)
	}

	nvmlVersion, ret := nvml.SystemGetNVMLVersion()
	if ret != nvml.SUCCESS {
		return models.SystemInfo{}, apiError("nvmlSystemGetNVMLVersion", ret)
	}

	cudaVersion, ret := nvml.SystemGetCudaDriverVersion()
	if ret != nvml.SUCCESS {
		return models.SystemInfo{}, apiError("nvmlSystemGetCudaDriverVersion", ret)
	}

	return models.SystemInfo{
		DriverVersion:  driverVersion,
		LibraryVersion: nvmlVersion,
		CUDAVersion:    fmt.Sprintf("%d.%d", cudaVersion/1000, (cudaVersion%1000)/10),
	}, nil
}

func apiError(op string, ret nvml.Return) error {
	return errors.NewDriverError(int(ret), op, nvml.ErrorString(ret))
}
