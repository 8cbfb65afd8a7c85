//go:build !linux || !cgo

// The management library only ships for linux; on other platforms the
// driver fails at Init.

package nvml

import (
	"errors"

	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

var errUnsupported = errors.New("nvml driver is only available on linux")

// Driver is a placeholder on platforms without the management library.
type Driver struct{}

// New creates the NVML-backed driver.
func New() *Driver {
	return &Driver{}
}

func (d *Driver) Init() error {
	return errUnsupported
}

func (d *Driver) Shutdown() error {
	return errUnsupported
}

func (d *Driver) DeviceCount() (int, error) {
	return 0, errUnsupported
}

func (d *Driver) DeviceByIndex(index int) (ports.Device, error) {
	return nil, errUnsupported
}

func (d *Driver) SystemInfo() (models.SystemInfo, error) {
	return models.SystemInfo{}, errUnsupported
}
