package partition

import (
	"context"
	"fmt"

	"migfleet/pkg/errors"
	"migfleet/pkg/log"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

// ManagedDevice pairs a device handle with the identity captured when the
// inventory was built.
type ManagedDevice struct {
	Index  int
	Info   models.Device
	Handle ports.Device
}

// Inventory is the set of accelerator handles acquired at startup. It is
// immutable after construction; handles are owned here for the process
// lifetime and released only through the driver's shutdown.
type Inventory struct {
	devices []ManagedDevice
}

// BuildInventory enumerates the fleet once. A failed count query or an empty
// fleet is fatal; individual handle-acquisition failures are logged and the
// index is omitted.
func BuildInventory(ctx context.Context, driver ports.Driver) (*Inventory, error) {
	logger := log.GetLogger(ctx).WithField("component", "inventory")

	count, err := driver.DeviceCount()
	if err != nil {
		return nil, errors.NewInitFailure(fmt.Errorf("querying device count: %w", err))
	}

	if count == 0 {
		return nil, errors.NewInitFailure(errors.ErrNoDevices)
	}

	devices := make([]ManagedDevice, 0, count)

	for i := 0; i < count; i++ {
		handle, err := driver.DeviceByIndex(i)
		if err != nil {
			logger.Warnf("skipping device %d, handle acquisition failed: %v", i, err)

			continue
		}

		info := models.Device{Index: i, Name: "unknown"}

		if uuid, err := handle.UUID(); err == nil {
			info.UUID = uuid
		} else {
			logger.Warnf("device %d: reading uuid: %v", i, err)
		}

		if name, err := handle.Name(); err == nil {
			info.Name = name
		}

		if mem, err := handle.TotalMemory(); err == nil {
			info.TotalMemory = mem
		}

		devices = append(devices, ManagedDevice{
			Index:  i,
			Info:   info,
			Handle: handle,
		})
	}

	if len(devices) == 0 {
		return nil, errors.NewInitFailure(errors.ErrNoDevices)
	}

	logger.Infof("managing %d of %d devices", len(devices), count)

	return &Inventory{devices: devices}, nil
}

// Devices returns the managed devices in index order.
func (inv *Inventory) Devices() []ManagedDevice {
	return inv.devices
}

// Count returns the number of managed devices.
func (inv *Inventory) Count() int {
	return len(inv.devices)
}

// ByIndex returns the managed device with the given driver index.
func (inv *Inventory) ByIndex(index int) (ManagedDevice, error) {
	for _, dev := range inv.devices {
		if dev.Index == index {
			return dev, nil
		}
	}

	return ManagedDevice{}, errors.NewInvalidDeviceIndex(index, len(inv.devices))
}
