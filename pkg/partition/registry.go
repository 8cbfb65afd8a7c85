package partition

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"migfleet/pkg/log"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

// Entry is one published partition: its descriptor plus the handles the
// telemetry collector reads from. Partitions are keyed by descriptor UUID,
// never by the opaque handle.
type Entry struct {
	Descriptor models.Partition
	Handle     ports.PartitionDevice
	Parent     ports.Device
}

// Registry is the authoritative view of all partitions across the fleet. A
// refresh pass builds a brand-new mapping and swaps it in under the lock, so
// readers observe either the fully-previous or the fully-new mapping, never
// a mix of two passes.
type Registry struct {
	inventory *Inventory

	mu      sync.RWMutex
	entries map[string]Entry
	modes   map[int]bool

	refreshes atomic.Uint64
}

// NewRegistry returns an empty registry over the given inventory. It
// publishes nothing until the first Refresh.
func NewRegistry(inventory *Inventory) *Registry {
	return &Registry{
		inventory: inventory,
		entries:   map[string]Entry{},
		modes:     map[int]bool{},
	}
}

// Refresh rebuilds the published mapping from the driver. A driver failure
// on one device leaves that device contributing zero partitions for this
// pass; the refresh continues for the remaining devices. All driver calls
// happen before the lock is taken.
func (r *Registry) Refresh(ctx context.Context) {
	logger := log.GetLogger(ctx).WithField("component", "registry")

	entries := map[string]Entry{}
	modes := map[int]bool{}

	for _, dev := range r.inventory.Devices() {
		enabled, err := dev.Handle.PartitionMode()
		if err != nil {
			logger.Warnf("device %d: reading partition mode: %v", dev.Index, err)

			continue
		}

		modes[dev.Index] = enabled

		if !enabled {
			continue
		}

		handles, err := dev.Handle.Partitions()
		if err != nil {
			logger.Warnf("device %d: listing partitions: %v", dev.Index, err)

			continue
		}

		for _, handle := range handles {
			desc, err := handle.Descriptor()
			if err != nil {
				logger.Warnf("device %d: resolving partition descriptor: %v", dev.Index, err)

				continue
			}

			if desc.UUID == "" {
				continue
			}

			desc.ParentDeviceIndex = dev.Index

			entries[desc.UUID] = Entry{
				Descriptor: desc,
				Handle:     handle,
				Parent:     dev.Handle,
			}
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.modes = modes
	r.mu.Unlock()

	r.refreshes.Add(1)
}

// All returns the currently published descriptors, ordered by parent device
// index then instance id.
func (r *Registry) All() []models.Partition {
	r.mu.RLock()
	out := make([]models.Partition, 0, len(r.entries))

	for _, entry := range r.entries {
		out = append(out, entry.Descriptor)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentDeviceIndex != out[j].ParentDeviceIndex {
			return out[i].ParentDeviceIndex < out[j].ParentDeviceIndex
		}

		return out[i].InstanceID < out[j].InstanceID
	})

	return out
}

// ForDevice returns the published descriptors belonging to one device.
func (r *Registry) ForDevice(index int) []models.Partition {
	all := r.All()
	out := make([]models.Partition, 0, len(all))

	for _, desc := range all {
		if desc.ParentDeviceIndex == index {
			out = append(out, desc)
		}
	}

	return out
}

// ByUUID returns the published descriptor for the given uuid.
func (r *Registry) ByUUID(uuid string) (models.Partition, bool) {
	entry, ok := r.EntryByUUID(uuid)

	return entry.Descriptor, ok
}

// EntryByUUID returns the full entry, handles included, for the given uuid.
func (r *Registry) EntryByUUID(uuid string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[uuid]

	return entry, ok
}

// Entries returns a copy of the published mapping.
func (r *Registry) Entries() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Entry, len(r.entries))
	for uuid, entry := range r.entries {
		out[uuid] = entry
	}

	return out
}

// ModeEnabled reports the partitioning mode of a device as of the last
// refresh pass. Unknown indices read as not enabled.
func (r *Registry) ModeEnabled(index int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.modes[index]
}

// RefreshCount returns the number of completed refresh passes.
func (r *Registry) RefreshCount() uint64 {
	return r.refreshes.Load()
}
