package telemetry

import (
	"context"
	"sync"
	"time"

	"migfleet/pkg/errors"
	"migfleet/pkg/log"
	"migfleet/pkg/models"
	"migfleet/pkg/partition"
)

// Cache holds the most recent telemetry snapshot per partition. The monitor
// loop rebuilds it wholesale after every registry refresh; reads that miss
// the cache collect on demand against the registry's current descriptor.
type Cache struct {
	registry *partition.Registry
	clock    func() time.Time

	mu     sync.RWMutex
	latest map[string]models.Telemetry
}

// NewCache returns an empty cache over the given registry.
func NewCache(registry *partition.Registry, clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}

	return &Cache{
		registry: registry,
		clock:    clock,
		latest:   map[string]models.Telemetry{},
	}
}

// Collect reads a full snapshot for one partition. Power and temperature
// fall back to the parent device handle when the partition does not expose
// its own sensors. Failed sub-queries leave their fields at zero; Collect
// never aborts the snapshot.
func (c *Cache) Collect(ctx context.Context, entry partition.Entry) models.Telemetry {
	logger := log.GetLogger(ctx).WithField("component", "telemetry")

	snapshot := models.Telemetry{
		Timestamp:       c.clock(),
		ProcessMemoryMB: map[string]uint64{},
	}

	if util, err := entry.Handle.Utilization(); err == nil {
		snapshot.GPUUtilization = util.GPU
		snapshot.MemoryUtilization = util.Memory
	} else {
		logger.Debugf("partition %s: utilization: %v", entry.Descriptor.UUID, err)
	}

	if mem, err := entry.Handle.MemoryInfo(); err == nil {
		snapshot.MemoryUsed = mem.Used
		snapshot.MemoryFree = mem.Free
		snapshot.MemoryTotal = mem.Total
	} else {
		logger.Debugf("partition %s: memory info: %v", entry.Descriptor.UUID, err)
	}

	if power, err := entry.Handle.PowerUsage(); err == nil {
		snapshot.PowerUsage = power
	} else if power, err := entry.Parent.PowerUsage(); err == nil {
		snapshot.PowerUsage = power
	}

	if temp, err := entry.Handle.Temperature(); err == nil {
		snapshot.Temperature = temp
	} else if temp, err := entry.Parent.Temperature(); err == nil {
		snapshot.Temperature = temp
	}

	if procs, err := entry.Handle.RunningProcesses(); err == nil {
		for _, proc := range procs {
			name := proc.Name
			if name == "" {
				name = pidName(proc.PID)
			}

			snapshot.ProcessMemoryMB[name] = proc.UsedMemory / (1024 * 1024)
		}
	}

	return snapshot
}

// Cached returns the most recent snapshot for the given uuid. On a cache
// miss it collects on demand against the registry's current descriptor, and
// returns a not-found error only when the uuid is unknown to the registry.
func (c *Cache) Cached(ctx context.Context, uuid string) (models.Telemetry, error) {
	c.mu.RLock()
	snapshot, ok := c.latest[uuid]
	c.mu.RUnlock()

	if ok {
		return snapshot, nil
	}

	entry, ok := c.registry.EntryByUUID(uuid)
	if !ok {
		return models.Telemetry{}, errors.NewPartitionNotFound(uuid)
	}

	return c.Collect(ctx, entry), nil
}

// AllCached returns the full cache. If no refresh has populated it yet, it
// falls back to collecting fresh snapshots for every registered partition.
func (c *Cache) AllCached(ctx context.Context) map[string]models.Telemetry {
	c.mu.RLock()
	out := make(map[string]models.Telemetry, len(c.latest))

	for uuid, snapshot := range c.latest {
		out[uuid] = snapshot
	}
	c.mu.RUnlock()

	if len(out) > 0 {
		return out
	}

	for uuid, entry := range c.registry.Entries() {
		out[uuid] = c.Collect(ctx, entry)
	}

	return out
}

// RebuildAll collects fresh snapshots for every registered partition and
// swaps them in as the new cache. Driver calls happen before the lock.
func (c *Cache) RebuildAll(ctx context.Context) {
	next := map[string]models.Telemetry{}

	for uuid, entry := range c.registry.Entries() {
		next[uuid] = c.Collect(ctx, entry)
	}

	c.mu.Lock()
	c.latest = next
	c.mu.Unlock()
}

// Size returns the number of cached snapshots.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.latest)
}
