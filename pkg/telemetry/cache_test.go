package telemetry_test

import (
	"context"
	"testing"
	"time"

	g "github.com/onsi/gomega"

	"migfleet/pkg/driver/fake"
	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/partition"
	"migfleet/pkg/telemetry"
)

func partitionedFleet() *fake.Driver {
	return fake.NewDriver(
		fake.DeviceSpec{
			Name:                "Accelerator 0",
			TotalMemory:         40 * 1024 * 1024 * 1024,
			PartitioningEnabled: true,
			Profiles: []models.Profile{
				{ID: 9, MemorySizeMB: 5120, MultiprocessorCount: 14, MaxComputeInstances: 2, Name: "1g.5gb"},
			},
			Partitions: []fake.PartitionSpec{
				{
					UUID:        "MIG-A",
					InstanceID:  1,
					ProfileID:   9,
					Utilization: models.Utilization{GPU: 80, Memory: 30},
					Processes: []models.Process{
						{PID: 4242, Name: "trainer", UsedMemory: 512 * 1024 * 1024},
						{PID: 4243, UsedMemory: 128 * 1024 * 1024},
					},
				},
				{UUID: "MIG-B", InstanceID: 2, ProfileID: 9},
			},
		},
	)
}

func newCache(t *testing.T, drv *fake.Driver) (*telemetry.Cache, *partition.Registry) {
	t.Helper()

	inventory, err := partition.BuildInventory(context.Background(), drv)
	g.Expect(err).NotTo(g.HaveOccurred())

	reg := partition.NewRegistry(inventory)
	reg.Refresh(context.Background())

	return telemetry.NewCache(reg, time.Now), reg
}

func TestCacheCollect_fullSnapshot(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	cache, reg := newCache(t, partitionedFleet())

	entry, ok := reg.EntryByUUID("MIG-A")
	g.Expect(ok).To(g.BeTrue())

	sample := cache.Collect(ctx, entry)

	g.Expect(sample.Timestamp).NotTo(g.BeZero())
	g.Expect(sample.GPUUtilization).To(g.Equal(uint32(80)))
	g.Expect(sample.MemoryUtilization).To(g.Equal(uint32(30)))
	g.Expect(sample.MemoryTotal).To(g.Equal(uint64(5120 * 1024 * 1024)))
	g.Expect(sample.MemoryUsed + sample.MemoryFree).To(g.Equal(sample.MemoryTotal))

	g.Expect(sample.ProcessMemoryMB).To(g.HaveKeyWithValue("trainer", uint64(512)))
	g.Expect(sample.ProcessMemoryMB).To(g.HaveKeyWithValue("pid_4243", uint64(128)))
}

func TestCacheCollect_fallsBackToParentSensors(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	cache, reg := newCache(t, partitionedFleet())

	entry, ok := reg.EntryByUUID("MIG-A")
	g.Expect(ok).To(g.BeTrue())

	// Partitions expose no power or temperature sensors of their own.
	_, err := entry.Handle.PowerUsage()
	g.Expect(err).To(g.HaveOccurred())

	sample := cache.Collect(ctx, entry)

	g.Expect(sample.PowerUsage).To(g.Equal(uint32(120000)))
	g.Expect(sample.Temperature).To(g.Equal(uint32(45)))
}

func TestCacheCached_missCollectsOnDemand(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	drv := partitionedFleet()
	cache, _ := newCache(t, drv)

	g.Expect(cache.Size()).To(g.BeZero())

	before := drv.TelemetryCalls()

	sample, err := cache.Cached(ctx, "MIG-A")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(sample.GPUUtilization).To(g.Equal(uint32(80)))
	g.Expect(drv.TelemetryCalls()).To(g.BeNumerically(">", before))
}

func TestCacheCached_unknownUUID(t *testing.T) {
	g.RegisterTestingT(t)

	drv := partitionedFleet()
	cache, _ := newCache(t, drv)

	before := drv.TelemetryCalls()

	_, err := cache.Cached(context.Background(), "MIG-nope")
	g.Expect(errors.IsNotFound(err)).To(g.BeTrue())
	g.Expect(drv.TelemetryCalls()).To(g.Equal(before))
}

func TestCacheCached_servesFromCacheAfterRebuild(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	drv := partitionedFleet()
	cache, _ := newCache(t, drv)

	cache.RebuildAll(ctx)
	g.Expect(cache.Size()).To(g.Equal(2))

	before := drv.TelemetryCalls()

	_, err := cache.Cached(ctx, "MIG-A")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(drv.TelemetryCalls()).To(g.Equal(before))
}

func TestCacheAllCached_fallsBackToFreshCollection(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	cache, _ := newCache(t, partitionedFleet())

	// Nothing rebuilt yet: the empty cache triggers a fresh collection but
	// does not publish it.
	all := cache.AllCached(ctx)
	g.Expect(all).To(g.HaveLen(2))
	g.Expect(all).To(g.HaveKey("MIG-A"))
	g.Expect(all).To(g.HaveKey("MIG-B"))
	g.Expect(cache.Size()).To(g.BeZero())
}

func TestCacheRebuildAll_dropsStaleEntries(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	drv := partitionedFleet()
	cache, reg := newCache(t, drv)

	cache.RebuildAll(ctx)
	g.Expect(cache.Size()).To(g.Equal(2))

	handle, err := drv.DeviceByIndex(0)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(handle.DestroyPartition(2)).To(g.Succeed())

	reg.Refresh(ctx)
	cache.RebuildAll(ctx)

	g.Expect(cache.Size()).To(g.Equal(1))

	_, err = cache.Cached(ctx, "MIG-B")
	g.Expect(errors.IsNotFound(err)).To(g.BeTrue())
}
