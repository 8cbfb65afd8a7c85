package partition_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	g "github.com/onsi/gomega"

	"migfleet/pkg/driver/fake"
	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/partition"
)

func twoDeviceFleet() *fake.Driver {
	return fake.NewDriver(
		fake.DeviceSpec{
			Name:        "Accelerator 0",
			TotalMemory: 16 * 1024 * 1024 * 1024,
		},
		fake.DeviceSpec{
			Name:                "Accelerator 1",
			TotalMemory:         40 * 1024 * 1024 * 1024,
			PartitioningEnabled: true,
			Profiles: []models.Profile{
				{ID: 9, MemorySizeMB: 5120, MultiprocessorCount: 14, MaxComputeInstances: 2, Name: "1g.5gb"},
			},
			Partitions: []fake.PartitionSpec{
				{UUID: "MIG-P1", InstanceID: 1, ProfileID: 9, ComputeInstanceIDs: []uint32{0}},
			},
		},
	)
}

func buildRegistry(t *testing.T, drv *fake.Driver) *partition.Registry {
	t.Helper()

	inventory, err := partition.BuildInventory(context.Background(), drv)
	g.Expect(err).NotTo(g.HaveOccurred())

	return partition.NewRegistry(inventory)
}

func TestRegistryRefresh_publishesDescriptors(t *testing.T) {
	g.RegisterTestingT(t)

	drv := twoDeviceFleet()
	reg := buildRegistry(t, drv)

	reg.Refresh(context.Background())

	parts := reg.All()
	g.Expect(parts).To(g.HaveLen(1))
	g.Expect(parts[0].UUID).To(g.Equal("MIG-P1"))
	g.Expect(parts[0].ParentDeviceIndex).To(g.Equal(1))
	g.Expect(parts[0].InstanceID).To(g.Equal(uint32(1)))
	g.Expect(parts[0].MemorySize).To(g.Equal(uint64(5120 * 1024 * 1024)))
	g.Expect(parts[0].CurrentComputeInstances).To(g.BeNumerically("<=", parts[0].MaxComputeInstances))

	g.Expect(reg.ModeEnabled(0)).To(g.BeFalse())
	g.Expect(reg.ModeEnabled(1)).To(g.BeTrue())

	desc, ok := reg.ByUUID("MIG-P1")
	g.Expect(ok).To(g.BeTrue())
	g.Expect(desc.ProfileID).To(g.Equal(uint32(9)))

	g.Expect(reg.ForDevice(0)).To(g.BeEmpty())
	g.Expect(reg.ForDevice(1)).To(g.HaveLen(1))
}

func TestRegistryRefresh_unchangedFleetIsStable(t *testing.T) {
	g.RegisterTestingT(t)

	reg := buildRegistry(t, twoDeviceFleet())

	reg.Refresh(context.Background())
	before := reg.All()

	reg.Refresh(context.Background())
	after := reg.All()

	g.Expect(after).To(g.Equal(before))
	g.Expect(reg.RefreshCount()).To(g.Equal(uint64(2)))
}

func TestRegistryRefresh_wholesaleSwap(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	drv := twoDeviceFleet()
	reg := buildRegistry(t, drv)

	reg.Refresh(ctx)
	g.Expect(reg.All()).To(g.HaveLen(1))

	handle, err := drv.DeviceByIndex(1)
	g.Expect(err).NotTo(g.HaveOccurred())

	instanceID, err := handle.CreatePartition(9)
	g.Expect(err).NotTo(g.HaveOccurred())

	reg.Refresh(ctx)
	g.Expect(reg.All()).To(g.HaveLen(2))

	g.Expect(handle.DestroyPartition(instanceID)).To(g.Succeed())

	reg.Refresh(ctx)
	g.Expect(reg.All()).To(g.HaveLen(1))

	// Disabling partitioning drops the device's entries and its mode flag.
	g.Expect(handle.SetPartitionMode(false)).To(g.Succeed())

	reg.Refresh(ctx)
	g.Expect(reg.All()).To(g.BeEmpty())
	g.Expect(reg.ModeEnabled(1)).To(g.BeFalse())

	_, ok := reg.ByUUID("MIG-P1")
	g.Expect(ok).To(g.BeFalse())
}

func TestRegistryRefresh_deviceFailureSkipsDevice(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	drv := twoDeviceFleet()
	reg := buildRegistry(t, drv)

	drv.FailPartitionList(1, fmt.Errorf("transient driver fault"))

	reg.Refresh(ctx)
	g.Expect(reg.All()).To(g.BeEmpty())
	g.Expect(reg.ModeEnabled(1)).To(g.BeTrue())

	// The next clean pass restores the device's partitions.
	drv.FailPartitionList(1, nil)

	reg.Refresh(ctx)
	g.Expect(reg.All()).To(g.HaveLen(1))
}

func TestRegistry_concurrentReadersSeeConsistentSnapshots(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	drv := fake.NewDriver(
		fake.DeviceSpec{
			Name:                "Accelerator 0",
			TotalMemory:         40 * 1024 * 1024 * 1024,
			PartitioningEnabled: true,
			Profiles: []models.Profile{
				{ID: 9, MemorySizeMB: 5120, MultiprocessorCount: 14, MaxComputeInstances: 2, Name: "1g.5gb"},
			},
			Partitions: []fake.PartitionSpec{
				{UUID: "MIG-A", InstanceID: 1, ProfileID: 9},
				{UUID: "MIG-B", InstanceID: 2, ProfileID: 9},
			},
		},
	)
	reg := buildRegistry(t, drv)
	reg.Refresh(ctx)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		mixed bool
	)

	for r := 0; r < 4; r++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 500; i++ {
				parts := reg.All()
				if len(parts) == 2 && parts[0].MemorySize != parts[1].MemorySize {
					mu.Lock()
					mixed = true
					mu.Unlock()

					return
				}
			}
		}()
	}

	// Each generation rewrites both partitions before the refresh that
	// publishes it, so readers must never observe two generations at once.
	for gen := uint64(1); gen <= 100; gen++ {
		drv.SetPartitionMemory(0, gen*1024*1024)
		reg.Refresh(ctx)
	}

	wg.Wait()

	g.Expect(mixed).To(g.BeFalse())
}

func TestBuildInventory_zeroDevicesIsFatal(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := partition.BuildInventory(context.Background(), fake.NewDriver())

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsInitFailure(err)).To(g.BeTrue())
}

func TestBuildInventory_countFailureIsFatal(t *testing.T) {
	g.RegisterTestingT(t)

	drv := twoDeviceFleet()
	drv.FailDeviceCount(fmt.Errorf("driver not ready"))

	_, err := partition.BuildInventory(context.Background(), drv)

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsInitFailure(err)).To(g.BeTrue())
}

func TestBuildInventory_skipsFailedHandles(t *testing.T) {
	g.RegisterTestingT(t)

	drv := twoDeviceFleet()
	drv.FailHandle(0, fmt.Errorf("handle acquisition failed"))

	inventory, err := partition.BuildInventory(context.Background(), drv)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(inventory.Count()).To(g.Equal(1))

	_, err = inventory.ByIndex(0)
	g.Expect(errors.IsInvalidDeviceIndex(err)).To(g.BeTrue())

	dev, err := inventory.ByIndex(1)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(dev.Info.Name).To(g.Equal("Accelerator 1"))
}

func TestInventory_byIndexOutOfRange(t *testing.T) {
	g.RegisterTestingT(t)

	inventory, err := partition.BuildInventory(context.Background(), twoDeviceFleet())
	g.Expect(err).NotTo(g.HaveOccurred())

	_, err = inventory.ByIndex(7)
	g.Expect(errors.IsInvalidDeviceIndex(err)).To(g.BeTrue())

	_, err = inventory.ByIndex(-1)
	g.Expect(errors.IsInvalidDeviceIndex(err)).To(g.BeTrue())
}
