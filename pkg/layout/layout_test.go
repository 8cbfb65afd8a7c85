package layout_test

import (
	"context"
	"testing"

	g "github.com/onsi/gomega"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"migfleet/pkg/driver/fake"
	"migfleet/pkg/errors"
	"migfleet/pkg/layout"
	"migfleet/pkg/manager"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

type fixture struct {
	svc *layout.Service
	mgr *manager.Manager
	drv *fake.Driver
	fs  afero.Fs
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	drv := fake.NewDriver(
		fake.DeviceSpec{
			Name:        "Accelerator 0",
			TotalMemory: 16 * 1024 * 1024 * 1024,
			Profiles: []models.Profile{
				{ID: 9, MemorySizeMB: 5120, MultiprocessorCount: 14, MaxComputeInstances: 2, Name: "1g.5gb"},
			},
		},
		fake.DeviceSpec{
			Name:                "Accelerator 1",
			TotalMemory:         40 * 1024 * 1024 * 1024,
			PartitioningEnabled: true,
			Profiles: []models.Profile{
				{ID: 9, MemorySizeMB: 5120, MultiprocessorCount: 14, MaxComputeInstances: 2, Name: "1g.5gb"},
				{ID: 14, MemorySizeMB: 9856, MultiprocessorCount: 28, MaxComputeInstances: 2, Name: "2g.10gb"},
			},
			Partitions: []fake.PartitionSpec{
				{UUID: "MIG-A", InstanceID: 1, ProfileID: 9},
				{UUID: "MIG-B", InstanceID: 2, ProfileID: 14},
			},
		},
	)

	fs := afero.NewMemMapFs()

	mgr := manager.New(&ports.Collection{Driver: drv, FileSystem: fs}, manager.Config{})
	g.Expect(mgr.Init(context.Background())).To(g.Succeed())
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })

	return fixture{
		svc: layout.NewService(fs, mgr),
		mgr: mgr,
		drv: drv,
		fs:  fs,
	}
}

func (f fixture) writeLayout(t *testing.T, path string, desired models.Layout) {
	t.Helper()

	data, err := toml.Marshal(desired)
	g.Expect(err).NotTo(g.HaveOccurred())

	g.Expect(afero.WriteFile(f.fs, path, data, 0o644)).To(g.Succeed())
}

func TestLayoutSnapshot_capturesFleetState(t *testing.T) {
	g.RegisterTestingT(t)

	fix := newFixture(t)

	snap := fix.svc.Snapshot()

	g.Expect(snap.Devices).To(g.HaveLen(2))
	g.Expect(snap.Devices[0].PartitioningEnabled).To(g.BeFalse())
	g.Expect(snap.Devices[0].Instances).To(g.BeEmpty())
	g.Expect(snap.Devices[1].PartitioningEnabled).To(g.BeTrue())
	g.Expect(snap.Devices[1].Instances).To(g.HaveLen(2))
}

func TestLayoutSaveLoad_roundTrips(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	fix := newFixture(t)

	g.Expect(fix.svc.Save(ctx, "/state/fleet.toml")).To(g.Succeed())

	loaded, err := fix.svc.Load("/state/fleet.toml")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(loaded).To(g.Equal(fix.svc.Snapshot()))

	// A device with no instances must survive the round trip too: it encodes
	// as an empty array, not a missing key.
	g.Expect(loaded.Devices[0].Instances).NotTo(g.BeNil())
	g.Expect(loaded.Devices[0].Instances).To(g.BeEmpty())
}

func TestLayoutApply_matchingStateIssuesNoMutations(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	fix := newFixture(t)

	g.Expect(fix.svc.Save(ctx, "/state/fleet.toml")).To(g.Succeed())

	before := fix.drv.MutatingCalls()

	g.Expect(fix.svc.Apply(ctx, "/state/fleet.toml")).To(g.Succeed())
	g.Expect(fix.drv.MutatingCalls()).To(g.Equal(before))
}

func TestLayoutApply_restoresDestroyedPartition(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	fix := newFixture(t)

	g.Expect(fix.svc.Save(ctx, "/state/fleet.toml")).To(g.Succeed())

	g.Expect(fix.mgr.DestroyPartition(ctx, 1, 1)).To(g.Succeed())
	g.Expect(fix.mgr.PartitionsForDevice(1)).To(g.HaveLen(1))

	g.Expect(fix.svc.Apply(ctx, "/state/fleet.toml")).To(g.Succeed())

	parts := fix.mgr.PartitionsForDevice(1)
	g.Expect(parts).To(g.HaveLen(2))

	profiles := []uint32{parts[0].ProfileID, parts[1].ProfileID}
	g.Expect(profiles).To(g.ConsistOf(uint32(9), uint32(14)))
}

func TestLayoutApply_enablesAndPopulatesDevice(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	fix := newFixture(t)

	fix.writeLayout(t, "/state/desired.toml", models.Layout{
		Devices: []models.DeviceLayout{
			{
				Index:               0,
				PartitioningEnabled: true,
				Instances: []models.InstanceLayout{
					{ProfileID: 9},
					{ProfileID: 9},
				},
			},
		},
	})

	g.Expect(fix.svc.Apply(ctx, "/state/desired.toml")).To(g.Succeed())

	g.Expect(fix.mgr.IsPartitioningEnabled(0)).To(g.BeTrue())
	g.Expect(fix.mgr.PartitionsForDevice(0)).To(g.HaveLen(2))
}

func TestLayoutApply_disablesDevice(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	fix := newFixture(t)

	fix.writeLayout(t, "/state/desired.toml", models.Layout{
		Devices: []models.DeviceLayout{
			{Index: 1, PartitioningEnabled: false},
		},
	})

	g.Expect(fix.svc.Apply(ctx, "/state/desired.toml")).To(g.Succeed())

	g.Expect(fix.mgr.IsPartitioningEnabled(1)).To(g.BeFalse())
	g.Expect(fix.mgr.PartitionsForDevice(1)).To(g.BeEmpty())
}

func TestLayoutApply_swapsSurplusProfile(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	fix := newFixture(t)

	// Keep the 1g.5gb instance, replace the 2g.10gb one with another 1g.5gb.
	fix.writeLayout(t, "/state/desired.toml", models.Layout{
		Devices: []models.DeviceLayout{
			{
				Index:               1,
				PartitioningEnabled: true,
				Instances: []models.InstanceLayout{
					{ProfileID: 9},
					{ProfileID: 9},
				},
			},
		},
	})

	g.Expect(fix.svc.Apply(ctx, "/state/desired.toml")).To(g.Succeed())

	parts := fix.mgr.PartitionsForDevice(1)
	g.Expect(parts).To(g.HaveLen(2))

	for _, part := range parts {
		g.Expect(part.ProfileID).To(g.Equal(uint32(9)))
	}
}

func TestLayoutApply_unknownDeviceIndex(t *testing.T) {
	g.RegisterTestingT(t)

	fix := newFixture(t)

	fix.writeLayout(t, "/state/desired.toml", models.Layout{
		Devices: []models.DeviceLayout{
			{Index: 7, PartitioningEnabled: true},
		},
	})

	err := fix.svc.Apply(context.Background(), "/state/desired.toml")
	g.Expect(errors.IsInvalidDeviceIndex(err)).To(g.BeTrue())
}

func TestLayout_pathIsRequired(t *testing.T) {
	g.RegisterTestingT(t)

	fix := newFixture(t)

	g.Expect(fix.svc.Save(context.Background(), "")).To(g.MatchError(errors.ErrLayoutPathNeeded))

	_, err := fix.svc.Load("")
	g.Expect(err).To(g.MatchError(errors.ErrLayoutPathNeeded))

	err = fix.svc.Apply(context.Background(), "/state/missing.toml")
	g.Expect(err).To(g.HaveOccurred())
}
