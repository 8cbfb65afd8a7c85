package accounting_test

import (
	"context"
	"testing"

	g "github.com/onsi/gomega"

	"migfleet/pkg/accounting"
	"migfleet/pkg/driver/fake"
	"migfleet/pkg/errors"
	"migfleet/pkg/models"
	"migfleet/pkg/partition"
)

func newService(t *testing.T) *accounting.Service {
	t.Helper()

	drv := fake.NewDriver(fake.DeviceSpec{
		Name:        "Accelerator 0",
		TotalMemory: 16 * 1024 * 1024 * 1024,
		Accounting: []models.ProcessAccounting{
			{PID: 4242, Name: "trainer", GPUUtilization: 65, MaxMemoryUsage: 2 * 1024 * 1024 * 1024, TimeMs: 90000, IsRunning: true},
			{PID: 4243, Name: "encoder", GPUUtilization: 10, MaxMemoryUsage: 256 * 1024 * 1024, TimeMs: 5000},
		},
	})

	inventory, err := partition.BuildInventory(context.Background(), drv)
	g.Expect(err).NotTo(g.HaveOccurred())

	return accounting.NewService(inventory)
}

func TestAccounting_enableDisable(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	svc := newService(t)

	g.Expect(svc.IsEnabled(0)).To(g.BeFalse())

	g.Expect(svc.Enable(ctx, 0)).To(g.Succeed())
	g.Expect(svc.IsEnabled(0)).To(g.BeTrue())

	g.Expect(svc.Disable(ctx, 0)).To(g.Succeed())
	g.Expect(svc.IsEnabled(0)).To(g.BeFalse())
}

func TestAccounting_statsRequireEnabledMode(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	svc := newService(t)

	stats, err := svc.RunningProcessStats(ctx, 0)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(stats).To(g.BeEmpty())

	g.Expect(svc.Enable(ctx, 0)).To(g.Succeed())

	stats, err = svc.RunningProcessStats(ctx, 0)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(stats).To(g.HaveLen(2))
	g.Expect(stats[0].Name).To(g.Equal("trainer"))
	g.Expect(stats[0].IsRunning).To(g.BeTrue())
}

func TestAccounting_invalidIndex(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	svc := newService(t)

	g.Expect(errors.IsInvalidDeviceIndex(svc.Enable(ctx, 3))).To(g.BeTrue())
	g.Expect(svc.IsEnabled(3)).To(g.BeFalse())

	_, err := svc.RunningProcessStats(ctx, 3)
	g.Expect(errors.IsInvalidDeviceIndex(err)).To(g.BeTrue())
}
