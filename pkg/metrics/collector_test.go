package metrics_test

import (
	"context"
	"strings"
	"testing"

	g "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"migfleet/pkg/driver/fake"
	"migfleet/pkg/manager"
	"migfleet/pkg/metrics"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

func newManager(t *testing.T) *manager.Manager {
	t.Helper()

	drv := fake.NewDriver(fake.DeviceSpec{
		Name:                "Accelerator 0",
		TotalMemory:         40 * 1024 * 1024 * 1024,
		PartitioningEnabled: true,
		Profiles: []models.Profile{
			{ID: 9, MemorySizeMB: 5120, MultiprocessorCount: 14, MaxComputeInstances: 2, Name: "1g.5gb"},
		},
		Partitions: []fake.PartitionSpec{
			{UUID: "MIG-A", InstanceID: 1, ProfileID: 9, Utilization: models.Utilization{GPU: 42, Memory: 7}},
		},
	})

	mgr := manager.New(&ports.Collection{Driver: drv}, manager.Config{})
	g.Expect(mgr.Init(context.Background())).To(g.Succeed())
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })

	return mgr
}

func TestCollector_registersCleanly(t *testing.T) {
	g.RegisterTestingT(t)

	registry := prometheus.NewPedanticRegistry()

	g.Expect(registry.Register(metrics.NewCollector(newManager(t)))).To(g.Succeed())

	families, err := registry.Gather()
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(families).NotTo(g.BeEmpty())
}

func TestCollector_exposesPartitionTelemetry(t *testing.T) {
	g.RegisterTestingT(t)

	collector := metrics.NewCollector(newManager(t))

	expected := strings.NewReader(`
# HELP migfleet_partition_gpu_utilization_percent Compute utilization of the partition.
# TYPE migfleet_partition_gpu_utilization_percent gauge
migfleet_partition_gpu_utilization_percent{device_index="0",uuid="MIG-A"} 42
`)

	err := testutil.CollectAndCompare(collector, expected, "migfleet_partition_gpu_utilization_percent")
	g.Expect(err).NotTo(g.HaveOccurred())
}

func TestCollector_exposesDeviceAndManagerState(t *testing.T) {
	g.RegisterTestingT(t)

	collector := metrics.NewCollector(newManager(t))

	expected := strings.NewReader(`
# HELP migfleet_device_partition_count Number of partitions currently present on the device.
# TYPE migfleet_device_partition_count gauge
migfleet_device_partition_count{device_index="0"} 1
# HELP migfleet_device_partitioning_enabled Whether partitioning is enabled on the device.
# TYPE migfleet_device_partitioning_enabled gauge
migfleet_device_partitioning_enabled{device_index="0"} 1
# HELP migfleet_manager_queue_depth Commands waiting in the worker queue.
# TYPE migfleet_manager_queue_depth gauge
migfleet_manager_queue_depth 0
`)

	err := testutil.CollectAndCompare(collector, expected,
		"migfleet_device_partition_count",
		"migfleet_device_partitioning_enabled",
		"migfleet_manager_queue_depth",
	)
	g.Expect(err).NotTo(g.HaveOccurred())
}
