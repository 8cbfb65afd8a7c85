// Package metrics exposes the manager's cached telemetry as a prometheus
// collector. Scrapes read the telemetry cache and never touch the driver.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"migfleet/pkg/models"
)

// Source is the slice of the manager the collector scrapes.
type Source interface {
	Partitions() []models.Partition
	AllTelemetry(ctx context.Context) map[string]models.Telemetry
	DeviceCount() int
	PartitionsForDevice(index int) []models.Partition
	IsPartitioningEnabled(index int) bool
	QueueDepth() int
	RefreshCount() uint64
}

type partitionMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(sample models.Telemetry) float64
}

// Collector implements prometheus.Collector over a telemetry source.
type Collector struct {
	source Source

	partitionMetrics []partitionMetric
	partitionCount   *prometheus.Desc
	modeEnabled      *prometheus.Desc
	queueDepth       *prometheus.Desc
	refreshTotal     *prometheus.Desc
}

// NewCollector creates a collector over the given source.
func NewCollector(source Source) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("migfleet", "partition", name),
			help,
			[]string{"uuid", "device_index"},
			nil,
		)
	}

	return &Collector{
		source: source,
		partitionMetrics: []partitionMetric{
			{
				desc:      desc("gpu_utilization_percent", "Compute utilization of the partition."),
				valueType: prometheus.GaugeValue,
				extract: func(sample models.Telemetry) float64 {
					return float64(sample.GPUUtilization)
				},
			},
			{
				desc:      desc("memory_utilization_percent", "Memory bandwidth utilization of the partition."),
				valueType: prometheus.GaugeValue,
				extract: func(sample models.Telemetry) float64 {
					return float64(sample.MemoryUtilization)
				},
			},
			{
				desc:      desc("memory_used_bytes", "Framebuffer memory in use."),
				valueType: prometheus.GaugeValue,
				extract: func(sample models.Telemetry) float64 {
					return float64(sample.MemoryUsed)
				},
			},
			{
				desc:      desc("memory_total_bytes", "Framebuffer memory capacity."),
				valueType: prometheus.GaugeValue,
				extract: func(sample models.Telemetry) float64 {
					return float64(sample.MemoryTotal)
				},
			},
			{
				desc:      desc("power_milliwatts", "Power draw, read from the parent device when the partition has no sensor."),
				valueType: prometheus.GaugeValue,
				extract: func(sample models.Telemetry) float64 {
					return float64(sample.PowerUsage)
				},
			},
			{
				desc:      desc("temperature_celsius", "Temperature, read from the parent device when the partition has no sensor."),
				valueType: prometheus.GaugeValue,
				extract: func(sample models.Telemetry) float64 {
					return float64(sample.Temperature)
				},
			},
		},
		partitionCount: prometheus.NewDesc(
			prometheus.BuildFQName("migfleet", "device", "partition_count"),
			"Number of partitions currently present on the device.",
			[]string{"device_index"},
			nil,
		),
		modeEnabled: prometheus.NewDesc(
			prometheus.BuildFQName("migfleet", "device", "partitioning_enabled"),
			"Whether partitioning is enabled on the device.",
			[]string{"device_index"},
			nil,
		),
		queueDepth: prometheus.NewDesc(
			prometheus.BuildFQName("migfleet", "manager", "queue_depth"),
			"Commands waiting in the worker queue.",
			nil,
			nil,
		),
		refreshTotal: prometheus.NewDesc(
			prometheus.BuildFQName("migfleet", "manager", "registry_refreshes_total"),
			"Registry rebuilds since startup.",
			nil,
			nil,
		),
	}
}

// Describe sends every metric description to the channel.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range c.partitionMetrics {
		ch <- metric.desc
	}

	ch <- c.partitionCount
	ch <- c.modeEnabled
	ch <- c.queueDepth
	ch <- c.refreshTotal
}

// Collect reads the cached telemetry and current registry snapshot.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	samples := c.source.AllTelemetry(context.Background())

	for _, part := range c.source.Partitions() {
		sample, ok := samples[part.UUID]
		if !ok {
			continue
		}

		labels := []string{part.UUID, strconv.Itoa(part.ParentDeviceIndex)}

		for _, metric := range c.partitionMetrics {
			ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, metric.extract(sample), labels...)
		}
	}

	for index := 0; index < c.source.DeviceCount(); index++ {
		label := strconv.Itoa(index)

		ch <- prometheus.MustNewConstMetric(
			c.partitionCount, prometheus.GaugeValue,
			float64(len(c.source.PartitionsForDevice(index))), label,
		)

		enabled := 0.0
		if c.source.IsPartitioningEnabled(index) {
			enabled = 1.0
		}

		ch <- prometheus.MustNewConstMetric(c.modeEnabled, prometheus.GaugeValue, enabled, label)
	}

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(c.source.QueueDepth()))
	ch <- prometheus.MustNewConstMetric(c.refreshTotal, prometheus.CounterValue, float64(c.source.RefreshCount()))
}
