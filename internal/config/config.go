package config

import (
	"time"

	"migfleet/pkg/log"
)

// Config represents the daemon configuration.
type Config struct {
	// Logging contains the logging related config.
	Logging log.Config

	// Driver selects the device driver backend: nvml or fake.
	Driver string

	// MonitorInterval is the cadence of the background telemetry refresh.
	MonitorInterval time.Duration

	// MetricsEndpoint is the address the metrics HTTP server listens on.
	MetricsEndpoint string

	// DisableMetrics stops the metrics HTTP server from running.
	DisableMetrics bool

	// LayoutFile is the path used by the layout save/apply commands.
	LayoutFile string
}
