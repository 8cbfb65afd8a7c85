package flags

import (
	"github.com/spf13/cobra"

	"migfleet/internal/config"
	"migfleet/pkg/defaults"
)

const (
	driverFlag          = "driver"
	monitorIntervalFlag = "monitor-interval"
	metricsEndpointFlag = "metrics-endpoint"
	disableMetricsFlag  = "disable-metrics"
	layoutFileFlag      = "layout-file"
)

// AddDriverFlagsToCommand will add the device driver flags to the supplied command.
func AddDriverFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.Driver,
		driverFlag,
		"nvml",
		"The device driver backend to use (nvml or fake).")
}

// AddMonitorFlagsToCommand will add the telemetry monitor flags to the supplied command.
func AddMonitorFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().DurationVar(&cfg.MonitorInterval,
		monitorIntervalFlag,
		defaults.MonitorInterval,
		"The interval between background telemetry refreshes.")
}

// AddMetricsFlagsToCommand will add the metrics server flags to the supplied command.
func AddMetricsFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.MetricsEndpoint,
		metricsEndpointFlag,
		defaults.MetricsEndpoint,
		"The endpoint for the prometheus metrics server to listen on.")

	cmd.Flags().BoolVar(&cfg.DisableMetrics,
		disableMetricsFlag,
		false,
		"Set to true to stop the metrics server running.")
}

// AddLayoutFlagsToCommand will add the layout file flags to the supplied command.
func AddLayoutFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.LayoutFile,
		layoutFileFlag,
		defaults.LayoutFile,
		"The path of the partition layout file.")
}
