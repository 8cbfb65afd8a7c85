package defaults

import "time"

const (
	// MonitorInterval is the default cadence for the background
	// registry/telemetry refresh loop.
	MonitorInterval = 1000 * time.Millisecond

	// MetricsEndpoint is the default address for the prometheus metrics
	// HTTP endpoint of the run command.
	MetricsEndpoint = "localhost:9844"

	// LayoutFile is the default path for partition layout exports.
	LayoutFile = "migfleet-layout.toml"

	// StateRootDir is the default directory to use for runtime state.
	StateRootDir = "/run/migfleet"

	// DataDirPerm is the permissions to use for data folders.
	DataDirPerm = 0o755

	// DataFilePerm is the permissions to use for data files.
	DataFilePerm = 0o644
)
