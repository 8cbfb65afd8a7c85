package log

import "github.com/spf13/cobra"

const (
	verbosityFlag = "verbosity"
	formatFlag    = "log-format"
	outputFlag    = "log-output"
)

// AddFlagsToCommand adds the logging flags to the supplied command and binds
// them to the supplied config.
func AddFlagsToCommand(cmd *cobra.Command, config *Config) {
	cmd.PersistentFlags().IntVarP(&config.Verbosity,
		verbosityFlag,
		"v",
		LogVerbosityInfo,
		"The verbosity level of the logging. 0 is info, 2 is debug, 9 is trace.")

	cmd.PersistentFlags().StringVar(&config.Format,
		formatFlag,
		FormatText,
		"The format of the logging output. Can be 'text' or 'json'.")

	cmd.PersistentFlags().StringVar(&config.Output,
		outputFlag,
		OutputStderr,
		"The output for logging. Can be 'stderr', 'stdout' or a file path.")
}
