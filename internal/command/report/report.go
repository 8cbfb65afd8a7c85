package report

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cmdflags "migfleet/internal/command/flags"
	"migfleet/internal/command/run"
	"migfleet/internal/config"
	"migfleet/pkg/flags"
	"migfleet/pkg/manager"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a one-shot report of the fleet's partitions and telemetry",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, cfg)
		},
	}

	cmdflags.AddDriverFlagsToCommand(cmd, cfg)

	return cmd, nil
}

func report(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	p, err := run.InitializePorts(cfg)
	if err != nil {
		return err
	}

	mgr := manager.New(p, manager.Config{})

	if err := mgr.Init(ctx); err != nil {
		return fmt.Errorf("initializing fleet manager: %w", err)
	}
	defer mgr.Shutdown(ctx)

	out := cmd.OutOrStdout()

	info, err := mgr.SystemInfo()
	if err != nil {
		return fmt.Errorf("querying system info: %w", err)
	}

	fmt.Fprintf(out, "Driver:  %s\nLibrary: %s\nCUDA:    %s\n\n", info.DriverVersion, info.LibraryVersion, info.CUDAVersion)

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintln(w, "DEVICE\tNAME\tPARTITIONING\tPARTITIONS")

	for _, dev := range mgr.Devices() {
		mode := "disabled"
		if mgr.IsPartitioningEnabled(dev.Index) {
			mode = "enabled"
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", dev.Index, dev.Name, mode, len(mgr.PartitionsForDevice(dev.Index)))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	parts := mgr.Partitions()
	if len(parts) == 0 {
		return nil
	}

	fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintln(w, "UUID\tDEVICE\tINSTANCE\tPROFILE\tMEMORY\tGPU%\tMEM%\tPOWER\tTEMP")

	for _, part := range parts {
		sample, err := mgr.Telemetry(ctx, part.UUID)
		if err != nil {
			return fmt.Errorf("collecting telemetry for %s: %w", part.UUID, err)
		}

		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%d\t%d\t%.1fW\t%dC\n",
			part.UUID,
			part.ParentDeviceIndex,
			part.InstanceID,
			part.ProfileID,
			formatBytes(part.MemorySize),
			sample.GPUUtilization,
			sample.MemoryUtilization,
			float64(sample.PowerUsage)/1000,
			sample.Temperature,
		)
	}

	return w.Flush()
}

func formatBytes(b uint64) string {
	const unit = 1024

	if b < unit*unit {
		return fmt.Sprintf("%dB", b)
	}

	mb := b / (unit * unit)
	if mb < unit {
		return fmt.Sprintf("%dMiB", mb)
	}

	return fmt.Sprintf("%.1fGiB", float64(mb)/unit)
}
