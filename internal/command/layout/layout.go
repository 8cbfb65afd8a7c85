package layout

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdflags "migfleet/internal/command/flags"
	"migfleet/internal/command/run"
	"migfleet/internal/config"
	"migfleet/pkg/flags"
	fleetlayout "migfleet/pkg/layout"
	"migfleet/pkg/manager"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Save or apply partition layouts",
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(saveCommand(cfg))
	cmd.AddCommand(applyCommand(cfg))

	return cmd, nil
}

func saveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the current partition configuration to the layout file",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, cfg, func(svc *fleetlayout.Service) error {
				return svc.Save(cmd.Context(), cfg.LayoutFile)
			})
		},
	}

	cmdflags.AddDriverFlagsToCommand(cmd, cfg)
	cmdflags.AddLayoutFlagsToCommand(cmd, cfg)

	return cmd
}

func applyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the fleet against the layout file",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, cfg, func(svc *fleetlayout.Service) error {
				return svc.Apply(cmd.Context(), cfg.LayoutFile)
			})
		},
	}

	cmdflags.AddDriverFlagsToCommand(cmd, cfg)
	cmdflags.AddLayoutFlagsToCommand(cmd, cfg)

	return cmd
}

func withService(cmd *cobra.Command, cfg *config.Config, fn func(*fleetlayout.Service) error) error {
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

	return fn(fleetlayout.NewService(p.FileSystem, mgr))
}
