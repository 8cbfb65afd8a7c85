package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	cmdflags "migfleet/internal/command/flags"
	"migfleet/internal/config"
	"migfleet/pkg/driver/fake"
	"migfleet/pkg/driver/nvml"
	"migfleet/pkg/flags"
	"migfleet/pkg/log"
	"migfleet/pkg/manager"
	"migfleet/pkg/metrics"
	"migfleet/pkg/models"
	"migfleet/pkg/ports"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the partition fleet daemon",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			logger := log.GetLogger(c.Context())
			logger.Infof("Starting migfleet daemon")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmdflags.AddDriverFlagsToCommand(cmd, cfg)
	cmdflags.AddMonitorFlagsToCommand(cmd, cfg)
	cmdflags.AddMetricsFlagsToCommand(cmd, cfg)

	return cmd, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.GetLogger(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(log.WithLogger(ctx, logger))
	defer cancel()

	p, err := InitializePorts(cfg)
	if err != nil {
		return err
	}

	mgr := manager.New(p, manager.Config{MonitorInterval: cfg.MonitorInterval})

	if err := mgr.Init(ctx); err != nil {
		return fmt.Errorf("initializing fleet manager: %w", err)
	}
	defer mgr.Shutdown(ctx)

	if err := mgr.StartMonitoring(ctx, cfg.MonitorInterval); err != nil {
		return fmt.Errorf("starting telemetry monitor: %w", err)
	}

	logger.Infof("managing %d devices, refreshing every %s", mgr.DeviceCount(), cfg.MonitorInterval)

	wg := &sync.WaitGroup{}

	if !cfg.DisableMetrics {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := serveMetrics(ctx, cfg, mgr); err != nil {
				logger.Errorf("failed to run metrics server: %v", err)
				cancel()
			}
		}()
	}

	select {
	case <-sigChan:
		logger.Debug("Shutdown signal received, waiting for work to finish")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()

	logger.Info("Finished all tasks, exiting")

	return nil
}

func serveMetrics(ctx context.Context, cfg *config.Config, mgr *manager.Manager) error {
	logger := log.GetLogger(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(mgr))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.MetricsEndpoint,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutting down metrics server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("Starting metrics server on %s", cfg.MetricsEndpoint)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// InitializePorts builds the external dependencies of the manager from the
// configured driver backend.
func InitializePorts(cfg *config.Config) (*ports.Collection, error) {
	var driver ports.Driver

	switch cfg.Driver {
	case "", "nvml":
		driver = nvml.New()
	case "fake":
		driver = fake.NewDriver(developmentSpec())
	default:
		return nil, fmt.Errorf("unknown driver backend %q", cfg.Driver)
	}

	return &ports.Collection{
		Driver:     driver,
		FileSystem: afero.NewOsFs(),
		Clock:      time.Now,
	}, nil
}

// developmentSpec is the device the fake backend exposes, a single
// partitionable accelerator with two profile sizes.
func developmentSpec() fake.DeviceSpec {
	return fake.DeviceSpec{
		Name:                "Fake Accelerator 40GB",
		TotalMemory:         40 * 1024 * 1024 * 1024,
		PartitioningEnabled: true,
		Profiles: []models.Profile{
			{ID: 0, MemorySizeMB: 4864, MultiprocessorCount: 14, MaxComputeInstances: 1, Name: "1g.5gb"},
			{ID: 14, MemorySizeMB: 9856, MultiprocessorCount: 28, MaxComputeInstances: 2, Name: "2g.10gb"},
		},
	}
}
