package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/UnknownOlympus/atlas-batch/internal/metrics"
	"github.com/UnknownOlympus/atlas-batch/internal/repository"
	"github.com/UnknownOlympus/atlas-batch/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the task database and geocode new task addresses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Port = servePort
		}

		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "monitoring server port (default from ATLAS_HEALTH_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	// Create a separate registry for metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	dtb, err := repository.NewDatabase(ctx,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer dtb.Close()

	repo := repository.NewRepository(dtb, logger)

	ctrl, err := newController(cfg, logger, appMetrics)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	geoService := service.NewGeocodingService(logger, repo, ctrl, cfg.Interval, cfg.AddrPrefix, cfg.TaskLimit)

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ctrl.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		geoService.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return startMonitoringServer(groupCtx, logger, newMonitoringMux(groupCtx, logger, reg, dtb), cfg.Port)
	})

	err = group.Wait()
	logger.InfoContext(ctx, "Application stopped.")

	return err
}
