// SunSpec Telemetry Collector
//
// Discovers Modbus/TCP devices on a subnet, parses their SunSpec model
// directories, polls holding registers on a jittered schedule, and ships
// samples through a durable on-disk buffer to a downstream event bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"go.sunspec.dev/internal/common/health"
	"go.sunspec.dev/internal/common/lifecycle"
	"go.sunspec.dev/internal/common/readiness"
	"go.sunspec.dev/internal/common/shutdown"
	"go.sunspec.dev/internal/discovery"
	"go.sunspec.dev/internal/modbus"
	"go.sunspec.dev/internal/poller"
	"go.sunspec.dev/internal/supervisor"
)

var (
	version   = "dev"
	buildTime = "unknown"

	configPath string
)

func main() {
	root := &cobra.Command{
		Use:   "collector",
		Short: "SunSpec telemetry collector",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a TOML or JSON config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("collector %s (built %s)\n", version, buildTime)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logLevel := slog.LevelInfo
	if os.Getenv("SUNSPEC_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("starting sunspec collector", "version", version, "build_time", buildTime)

	app, cleanup, err := lifecycle.Initialize(configPath)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		return err
	}
	defer cleanup()

	if app.Config.DevMode && logLevel != slog.LevelDebug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	discoverCtx := context.Background()

	devices, err := discovery.Discover(discoverCtx, discovery.Config{
		Subnet:           app.Config.Discovery.Subnet,
		Port:             app.Config.Discovery.Port,
		PerHostTimeoutMs: app.Config.Discovery.PerHostTimeoutMs,
		MaxConcurrency:   app.Config.Discovery.MaxConcurrency,
		UnitIDs:          toUint8Slice(app.Config.Discovery.UnitIDs),
		StaticDevices:    app.Config.Discovery.StaticDevices,
	})
	if err != nil {
		slog.Error("discovery failed", "error", err)
		return err
	}
	slog.Info("discovery complete", "devices", len(devices))

	modbusTemplate := modbus.ClientConfig{
		Port:              app.Config.Discovery.Port,
		MaxBatchSize:      uint16(app.Config.Modbus.MaxBatchSize),
		TimeoutMs:         app.Config.Modbus.TimeoutMs,
		InterReadDelayMs:  app.Config.Modbus.InterReadDelayMs,
		RetryCount:        app.Config.Modbus.RetryCount,
		RetryBackoffMs:    app.Config.Modbus.RetryBackoffMs,
		RetryMaxBackoffMs: app.Config.Modbus.RetryMaxBackoffMs,
	}

	specs := supervisor.BuildSpecs(discoverCtx, devices, modbusTemplate,
		uint16(app.Config.Sunspec.BaseAddress), uint16(app.Config.Sunspec.DiscoveryRegCount))
	slog.Info("model discovery complete", "pollable_devices", len(specs))

	watch := shutdown.New()
	sup := supervisor.New(supervisor.Config{
		Poller: poller.Config{
			PollIntervalMs:   app.Config.Poller.PollIntervalMs,
			JitterMs:         app.Config.Poller.JitterMs,
			RequestTimeoutMs: app.Config.Poller.RequestTimeoutMs,
		},
		RespawnDelayMs:  app.Config.RespawnDelayMs,
		ChannelCapacity: app.Config.ChannelCapacity,
		DrainBatchSize:  app.Config.Buffer.BatchSize,
		DrainIntervalMs: app.Config.Buffer.DrainMs,
	}, app.Buffer, app.Publisher, watch)

	for _, spec := range specs {
		sup.AddSpec(spec)
	}

	healthChecker := health.NewChecker()
	healthChecker.AddReadinessCheck(health.BufferStoreCheck(func() (int64, error) {
		return app.Buffer.PendingCount(context.Background())
	}))
	healthChecker.AddReadinessCheck(health.PollerCheck(func() health.PollerFleetStatus {
		return health.PollerFleetStatus{Configured: len(specs), Active: sup.ActiveCount()}
	}))
	healthChecker.AddReadinessCheck(health.PublisherCheck(len(app.Config.Kafka.Brokers) == 0))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/q/health", healthChecker.HandleHealth)
	r.Get("/q/health/live", healthChecker.HandleLive)
	r.Get("/q/health/ready", healthChecker.HandleReady)
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         ":9090",
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	services := []lifecycle.Service{
		lifecycle.NewHTTPService("health-metrics", httpServer),
		newSupervisorService(sup, watch),
		newReadinessService(readiness.New()),
	}

	if err := lifecycle.Run(context.Background(), services...); err != nil {
		slog.Error("sunspec collector exited with error", "error", err)
		return err
	}

	slog.Info("sunspec collector stopped")
	return nil
}

func toUint8Slice(in []int) []uint8 {
	out := make([]uint8, len(in))
	for i, v := range in {
		out[i] = uint8(v)
	}
	return out
}
