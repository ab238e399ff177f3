package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-tech/internal/climate"
	"github.com/joshp123/gohome-tech/internal/config"
	"github.com/joshp123/gohome-tech/internal/core"
	"github.com/joshp123/gohome-tech/internal/mqtt"
	"github.com/joshp123/gohome-tech/internal/plugins"
	"github.com/joshp123/gohome-tech/internal/rate"
	"github.com/joshp123/gohome-tech/internal/router"
	"github.com/joshp123/gohome-tech/internal/server"
	"github.com/joshp123/gohome-tech/internal/session"
)

type pollScheduled interface {
	PollInterval() time.Duration
}

func main() {
	configPath := flag.String("config", envOrDefault("GOHOME_CONFIG", config.DefaultPath), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := climate.NewRegistry()
	compiled := plugins.Compiled(cfg, registry)
	enabled := config.EnabledPlugins(cfg)
	if err := core.ValidateEnabledPlugins(compiled, enabled, false); err != nil {
		log.Fatalf("plugins: %v", err)
	}
	active := core.FilterPlugins(compiled, enabled, false)
	if err := core.ValidatePlugins(active); err != nil {
		log.Fatalf("plugins: %v", err)
	}

	for _, p := range active {
		starter, ok := p.(core.Starter)
		if !ok {
			continue
		}
		if err := starter.Start(ctx); err != nil {
			log.Printf("plugin %s start failed: %v", p.ID(), err)
		}
	}

	poller := climate.NewPoller(registry, pollInterval(active))
	if cfg.MQTT != nil {
		client, err := mqtt.Dial(cfg.MQTT.Broker)
		if err != nil {
			log.Fatalf("mqtt: %v", err)
		}
		defer client.Close()

		bridge := mqtt.NewBridge(client, registry, cfg.MQTT.TopicPrefix)
		if err := bridge.Start(ctx); err != nil {
			log.Fatalf("mqtt bridge: %v", err)
		}
		poller.OnRefreshed = bridge.PublishStates
	}
	go poller.Run(ctx)

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}
	if err := router.RegisterPlugins(grpcServer.Server, active); err != nil {
		log.Fatalf("grpc register: %v", err)
	}

	shared := append(rate.MetricsCollectors(), session.MetricsCollectors()...)
	metricsRegistry := core.MetricsRegistry(active, shared...)
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gohome_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
		log.Printf("write dashboards: %v", err)
	}

	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.NewRouter(active, registry, metricsRegistry))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.Stop()
	}()

	log.Printf("gohome: grpc on %s, http on %s, %d plugin(s)", cfg.Core.GRPCAddr, cfg.Core.HTTPAddr, len(active))
	if err := grpcServer.Serve(); err != nil {
		log.Fatalf("grpc serve: %v", err)
	}
}

// pollInterval picks the shortest interval any plugin asks for.
func pollInterval(active []core.Plugin) time.Duration {
	var interval time.Duration
	for _, p := range active {
		scheduled, ok := p.(pollScheduled)
		if !ok {
			continue
		}
		if d := scheduled.PollInterval(); d > 0 && (interval == 0 || d < interval) {
			interval = d
		}
	}
	return interval
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
