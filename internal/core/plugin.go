package core

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// HealthStatus represents plugin health states for registry reporting.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthError    HealthStatus = "ERROR"
)

// Dashboard is a Grafana dashboard asset embedded by the plugin.
type Dashboard struct {
	Name string
	JSON []byte
}

// Manifest describes a plugin for discovery and registry metadata.
type Manifest struct {
	PluginID    string
	DisplayName string
	Version     string
	Services    []string
}

// Plugin is the compile-time contract for all GoHome plugins.
type Plugin interface {
	ID() string
	Manifest() Manifest
	AgentsMD() string
	Dashboards() []Dashboard
	RegisterGRPC(*grpc.Server) error
	Collectors() []prometheus.Collector
	Health() HealthStatus
	HealthMessage() string
}

// Starter is implemented by plugins that connect to their vendor at startup.
type Starter interface {
	Start(ctx context.Context) error
}

// HTTPRegistrant allows plugins to expose HTTP handlers.
type HTTPRegistrant interface {
	RegisterHTTP(chi.Router)
}
