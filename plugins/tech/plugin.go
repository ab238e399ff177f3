package tech

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-tech/internal/climate"
	"github.com/joshp123/gohome-tech/internal/config"
	"github.com/joshp123/gohome-tech/internal/core"
	"github.com/joshp123/gohome-tech/internal/session"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

// Plugin implements the GoHome plugin contract.
type Plugin struct {
	client       *Client
	integration  *Integration
	moduleUDIDs  []string
	pollInterval time.Duration

	mu            sync.RWMutex
	health        core.HealthStatus
	healthMessage string
}

var (
	_ core.Starter        = (*Plugin)(nil)
	_ core.HTTPRegistrant = (*Plugin)(nil)
)

// NewPlugin constructs a Tech plugin from config. Thermostats are added to registry on Start.
func NewPlugin(cfg *config.Config, registry *climate.Registry) (*Plugin, bool) {
	if cfg == nil || cfg.Tech == nil {
		return nil, false
	}

	runtimeCfg, err := ConfigFromFile(cfg.Tech)
	if err != nil {
		return errorPlugin(err), true
	}

	store, err := sessionStore(runtimeCfg.SessionDir, cfg.Blob)
	if err != nil {
		return errorPlugin(err), true
	}

	anon := NewClient(runtimeCfg)
	tokens := session.NewTokenSource(provider, store, func(ctx context.Context) (session.State, error) {
		log.Printf("tech: logging in as %s", runtimeCfg.Username)
		return anon.Authenticate(ctx, runtimeCfg.Username, runtimeCfg.Password)
	})
	client := anon.WithSession(tokens)

	integration := NewIntegration(registry, func(ConfigEntry) API {
		return anon.WithSession(tokens)
	})

	return &Plugin{
		client:        client,
		integration:   integration,
		moduleUDIDs:   runtimeCfg.ModuleUDIDs,
		pollInterval:  runtimeCfg.PollInterval,
		health:        core.HealthDegraded,
		healthMessage: "not started",
	}, true
}

func errorPlugin(err error) *Plugin {
	return &Plugin{health: core.HealthError, healthMessage: err.Error()}
}

func sessionStore(dir string, blob *config.BlobConfig) (session.Store, error) {
	file := session.FileStore{Dir: dir}
	if blob == nil {
		return file, nil
	}
	remote, err := session.NewS3Store(blob)
	if err != nil {
		return nil, fmt.Errorf("session blob store: %w", err)
	}
	return session.MirrorStore{file, remote}, nil
}

// Start discovers the account's modules and sets up one entry per module.
func (p *Plugin) Start(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("tech plugin not configured: %s", p.HealthMessage())
	}

	state, err := p.client.tokens.Session(ctx)
	if err != nil {
		p.setHealth(core.HealthError, err.Error())
		return fmt.Errorf("tech session: %w", err)
	}

	modules, err := p.client.ListModules(ctx)
	if err != nil {
		if len(p.moduleUDIDs) == 0 {
			p.setHealth(core.HealthError, err.Error())
			return fmt.Errorf("list tech modules: %w", err)
		}
		log.Printf("tech: list modules failed, using configured udids: %v", err)
	}

	entries := EntriesForModules(state.UserID, state.Token, modules, p.moduleUDIDs)
	if len(entries) == 0 {
		p.setHealth(core.HealthError, "no tech modules found")
		return fmt.Errorf("no tech modules found")
	}

	loaded := 0
	for _, entry := range entries {
		if p.integration.SetupEntry(ctx, entry) {
			loaded++
		}
	}

	message := fmt.Sprintf("%d/%d modules loaded", loaded, len(entries))
	switch {
	case loaded == len(entries):
		p.setHealth(core.HealthHealthy, message)
	case loaded > 0:
		p.setHealth(core.HealthDegraded, message)
	default:
		p.setHealth(core.HealthError, message)
	}
	return nil
}

// PollInterval is how often the host should refresh Tech thermostats.
func (p *Plugin) PollInterval() time.Duration {
	return p.pollInterval
}

func (p *Plugin) ID() string {
	return provider
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    provider,
		DisplayName: "Tech Controllers",
		Version:     "0.1.0",
		Services:    []string{ServiceName},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "tech-overview", JSON: dashboardJSON}}
}

func (p *Plugin) RegisterGRPC(server *grpc.Server) error {
	if p.integration == nil {
		return nil
	}
	return RegisterTechService(server, p.integration)
}

// RegisterHTTP exposes the Tech zone summaries, including module and zone ids,
// under the /api router.
func (p *Plugin) RegisterHTTP(r chi.Router) {
	r.Get("/tech/zones", func(w http.ResponseWriter, _ *http.Request) {
		resp := ListZonesResponse{Zones: []ZoneSummary{}}
		if p.integration != nil {
			for _, t := range p.integration.Thermostats() {
				resp.Zones = append(resp.Zones, Summarize(t))
			}
		}
		writeJSON(w, resp)
	})
}

func (p *Plugin) Collectors() []prometheus.Collector {
	if p.integration == nil {
		return nil
	}
	return []prometheus.Collector{NewMetricsCollector(p.integration)}
}

func (p *Plugin) Health() core.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Plugin) HealthMessage() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthMessage
}

func (p *Plugin) setHealth(status core.HealthStatus, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health = status
	p.healthMessage = message
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
