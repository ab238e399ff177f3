package plugins

import (
	"github.com/joshp123/gohome-tech/internal/climate"
	"github.com/joshp123/gohome-tech/internal/config"
	"github.com/joshp123/gohome-tech/internal/core"
)

// Factory builds a plugin instance from the loaded config. Climate entities
// created by the plugin are added to the shared registry.
type Factory func(*config.Config, *climate.Registry) (core.Plugin, bool)

var compiled []Factory

// Register adds a compiled-in plugin factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured plugin instances for this build.
func Compiled(cfg *config.Config, registry *climate.Registry) []core.Plugin {
	if cfg == nil {
		return nil
	}
	out := make([]core.Plugin, 0, len(compiled))
	for _, factory := range compiled {
		plugin, ok := factory(cfg, registry)
		if !ok {
			continue
		}
		out = append(out, plugin)
	}
	return out
}
