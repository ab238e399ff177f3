package plugins

import (
	"github.com/joshp123/gohome-tech/internal/climate"
	"github.com/joshp123/gohome-tech/internal/config"
	"github.com/joshp123/gohome-tech/internal/core"
	"github.com/joshp123/gohome-tech/plugins/tech"
)

func init() {
	Register(func(cfg *config.Config, registry *climate.Registry) (core.Plugin, bool) {
		plugin, ok := tech.NewPlugin(cfg, registry)
		if !ok {
			return nil, false
		}
		return plugin, true
	})
}
