package climate

import (
	"context"
	"sync"
	"time"
)

const DefaultPollInterval = 30 * time.Second

// Poller refreshes every registered entity on a fixed interval.
type Poller struct {
	registry *Registry
	interval time.Duration

	// OnRefreshed runs after each completed round.
	OnRefreshed func(entities []Entity)
}

func NewPoller(registry *Registry, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{registry: registry, interval: interval}
}

// Run refreshes immediately and then once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.RefreshAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RefreshAll updates all entities concurrently and waits for them to finish.
func (p *Poller) RefreshAll(ctx context.Context) {
	entities := p.registry.List()

	var wg sync.WaitGroup
	for _, entity := range entities {
		wg.Add(1)
		go func(e Entity) {
			defer wg.Done()
			e.Update(ctx)
		}(entity)
	}
	wg.Wait()

	if p.OnRefreshed != nil && ctx.Err() == nil {
		p.OnRefreshed(entities)
	}
}
