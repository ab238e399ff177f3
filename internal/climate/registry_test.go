package climate

import (
	"context"
	"sync/atomic"
	"testing"
)

type stubEntity struct {
	id      string
	updates atomic.Int32
}

func (s *stubEntity) UniqueID() string { return s.id }
func (s *stubEntity) DeviceInfo() DeviceInfo { return DeviceInfo{Name: s.id} }
func (s *stubEntity) Name() string { return s.id }
func (s *stubEntity) TemperatureUnit() TemperatureUnit { return UnitCelsius }
func (s *stubEntity) HVACModes() []HVACMode { return []HVACMode{HVACModeHeat, HVACModeOff} }
func (s *stubEntity) SupportedFeatures() Feature { return FeatureTargetTemperature }
func (s *stubEntity) State() State { return State{UniqueID: s.id} }
func (s *stubEntity) Update(context.Context) { s.updates.Add(1) }
func (s *stubEntity) SetTemperature(context.Context, *float64) {}
func (s *stubEntity) SetHVACMode(context.Context, HVACMode) {}

func TestRegistryAddRemove(t *testing.T) {
	registry := NewRegistry()

	registry.Add("entry-a")([]Entity{&stubEntity{id: "b"}, &stubEntity{id: "a"}})
	registry.Add("entry-b")([]Entity{&stubEntity{id: "c"}})

	list := registry.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(list))
	}
	if list[0].UniqueID() != "a" || list[2].UniqueID() != "c" {
		t.Fatalf("expected sorted entities, got %s..%s", list[0].UniqueID(), list[2].UniqueID())
	}

	if removed := registry.Remove("entry-a"); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := registry.Get("a"); ok {
		t.Fatalf("expected entity a to be removed")
	}
	if _, ok := registry.Get("c"); !ok {
		t.Fatalf("expected entity c to remain")
	}
	if removed := registry.Remove("entry-a"); removed != 0 {
		t.Fatalf("expected second remove to be a no-op, got %d", removed)
	}
}

func TestRegistryReplaceKeepsSingleEntry(t *testing.T) {
	registry := NewRegistry()
	add := registry.Add("entry")

	add([]Entity{&stubEntity{id: "a"}})
	add([]Entity{&stubEntity{id: "a"}})

	if registry.Len() != 1 {
		t.Fatalf("expected 1 entity, got %d", registry.Len())
	}
	if removed := registry.Remove("entry"); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestRegistryReplaceMovesOwnership(t *testing.T) {
	registry := NewRegistry()

	registry.Add("entry-a")([]Entity{&stubEntity{id: "x"}, &stubEntity{id: "y"}})
	registry.Add("entry-b")([]Entity{&stubEntity{id: "x"}})

	if removed := registry.Remove("entry-b"); removed != 1 {
		t.Fatalf("expected 1 removed from entry-b, got %d", removed)
	}
	if _, ok := registry.Get("x"); ok {
		t.Fatalf("expected x to be removed with its new entry")
	}
	if removed := registry.Remove("entry-a"); removed != 1 {
		t.Fatalf("expected only y left on entry-a, got %d", removed)
	}
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.Len())
	}
}

func TestPollerRefreshAll(t *testing.T) {
	registry := NewRegistry()
	a := &stubEntity{id: "a"}
	b := &stubEntity{id: "b"}
	registry.Add("entry")([]Entity{a, b})

	var rounds int
	poller := NewPoller(registry, 0)
	poller.OnRefreshed = func(entities []Entity) {
		rounds++
		if len(entities) != 2 {
			t.Fatalf("expected 2 refreshed entities, got %d", len(entities))
		}
	}

	poller.RefreshAll(context.Background())
	poller.RefreshAll(context.Background())

	if a.updates.Load() != 2 || b.updates.Load() != 2 {
		t.Fatalf("unexpected update counts: a=%d b=%d", a.updates.Load(), b.updates.Load())
	}
	if rounds != 2 {
		t.Fatalf("expected 2 refresh rounds, got %d", rounds)
	}
	if poller.interval != DefaultPollInterval {
		t.Fatalf("expected default interval, got %s", poller.interval)
	}
}

func TestParseHVACMode(t *testing.T) {
	if got := ParseHVACMode(" HEAT "); got != HVACModeHeat {
		t.Fatalf("expected heat, got %q", got)
	}
	if got := ParseHVACMode("cool"); got != HVACMode("cool") {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
