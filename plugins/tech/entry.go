package tech

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/joshp123/gohome-tech/internal/climate"
)

// ConfigEntry is one configured Tech module.
type ConfigEntry struct {
	EntryID string
	Title   string
	Data    EntryData
}

type EntryData struct {
	UserID string
	Token  string
	Module Module
}

// APIFactory builds the vendor API handle for an entry.
type APIFactory func(entry ConfigEntry) API

// Integration owns the per-entry API handles and their entities.
type Integration struct {
	registry *climate.Registry
	newAPI   APIFactory

	mu     sync.Mutex
	apis   map[string]API
	failed map[string]bool
}

func NewIntegration(registry *climate.Registry, newAPI APIFactory) *Integration {
	return &Integration{
		registry: registry,
		newAPI:   newAPI,
		apis:     make(map[string]API),
		failed:   make(map[string]bool),
	}
}

// SetupEntry stores an API handle for the entry and sets up its climate platform.
func (i *Integration) SetupEntry(ctx context.Context, entry ConfigEntry) bool {
	log.Printf("tech: setting up entry %s (%s) for module %s", entry.EntryID, entry.Title, entry.Data.Module.UDID)

	api := i.newAPI(entry)
	i.mu.Lock()
	i.apis[entry.EntryID] = api
	i.mu.Unlock()

	ok := SetupClimate(ctx, api, entry.Data.Module.UDID, i.registry.Add(entry.EntryID))

	i.mu.Lock()
	if ok {
		delete(i.failed, entry.EntryID)
	} else {
		i.failed[entry.EntryID] = true
	}
	i.mu.Unlock()
	return ok
}

// UnloadEntry removes the entry's entities and drops its API handle.
func (i *Integration) UnloadEntry(entry ConfigEntry) bool {
	i.mu.Lock()
	_, ok := i.apis[entry.EntryID]
	delete(i.apis, entry.EntryID)
	delete(i.failed, entry.EntryID)
	i.mu.Unlock()

	if !ok {
		return false
	}
	i.registry.Remove(entry.EntryID)
	return true
}

// FailedEntries lists entries whose climate setup failed, sorted.
func (i *Integration) FailedEntries() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]string, 0, len(i.failed))
	for id := range i.failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Thermostats returns the Tech entities currently registered.
func (i *Integration) Thermostats() []*Thermostat {
	var out []*Thermostat
	for _, entity := range i.registry.List() {
		if t, ok := entity.(*Thermostat); ok {
			out = append(out, t)
		}
	}
	return out
}

// EntriesForModules builds one entry per module, restricted to udids when given.
func EntriesForModules(userID, token string, modules []Module, udids []string) []ConfigEntry {
	byUDID := make(map[string]Module, len(modules))
	for _, module := range modules {
		byUDID[module.UDID] = module
	}

	var selected []Module
	if len(udids) == 0 {
		selected = modules
	} else {
		for _, udid := range udids {
			module, ok := byUDID[udid]
			if !ok {
				// configured but not listed on the account; still try it
				module = Module{UDID: udid}
			}
			selected = append(selected, module)
		}
	}

	entries := make([]ConfigEntry, 0, len(selected))
	for _, module := range selected {
		title := module.Name
		if title == "" {
			title = module.UDID
		}
		entries = append(entries, ConfigEntry{
			EntryID: provider + "_" + module.UDID,
			Title:   title,
			Data:    EntryData{UserID: userID, Token: token, Module: module},
		})
	}
	return entries
}
