package tech

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/joshp123/gohome-tech/internal/climate"
)

const manufacturer = "Tech"

var supportedModes = []climate.HVACMode{climate.HVACModeHeat, climate.HVACModeOff}

// API is the subset of the eModul client the climate platform needs.
type API interface {
	GetModuleZones(ctx context.Context, udid string) (map[int]Zone, error)
	GetZone(ctx context.Context, udid string, zoneID int) (Zone, error)
	SetConstTemp(ctx context.Context, udid string, zoneID int, celsius float64) error
	SetZone(ctx context.Context, udid string, zoneID int, on bool) error
}

// SetupClimate creates one thermostat per zone of the module. Nothing is
// registered unless the zone fetch succeeds.
func SetupClimate(ctx context.Context, api API, udid string, add climate.AddEntitiesFunc) bool {
	zones, err := api.GetModuleZones(ctx, udid)
	if err != nil {
		log.Printf("tech: failed to set up climate for module %s: %v", udid, err)
		return false
	}

	ids := make([]int, 0, len(zones))
	for id := range zones {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entities := make([]climate.Entity, 0, len(zones))
	for _, id := range ids {
		entities = append(entities, NewThermostat(zones[id], api, udid))
	}
	add(entities)
	return true
}

// Thermostat exposes one Tech zone as a climate entity.
type Thermostat struct {
	api      API
	udid     string
	zoneID   int
	uniqueID string
	device   climate.DeviceInfo

	mu                 sync.RWMutex
	name               string
	targetTemperature  *float64
	currentTemperature *float64
	currentHumidity    *int
	hvacAction         *climate.HVACAction
	hvacMode           climate.HVACMode
	updatedAt          time.Time
}

func NewThermostat(zone Zone, api API, udid string) *Thermostat {
	uniqueID := fmt.Sprintf("%s_%d", udid, zone.Zone.ID)
	t := &Thermostat{
		api:      api,
		udid:     udid,
		zoneID:   zone.Zone.ID,
		uniqueID: uniqueID,
		device: climate.DeviceInfo{
			Identifiers:  []climate.Identifier{{Domain: provider, ID: uniqueID}},
			Name:         zone.Description.Name,
			Manufacturer: manufacturer,
		},
		hvacMode: climate.HVACModeOff,
	}
	t.applyZone(zone)
	return t
}

func (t *Thermostat) UniqueID() string {
	return t.uniqueID
}

func (t *Thermostat) DeviceInfo() climate.DeviceInfo {
	return t.device
}

func (t *Thermostat) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *Thermostat) TemperatureUnit() climate.TemperatureUnit {
	return climate.UnitCelsius
}

func (t *Thermostat) HVACModes() []climate.HVACMode {
	return append([]climate.HVACMode(nil), supportedModes...)
}

func (t *Thermostat) SupportedFeatures() climate.Feature {
	return climate.FeatureTargetTemperature
}

func (t *Thermostat) ModuleUDID() string {
	return t.udid
}

func (t *Thermostat) ZoneID() int {
	return t.zoneID
}

// UpdatedAt reports when a zone snapshot was last applied.
func (t *Thermostat) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

func (t *Thermostat) State() climate.State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return climate.State{
		UniqueID:           t.uniqueID,
		Name:               t.name,
		Unit:               climate.UnitCelsius,
		TargetTemperature:  copyPtr(t.targetTemperature),
		CurrentTemperature: copyPtr(t.currentTemperature),
		CurrentHumidity:    copyPtr(t.currentHumidity),
		HVACAction:         copyPtr(t.hvacAction),
		HVACMode:           t.hvacMode,
	}
}

// Update refreshes the cached state. On error the previous state is kept.
func (t *Thermostat) Update(ctx context.Context) {
	zone, err := t.api.GetZone(ctx, t.udid, t.zoneID)
	if err != nil {
		log.Printf("tech: failed to update zone %s: %v", t.Name(), err)
		return
	}
	t.applyZone(zone)
}

// SetTemperature forwards a new target. The cached target only changes on the next Update.
func (t *Thermostat) SetTemperature(ctx context.Context, temperature *float64) {
	if temperature == nil {
		return
	}
	if err := t.api.SetConstTemp(ctx, t.udid, t.zoneID, *temperature); err != nil {
		log.Printf("tech: failed to set temperature for %s to %v: %v", t.Name(), *temperature, err)
	}
}

// SetHVACMode turns the zone on for heat and off for anything else.
func (t *Thermostat) SetHVACMode(ctx context.Context, mode climate.HVACMode) {
	if err := t.api.SetZone(ctx, t.udid, t.zoneID, mode == climate.HVACModeHeat); err != nil {
		log.Printf("tech: failed to set hvac mode for %s to %s: %v", t.Name(), mode, err)
	}
}

func (t *Thermostat) applyZone(zone Zone) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.name = zone.Description.Name

	data := zone.Zone
	if data.SetTemperature != nil {
		value := *data.SetTemperature / 10
		t.targetTemperature = &value
	}
	if data.CurrentTemperature != nil {
		value := *data.CurrentTemperature / 10
		t.currentTemperature = &value
	}
	if data.Humidity != nil {
		value := int(*data.Humidity)
		t.currentHumidity = &value
	}

	action := hvacAction(data.Flags.RelayState)
	t.hvacAction = &action
	t.hvacMode = hvacMode(data.ZoneState)
	t.updatedAt = time.Now()
}

func hvacAction(relayState string) climate.HVACAction {
	switch relayState {
	case "on":
		return climate.HVACActionHeating
	case "off":
		return climate.HVACActionIdle
	default:
		return climate.HVACActionOff
	}
}

func hvacMode(zoneState string) climate.HVACMode {
	switch zoneState {
	case "zoneOn", "noAlarm":
		return climate.HVACModeHeat
	default:
		return climate.HVACModeOff
	}
}

func copyPtr[T any](in *T) *T {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
