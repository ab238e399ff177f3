package climate

import (
	"context"
	"strings"
)

// HVACMode is the operating mode requested for a climate entity.
type HVACMode string

const (
	HVACModeHeat HVACMode = "heat"
	HVACModeOff  HVACMode = "off"
)

// HVACAction is what the equipment is currently doing.
type HVACAction string

const (
	HVACActionHeating HVACAction = "heating"
	HVACActionIdle    HVACAction = "idle"
	HVACActionOff     HVACAction = "off"
)

// TemperatureUnit is the unit all temperatures of an entity are reported in.
type TemperatureUnit string

const UnitCelsius TemperatureUnit = "°C"

// Feature is a bitmask of optional entity capabilities.
type Feature int

const (
	FeatureTargetTemperature Feature = 1 << iota
)

func (f Feature) Has(other Feature) bool {
	return f&other != 0
}

// Identifier pairs an integration domain with a device id inside it.
type Identifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// DeviceInfo describes the physical device behind an entity.
type DeviceInfo struct {
	Identifiers  []Identifier `json:"identifiers"`
	Name         string       `json:"name"`
	Manufacturer string       `json:"manufacturer"`
}

// State is a point-in-time copy of an entity's cached values. Nil pointers are unknown.
type State struct {
	UniqueID           string          `json:"unique_id"`
	Name               string          `json:"name"`
	Unit               TemperatureUnit `json:"temperature_unit"`
	TargetTemperature  *float64        `json:"target_temperature"`
	CurrentTemperature *float64        `json:"current_temperature"`
	CurrentHumidity    *int            `json:"current_humidity"`
	HVACAction         *HVACAction     `json:"hvac_action"`
	HVACMode           HVACMode        `json:"hvac_mode"`
}

// Entity is the contract every climate device exposes to the hub.
//
// Update and the command methods report failures through logging only;
// they never return errors to the hub.
type Entity interface {
	UniqueID() string
	DeviceInfo() DeviceInfo
	Name() string
	TemperatureUnit() TemperatureUnit
	HVACModes() []HVACMode
	SupportedFeatures() Feature
	State() State

	Update(ctx context.Context)
	SetTemperature(ctx context.Context, temperature *float64)
	SetHVACMode(ctx context.Context, mode HVACMode)
}

// AddEntitiesFunc registers entities created by an integration.
type AddEntitiesFunc func(entities []Entity)

// ParseHVACMode normalizes user input. Unrecognized values are returned as-is
// so the entity decides how to treat them.
func ParseHVACMode(value string) HVACMode {
	return HVACMode(strings.ToLower(strings.TrimSpace(value)))
}
