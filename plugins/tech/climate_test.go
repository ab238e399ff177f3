package tech

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/joshp123/gohome-tech/internal/climate"
)

type setTempCall struct {
	zoneID  int
	celsius float64
}

type setZoneCall struct {
	zoneID int
	on     bool
}

type fakeAPI struct {
	mu         sync.Mutex
	zones      map[int]Zone
	zonesErr   error
	zoneErr    error
	commandErr error
	setTemps   []setTempCall
	setZones   []setZoneCall
}

func (f *fakeAPI) GetModuleZones(_ context.Context, _ string) (map[int]Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zonesErr != nil {
		return nil, f.zonesErr
	}
	return cloneZones(f.zones), nil
}

func (f *fakeAPI) GetZone(_ context.Context, _ string, zoneID int) (Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zoneErr != nil {
		return Zone{}, f.zoneErr
	}
	zone, ok := f.zones[zoneID]
	if !ok {
		return Zone{}, ErrZoneNotFound
	}
	return zone, nil
}

func (f *fakeAPI) SetConstTemp(_ context.Context, _ string, zoneID int, celsius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setTemps = append(f.setTemps, setTempCall{zoneID: zoneID, celsius: celsius})
	return f.commandErr
}

func (f *fakeAPI) SetZone(_ context.Context, _ string, zoneID int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setZones = append(f.setZones, setZoneCall{zoneID: zoneID, on: on})
	return f.commandErr
}

func (f *fakeAPI) setZone(zone Zone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones[zone.Zone.ID] = zone
}

func tenths(v float64) *float64 { return &v }

func livingRoom() Zone {
	return Zone{
		Zone: ZoneData{
			ID:                 1,
			SetTemperature:     tenths(215),
			CurrentTemperature: tenths(198),
			Humidity:           tenths(45),
			Flags:              ZoneFlags{RelayState: "on"},
			ZoneState:          "zoneOn",
			Visibility:         true,
		},
		Description: ZoneDescription{Name: "Living room"},
		Mode:        ZoneMode{ID: 7001},
	}
}

func newFakeAPI(zones ...Zone) *fakeAPI {
	api := &fakeAPI{zones: make(map[int]Zone)}
	for _, zone := range zones {
		api.zones[zone.Zone.ID] = zone
	}
	return api
}

func TestThermostatDerivesState(t *testing.T) {
	thermostat := NewThermostat(livingRoom(), newFakeAPI(), "abc")
	state := thermostat.State()

	if state.UniqueID != "abc_1" || state.Name != "Living room" || state.Unit != climate.UnitCelsius {
		t.Fatalf("unexpected identity: %+v", state)
	}
	if state.TargetTemperature == nil || *state.TargetTemperature != 21.5 {
		t.Fatalf("unexpected target: %v", state.TargetTemperature)
	}
	if state.CurrentTemperature == nil || *state.CurrentTemperature != 19.8 {
		t.Fatalf("unexpected current: %v", state.CurrentTemperature)
	}
	if state.CurrentHumidity == nil || *state.CurrentHumidity != 45 {
		t.Fatalf("unexpected humidity: %v", state.CurrentHumidity)
	}
	if state.HVACAction == nil || *state.HVACAction != climate.HVACActionHeating {
		t.Fatalf("unexpected action: %v", state.HVACAction)
	}
	if state.HVACMode != climate.HVACModeHeat {
		t.Fatalf("unexpected mode: %s", state.HVACMode)
	}

	device := thermostat.DeviceInfo()
	if device.Manufacturer != "Tech" || device.Name != "Living room" {
		t.Fatalf("unexpected device: %+v", device)
	}
	if len(device.Identifiers) != 1 || device.Identifiers[0] != (climate.Identifier{Domain: "tech", ID: "abc_1"}) {
		t.Fatalf("unexpected identifiers: %+v", device.Identifiers)
	}
	if !thermostat.SupportedFeatures().Has(climate.FeatureTargetTemperature) {
		t.Fatalf("expected target temperature feature")
	}
	if modes := thermostat.HVACModes(); len(modes) != 2 || modes[0] != climate.HVACModeHeat || modes[1] != climate.HVACModeOff {
		t.Fatalf("unexpected modes: %v", modes)
	}
}

func TestThermostatNullReadingsKeepPreviousValues(t *testing.T) {
	api := newFakeAPI(livingRoom())
	thermostat := NewThermostat(livingRoom(), api, "abc")

	next := livingRoom()
	next.Zone.SetTemperature = nil
	next.Zone.CurrentTemperature = nil
	next.Zone.Humidity = nil
	next.Description.Name = "Lounge"
	api.setZone(next)

	thermostat.Update(context.Background())
	state := thermostat.State()
	if *state.TargetTemperature != 21.5 || *state.CurrentTemperature != 19.8 || *state.CurrentHumidity != 45 {
		t.Fatalf("null readings should not change cached values: %+v", state)
	}
	if state.Name != "Lounge" {
		t.Fatalf("expected name to follow the snapshot, got %q", state.Name)
	}
}

func TestThermostatInitialUnknowns(t *testing.T) {
	zone := Zone{Zone: ZoneData{ID: 4}, Description: ZoneDescription{Name: "Garage"}}
	state := NewThermostat(zone, newFakeAPI(), "abc").State()

	if state.TargetTemperature != nil || state.CurrentTemperature != nil || state.CurrentHumidity != nil {
		t.Fatalf("expected unknown readings, got %+v", state)
	}
	if state.HVACMode != climate.HVACModeOff {
		t.Fatalf("expected off mode, got %s", state.HVACMode)
	}
}

func TestHVACActionFromRelayState(t *testing.T) {
	cases := []struct {
		relay string
		want  climate.HVACAction
	}{
		{"on", climate.HVACActionHeating},
		{"off", climate.HVACActionIdle},
		{"unknown", climate.HVACActionOff},
		{"", climate.HVACActionOff},
	}
	for _, tc := range cases {
		zone := livingRoom()
		zone.Zone.Flags.RelayState = tc.relay
		state := NewThermostat(zone, newFakeAPI(), "abc").State()
		if state.HVACAction == nil || *state.HVACAction != tc.want {
			t.Fatalf("relayState %q: got %v, want %s", tc.relay, state.HVACAction, tc.want)
		}
	}
}

func TestHVACModeFromZoneState(t *testing.T) {
	cases := []struct {
		zoneState string
		want      climate.HVACMode
	}{
		{"zoneOn", climate.HVACModeHeat},
		{"noAlarm", climate.HVACModeHeat},
		{"zoneOff", climate.HVACModeOff},
		{"", climate.HVACModeOff},
	}
	for _, tc := range cases {
		zone := livingRoom()
		zone.Zone.ZoneState = tc.zoneState
		if got := NewThermostat(zone, newFakeAPI(), "abc").State().HVACMode; got != tc.want {
			t.Fatalf("zoneState %q: got %s, want %s", tc.zoneState, got, tc.want)
		}
	}
}

func TestThermostatFailedRefreshKeepsState(t *testing.T) {
	api := newFakeAPI(livingRoom())
	thermostat := NewThermostat(livingRoom(), api, "abc")
	before := thermostat.State()
	updatedAt := thermostat.UpdatedAt()

	api.zoneErr = errors.New("network down")
	thermostat.Update(context.Background())

	after := thermostat.State()
	if *after.TargetTemperature != *before.TargetTemperature ||
		*after.CurrentTemperature != *before.CurrentTemperature ||
		*after.CurrentHumidity != *before.CurrentHumidity ||
		*after.HVACAction != *before.HVACAction ||
		after.HVACMode != before.HVACMode {
		t.Fatalf("state changed after failed refresh: before=%+v after=%+v", before, after)
	}
	if !thermostat.UpdatedAt().Equal(updatedAt) {
		t.Fatalf("failed refresh should not bump the update time")
	}
}

func TestThermostatSetHVACMode(t *testing.T) {
	api := newFakeAPI(livingRoom())
	thermostat := NewThermostat(livingRoom(), api, "abc")

	thermostat.SetHVACMode(context.Background(), climate.HVACModeOff)
	thermostat.SetHVACMode(context.Background(), climate.HVACModeHeat)
	thermostat.SetHVACMode(context.Background(), climate.HVACMode("cool"))

	want := []setZoneCall{{1, false}, {1, true}, {1, false}}
	if len(api.setZones) != len(want) {
		t.Fatalf("unexpected calls: %v", api.setZones)
	}
	for i := range want {
		if api.setZones[i] != want[i] {
			t.Fatalf("call %d: got %v, want %v", i, api.setZones[i], want[i])
		}
	}
	if thermostat.State().HVACMode != climate.HVACModeHeat {
		t.Fatalf("cached mode should only change on refresh")
	}
}

func TestThermostatSetTemperature(t *testing.T) {
	api := newFakeAPI(livingRoom())
	thermostat := NewThermostat(livingRoom(), api, "abc")

	thermostat.SetTemperature(context.Background(), nil)
	if len(api.setTemps) != 0 {
		t.Fatalf("nil temperature should not call the api")
	}

	target := 23.0
	thermostat.SetTemperature(context.Background(), &target)
	if len(api.setTemps) != 1 || api.setTemps[0] != (setTempCall{zoneID: 1, celsius: 23}) {
		t.Fatalf("unexpected calls: %v", api.setTemps)
	}
	if *thermostat.State().TargetTemperature != 21.5 {
		t.Fatalf("cached target should only change on refresh")
	}

	api.commandErr = errors.New("rejected")
	thermostat.SetTemperature(context.Background(), &target)
	if *thermostat.State().TargetTemperature != 21.5 {
		t.Fatalf("failed command should not change state")
	}
}

func TestSetupClimate(t *testing.T) {
	bedroom := livingRoom()
	bedroom.Zone.ID = 2
	bedroom.Description.Name = "Bedroom"
	api := newFakeAPI(bedroom, livingRoom())

	var added []climate.Entity
	if ok := SetupClimate(context.Background(), api, "abc", func(entities []climate.Entity) {
		added = append(added, entities...)
	}); !ok {
		t.Fatalf("expected setup to succeed")
	}
	if len(added) != 2 || added[0].UniqueID() != "abc_1" || added[1].UniqueID() != "abc_2" {
		t.Fatalf("unexpected entities: %v", added)
	}
}

func TestSetupClimateFailureRegistersNothing(t *testing.T) {
	api := newFakeAPI(livingRoom())
	api.zonesErr = errors.New("timeout")

	called := false
	if ok := SetupClimate(context.Background(), api, "abc", func([]climate.Entity) { called = true }); ok {
		t.Fatalf("expected setup to fail")
	}
	if called {
		t.Fatalf("no entities should be registered on failure")
	}
}
