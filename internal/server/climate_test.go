package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-tech/internal/climate"
)

type recordingEntity struct {
	id    string
	temps []float64
	modes []climate.HVACMode
}

func (e *recordingEntity) UniqueID() string { return e.id }
func (e *recordingEntity) DeviceInfo() climate.DeviceInfo {
	return climate.DeviceInfo{Name: e.id, Manufacturer: "Tech"}
}
func (e *recordingEntity) Name() string { return e.id }
func (e *recordingEntity) TemperatureUnit() climate.TemperatureUnit { return climate.UnitCelsius }
func (e *recordingEntity) HVACModes() []climate.HVACMode {
	return []climate.HVACMode{climate.HVACModeHeat, climate.HVACModeOff}
}
func (e *recordingEntity) SupportedFeatures() climate.Feature { return climate.FeatureTargetTemperature }
func (e *recordingEntity) State() climate.State {
	target := 21.5
	return climate.State{UniqueID: e.id, Name: e.id, Unit: climate.UnitCelsius, TargetTemperature: &target, HVACMode: climate.HVACModeHeat}
}
func (e *recordingEntity) Update(context.Context) {}
func (e *recordingEntity) SetTemperature(_ context.Context, temperature *float64) {
	e.temps = append(e.temps, *temperature)
}
func (e *recordingEntity) SetHVACMode(_ context.Context, mode climate.HVACMode) {
	e.modes = append(e.modes, mode)
}

func newTestRouter(t *testing.T) (http.Handler, *recordingEntity) {
	t.Helper()
	registry := climate.NewRegistry()
	entity := &recordingEntity{id: "udid_1"}
	registry.Add("tech_udid")([]climate.Entity{entity})
	return NewRouter(nil, registry, prometheus.NewRegistry()), entity
}

func TestClimateListAndGet(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/climate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["unique_id"] != "udid_1" || list[0]["target_temperature"] != 21.5 {
		t.Fatalf("unexpected list: %v", list)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/climate/udid_1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/climate/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestClimateCommands(t *testing.T) {
	router, entity := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/climate/udid_1/temperature", strings.NewReader(`{"temperature":22.5}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(entity.temps) != 1 || entity.temps[0] != 22.5 {
		t.Fatalf("unexpected temperatures: %v", entity.temps)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/climate/udid_1/hvac_mode", strings.NewReader(`{"mode":"OFF"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(entity.modes) != 1 || entity.modes[0] != climate.HVACModeOff {
		t.Fatalf("unexpected modes: %v", entity.modes)
	}
}

func TestClimateCommandValidation(t *testing.T) {
	router, entity := newTestRouter(t)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing temperature", "/api/climate/udid_1/temperature", `{}`, http.StatusBadRequest},
		{"bad json", "/api/climate/udid_1/temperature", `{`, http.StatusBadRequest},
		{"missing mode", "/api/climate/udid_1/hvac_mode", `{"mode":""}`, http.StatusBadRequest},
		{"unknown entity", "/api/climate/nope/hvac_mode", `{"mode":"heat"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
	if len(entity.temps) != 0 || len(entity.modes) != 0 {
		t.Fatalf("expected no commands, got temps=%v modes=%v", entity.temps, entity.modes)
	}
}

func TestHealthAndDashboards(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/tech/missing.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown dashboard, got %d", rec.Code)
	}

	handler := DashboardsHandler(map[string][]byte{"/dashboards/tech/tech-overview.json": []byte(`{"title":"Tech"}`)})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/tech/tech-overview.json", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected dashboard response: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}
