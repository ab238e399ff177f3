package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joshp123/gohome-tech/internal/climate"
)

// ClimateAPI serves the registered climate entities over JSON.
type ClimateAPI struct {
	registry *climate.Registry
}

func NewClimateAPI(registry *climate.Registry) *ClimateAPI {
	return &ClimateAPI{registry: registry}
}

type entityView struct {
	climate.State
	HVACModes         []climate.HVACMode `json:"hvac_modes"`
	SupportedFeatures climate.Feature    `json:"supported_features"`
	Device            climate.DeviceInfo `json:"device"`
}

type temperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (a *ClimateAPI) RegisterRoutes(r chi.Router) {
	r.Get("/climate", a.handleList)
	r.Get("/climate/{id}", a.handleGet)
	r.Post("/climate/{id}/temperature", a.handleSetTemperature)
	r.Post("/climate/{id}/hvac_mode", a.handleSetMode)
}

func (a *ClimateAPI) handleList(w http.ResponseWriter, _ *http.Request) {
	entities := a.registry.List()
	out := make([]entityView, 0, len(entities))
	for _, entity := range entities {
		out = append(out, view(entity))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *ClimateAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	entity, ok := a.entity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view(entity))
}

func (a *ClimateAPI) handleSetTemperature(w http.ResponseWriter, r *http.Request) {
	entity, ok := a.entity(w, r)
	if !ok {
		return
	}

	var req temperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if req.Temperature == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "temperature is required"})
		return
	}

	entity.SetTemperature(r.Context(), req.Temperature)
	writeJSON(w, http.StatusAccepted, map[string]string{"unique_id": entity.UniqueID(), "status": "accepted"})
}

func (a *ClimateAPI) handleSetMode(w http.ResponseWriter, r *http.Request) {
	entity, ok := a.entity(w, r)
	if !ok {
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if req.Mode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode is required"})
		return
	}

	entity.SetHVACMode(r.Context(), climate.ParseHVACMode(req.Mode))
	writeJSON(w, http.StatusAccepted, map[string]string{"unique_id": entity.UniqueID(), "status": "accepted"})
}

func (a *ClimateAPI) entity(w http.ResponseWriter, r *http.Request) (climate.Entity, bool) {
	id := chi.URLParam(r, "id")
	entity, ok := a.registry.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not found"})
		return nil, false
	}
	return entity, true
}

func view(entity climate.Entity) entityView {
	return entityView{
		State:             entity.State(),
		HVACModes:         entity.HVACModes(),
		SupportedFeatures: entity.SupportedFeatures(),
		Device:            entity.DeviceInfo(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
