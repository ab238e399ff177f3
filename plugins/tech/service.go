package tech

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/gohome-tech/internal/climate"
	"github.com/joshp123/gohome-tech/internal/rpc"
)

const ServiceName = "gohome.plugins.tech.v1.TechService"

// ZoneSummary is the wire form of a thermostat in TechService responses.
type ZoneSummary struct {
	UniqueID           string              `json:"unique_id"`
	Module             string              `json:"module"`
	ZoneID             int                 `json:"zone_id"`
	Name               string              `json:"name"`
	TargetTemperature  *float64            `json:"target_temperature,omitempty"`
	CurrentTemperature *float64            `json:"current_temperature,omitempty"`
	CurrentHumidity    *int                `json:"current_humidity,omitempty"`
	HVACAction         *climate.HVACAction `json:"hvac_action,omitempty"`
	HVACMode           climate.HVACMode    `json:"hvac_mode"`
}

type ListZonesResponse struct {
	Zones []ZoneSummary `json:"zones"`
}

type SetTemperatureRequest struct {
	UniqueID           string   `json:"unique_id"`
	TemperatureCelsius *float64 `json:"temperature_celsius"`
}

type SetModeRequest struct {
	UniqueID string `json:"unique_id"`
	Mode     string `json:"mode"`
}

type CommandResponse struct {
	UniqueID string `json:"unique_id"`
	Status   string `json:"status"`
}

type service struct {
	integration *Integration
}

// TechService describes the gRPC surface of the plugin.
func TechService(integration *Integration) rpc.Service {
	s := &service{integration: integration}
	return rpc.Service{
		Package: "gohome.plugins.tech.v1",
		Name:    "TechService",
		Methods: []rpc.Method{
			{Name: "ListZones", Handler: s.listZones},
			{Name: "SetTemperature", Handler: s.setTemperature},
			{Name: "SetMode", Handler: s.setMode},
			{Name: "Refresh", Handler: s.refresh},
		},
	}
}

func RegisterTechService(server *grpc.Server, integration *Integration) error {
	return rpc.Register(server, TechService(integration))
}

func (s *service) listZones(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Encode(s.summaries())
}

func (s *service) setTemperature(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SetTemperatureRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.TemperatureCelsius == nil {
		return nil, status.Error(codes.InvalidArgument, "temperature_celsius is required")
	}
	t, err := s.lookup(in.UniqueID)
	if err != nil {
		return nil, err
	}

	t.SetTemperature(ctx, in.TemperatureCelsius)
	return rpc.Encode(CommandResponse{UniqueID: t.UniqueID(), Status: "accepted"})
}

func (s *service) setMode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SetModeRequest
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Mode == "" {
		return nil, status.Error(codes.InvalidArgument, "mode is required")
	}
	t, err := s.lookup(in.UniqueID)
	if err != nil {
		return nil, err
	}

	t.SetHVACMode(ctx, climate.ParseHVACMode(in.Mode))
	return rpc.Encode(CommandResponse{UniqueID: t.UniqueID(), Status: "accepted"})
}

func (s *service) refresh(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var wg sync.WaitGroup
	for _, t := range s.integration.Thermostats() {
		wg.Add(1)
		go func(t *Thermostat) {
			defer wg.Done()
			t.Update(ctx)
		}(t)
	}
	wg.Wait()
	return rpc.Encode(s.summaries())
}

func (s *service) lookup(uniqueID string) (*Thermostat, error) {
	if uniqueID == "" {
		return nil, status.Error(codes.InvalidArgument, "unique_id is required")
	}
	for _, t := range s.integration.Thermostats() {
		if t.UniqueID() == uniqueID {
			return t, nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "zone %q not found", uniqueID)
}

func (s *service) summaries() ListZonesResponse {
	resp := ListZonesResponse{Zones: []ZoneSummary{}}
	for _, t := range s.integration.Thermostats() {
		resp.Zones = append(resp.Zones, Summarize(t))
	}
	return resp
}

// Summarize converts a thermostat's cached state into its wire form.
func Summarize(t *Thermostat) ZoneSummary {
	state := t.State()
	return ZoneSummary{
		UniqueID:           state.UniqueID,
		Module:             t.ModuleUDID(),
		ZoneID:             t.ZoneID(),
		Name:               state.Name,
		TargetTemperature:  state.TargetTemperature,
		CurrentTemperature: state.CurrentTemperature,
		CurrentHumidity:    state.CurrentHumidity,
		HVACAction:         state.HVACAction,
		HVACMode:           state.HVACMode,
	}
}
