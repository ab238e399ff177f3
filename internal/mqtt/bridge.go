package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/joshp123/gohome-tech/internal/climate"
)

const (
	stateSuffix          = "state"
	setTemperatureSuffix = "set_temperature"
	setModeSuffix        = "set_hvac_mode"
)

// Bridge mirrors climate entities onto MQTT topics under a prefix:
// <prefix>/<unique_id>/state (retained), <prefix>/<unique_id>/set_temperature,
// and <prefix>/<unique_id>/set_hvac_mode.
type Bridge struct {
	client   ClientAPI
	registry *climate.Registry
	prefix   string
	ctx      context.Context
}

func NewBridge(client ClientAPI, registry *climate.Registry, prefix string) *Bridge {
	return &Bridge{
		client:   client,
		registry: registry,
		prefix:   strings.TrimSuffix(prefix, "/"),
		ctx:      context.Background(),
	}
}

// Start subscribes to the command topics. Commands run with ctx.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	for _, suffix := range []string{setTemperatureSuffix, setModeSuffix} {
		if err := b.client.Subscribe(b.prefix+"/+/"+suffix, b.handleCommand); err != nil {
			return fmt.Errorf("subscribe %s: %w", suffix, err)
		}
	}
	return nil
}

// PublishStates publishes the retained state of each entity. It fits climate.Poller.OnRefreshed.
func (b *Bridge) PublishStates(entities []climate.Entity) {
	for _, entity := range entities {
		payload, err := json.Marshal(entity.State())
		if err != nil {
			log.Printf("mqtt: encode state %s: %v", entity.UniqueID(), err)
			continue
		}
		if err := b.client.PublishWith(b.topic(entity.UniqueID(), stateSuffix), payload, true); err != nil {
			log.Printf("mqtt: publish state %s: %v", entity.UniqueID(), err)
		}
	}
}

func (b *Bridge) topic(uniqueID, suffix string) string {
	return b.prefix + "/" + uniqueID + "/" + suffix
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return
	}
	uniqueID, command, ok := strings.Cut(rest, "/")
	if !ok {
		return
	}

	entity, ok := b.registry.Get(uniqueID)
	if !ok {
		log.Printf("mqtt: command for unknown entity %s", uniqueID)
		return
	}

	switch command {
	case setTemperatureSuffix:
		temperature, err := parseTemperature(payload)
		if err != nil {
			log.Printf("mqtt: bad temperature for %s: %v", uniqueID, err)
			return
		}
		entity.SetTemperature(b.ctx, &temperature)
	case setModeSuffix:
		mode, err := parseMode(payload)
		if err != nil {
			log.Printf("mqtt: bad hvac mode for %s: %v", uniqueID, err)
			return
		}
		entity.SetHVACMode(b.ctx, climate.ParseHVACMode(mode))
	}
}

// parseTemperature accepts a bare finite number or {"temperature": n}.
func parseTemperature(payload []byte) (float64, error) {
	raw := strings.TrimSpace(string(payload))
	if value, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, fmt.Errorf("temperature %q is not finite", raw)
		}
		return value, nil
	}

	var body struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, err
	}
	if body.Temperature == nil {
		return 0, fmt.Errorf("temperature is required")
	}
	return *body.Temperature, nil
}

// parseMode accepts a bare mode string or {"mode": "heat"}.
func parseMode(payload []byte) (string, error) {
	raw := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", fmt.Errorf("mode is required")
		}
		return strings.Trim(raw, `"`), nil
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", err
	}
	if body.Mode == "" {
		return "", fmt.Errorf("mode is required")
	}
	return body.Mode, nil
}
