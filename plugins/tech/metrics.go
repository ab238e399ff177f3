package tech

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-tech/internal/climate"
)

// MetricsCollector exports the cached thermostat state. It never calls the vendor API.
type MetricsCollector struct {
	integration *Integration

	currentTemp   *prometheus.GaugeVec
	targetTemp    *prometheus.GaugeVec
	humidity      *prometheus.GaugeVec
	heatingActive *prometheus.GaugeVec
	zoneOn        *prometheus.GaugeVec
	lastUpdated   *prometheus.GaugeVec
	zones         prometheus.Gauge
	failedEntries prometheus.Gauge
}

func NewMetricsCollector(integration *Integration) *MetricsCollector {
	labels := []string{"module", "zone_id", "zone_name"}
	return &MetricsCollector{
		integration: integration,
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tech_current_temperature_celsius",
			Help: "Current temperature per zone",
		}, labels),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tech_target_temperature_celsius",
			Help: "Target temperature per zone",
		}, labels),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tech_humidity_percent",
			Help: "Current humidity per zone",
		}, labels),
		heatingActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tech_heating_active_bool",
			Help: "Relay energized per zone (1=heating, 0=idle or off)",
		}, labels),
		zoneOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tech_zone_on_bool",
			Help: "Zone control loop active (1=heat, 0=off)",
		}, labels),
		lastUpdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_tech_zone_last_updated_timestamp_seconds",
			Help: "Last successful zone refresh (epoch seconds)",
		}, labels),
		zones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_tech_zones",
			Help: "Number of registered Tech zones",
		}),
		failedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_tech_failed_entries",
			Help: "Modules whose climate setup failed",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.currentTemp.Describe(ch)
	c.targetTemp.Describe(ch)
	c.humidity.Describe(ch)
	c.heatingActive.Describe(ch)
	c.zoneOn.Describe(ch)
	c.lastUpdated.Describe(ch)
	c.zones.Describe(ch)
	c.failedEntries.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.currentTemp.Reset()
	c.targetTemp.Reset()
	c.humidity.Reset()
	c.heatingActive.Reset()
	c.zoneOn.Reset()
	c.lastUpdated.Reset()

	thermostats := c.integration.Thermostats()
	for _, t := range thermostats {
		state := t.State()
		labels := prometheus.Labels{
			"module":    t.ModuleUDID(),
			"zone_id":   strconv.Itoa(t.ZoneID()),
			"zone_name": state.Name,
		}
		if state.CurrentTemperature != nil {
			c.currentTemp.With(labels).Set(*state.CurrentTemperature)
		}
		if state.TargetTemperature != nil {
			c.targetTemp.With(labels).Set(*state.TargetTemperature)
		}
		if state.CurrentHumidity != nil {
			c.humidity.With(labels).Set(float64(*state.CurrentHumidity))
		}
		if state.HVACAction != nil {
			c.heatingActive.With(labels).Set(boolToFloat(*state.HVACAction == climate.HVACActionHeating))
		}
		c.zoneOn.With(labels).Set(boolToFloat(state.HVACMode == climate.HVACModeHeat))
		if updated := t.UpdatedAt(); !updated.IsZero() {
			c.lastUpdated.With(labels).Set(float64(updated.Unix()))
		}
	}

	c.zones.Set(float64(len(thermostats)))
	c.failedEntries.Set(float64(len(c.integration.FailedEntries())))

	c.currentTemp.Collect(ch)
	c.targetTemp.Collect(ch)
	c.humidity.Collect(ch)
	c.heatingActive.Collect(ch)
	c.zoneOn.Collect(ch)
	c.lastUpdated.Collect(ch)
	c.zones.Collect(ch)
	c.failedEntries.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
