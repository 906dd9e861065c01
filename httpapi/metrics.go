package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// collector exports the current core state on every scrape.
type collector struct {
	core Core

	reading     *prometheus.Desc
	available   *prometheus.Desc
	watering    *prometheus.Desc
	autoEnabled *prometheus.Desc
	dailyTemp   *prometheus.Desc
	allTimeTemp *prometheus.Desc
	alerts      *prometheus.Desc
	uptime      *prometheus.Desc
}

func newCollector(core Core) *collector {
	device := prometheus.Labels{"device": core.Device()}
	return &collector{
		core: core,
		reading: prometheus.NewDesc("greenhouse_sensor_value",
			"Last reading per sensor in the sensor's unit.", []string{"sensor", "unit"}, device),
		available: prometheus.NewDesc("greenhouse_sensor_available",
			"1 if the sensor delivered a valid value on its last read.", []string{"sensor"}, device),
		watering: prometheus.NewDesc("greenhouse_watering_active",
			"1 while the pump relay is on.", []string{"state"}, device),
		autoEnabled: prometheus.NewDesc("greenhouse_watering_auto_enabled",
			"1 if automatic watering is enabled.", nil, device),
		dailyTemp: prometheus.NewDesc("greenhouse_daily_temperature_celsius",
			"Temperature statistics of the current daily window.", []string{"stat"}, device),
		allTimeTemp: prometheus.NewDesc("greenhouse_alltime_temperature_celsius",
			"All-time temperature statistics.", []string{"stat"}, device),
		alerts: prometheus.NewDesc("greenhouse_recent_alerts",
			"Number of remembered alerts.", nil, device),
		uptime: prometheus.NewDesc("greenhouse_uptime_seconds",
			"Seconds since the monitor started or was reset.", nil, device),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reading
	ch <- c.available
	ch <- c.watering
	ch <- c.autoEnabled
	ch <- c.dailyTemp
	ch <- c.allTimeTemp
	ch <- c.alerts
	ch <- c.uptime
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, info := range c.core.SensorRegistry() {
		if !info.Enabled {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, boolValue(info.Available), info.Name)
		if info.Available {
			ch <- prometheus.MustNewConstMetric(c.reading, prometheus.GaugeValue, info.LastValue, info.Name, info.Unit)
		}
	}

	status := c.core.CurrentStatus()
	if w := status.Watering; w != nil {
		ch <- prometheus.MustNewConstMetric(c.watering, prometheus.GaugeValue, boolValue(w.IsWatering), w.State.String())
		ch <- prometheus.MustNewConstMetric(c.autoEnabled, prometheus.GaugeValue, boolValue(w.AutoEnabled))
	}
	ch <- prometheus.MustNewConstMetric(c.alerts, prometheus.GaugeValue, float64(status.RecentAlerts))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.CounterValue, float64(status.UptimeSeconds))

	stats := c.core.Statistics()
	if stats.Daily.ReadingCount > 0 {
		ch <- prometheus.MustNewConstMetric(c.dailyTemp, prometheus.GaugeValue, stats.Daily.MinTemp, "min")
		ch <- prometheus.MustNewConstMetric(c.dailyTemp, prometheus.GaugeValue, stats.Daily.MaxTemp, "max")
		ch <- prometheus.MustNewConstMetric(c.dailyTemp, prometheus.GaugeValue, stats.Daily.Avg(), "avg")
	}
	if stats.AllTime.ReadingCount > 0 {
		ch <- prometheus.MustNewConstMetric(c.allTimeTemp, prometheus.GaugeValue, stats.AllTime.MinTemp, "min")
		ch <- prometheus.MustNewConstMetric(c.allTimeTemp, prometheus.GaugeValue, stats.AllTime.MaxTemp, "max")
		ch <- prometheus.MustNewConstMetric(c.allTimeTemp, prometheus.GaugeValue, stats.AllTime.Avg(), "avg")
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
