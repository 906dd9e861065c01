package monitor

import (
	"fmt"
	"time"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/history"
	"thomas-leister.de/greenhouse/registry"
	"thomas-leister.de/greenhouse/sensor"
	"thomas-leister.de/greenhouse/statistics"
	"thomas-leister.de/greenhouse/watering"
)

// Status is the combined view served as the device overview.
type Status struct {
	Device           string           `json:"device" msgpack:"device"`
	Readings         sensor.Reading   `json:"readings" msgpack:"readings"`
	SoilLevel        string           `json:"soil_level" msgpack:"soil_level"`
	TemperatureLevel string           `json:"temperature_level" msgpack:"temperature_level"`
	Watering         *watering.Status `json:"watering" msgpack:"watering"` // nil without watering hardware
	RecentAlerts     int              `json:"recent_alerts" msgpack:"recent_alerts"`
	UptimeSeconds    int64            `json:"uptime_seconds" msgpack:"uptime_seconds"`
	Time             time.Time        `json:"time" msgpack:"time"`
}

// CalibrationStatus is the observed raw soil range plus suggested calibration values.
type CalibrationStatus struct {
	sensor.Calibration
	SuggestedDryRaw int  `json:"suggested_dry_raw" msgpack:"suggested_dry_raw"`
	SuggestedWetRaw int  `json:"suggested_wet_raw" msgpack:"suggested_wet_raw"`
	SuggestionValid bool `json:"suggestion_valid" msgpack:"suggestion_valid"`
}

// HistoryView holds the history records, oldest first, and their temperature window.
type HistoryView struct {
	Records         []sensor.Reading `json:"records" msgpack:"records"`
	Window          history.Window   `json:"window" msgpack:"window"`
	Capacity        int              `json:"capacity" msgpack:"capacity"`
	IntervalSeconds float64          `json:"interval_seconds" msgpack:"interval_seconds"`
}

func (m *Monitor) Device() string {
	return m.device
}

func (m *Monitor) CurrentReadings() sensor.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

func (m *Monitor) SensorRegistry() []registry.SensorInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Snapshot()
}

func (m *Monitor) History() HistoryView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return HistoryView{
		Records:         m.history.ReadAll(),
		Window:          m.history.Window(),
		Capacity:        m.history.Capacity(),
		IntervalSeconds: m.history.Interval().Seconds(),
	}
}

func (m *Monitor) Statistics() statistics.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statistics.Snapshot()
}

// WateringState returns false if no watering controller is configured.
func (m *Monitor) WateringState() (watering.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.watering == nil {
		return watering.Status{}, false
	}
	return m.watering.Status(), true
}

func (m *Monitor) RequestManualWatering() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watering == nil {
		return ErrWateringDisabled
	}
	return m.watering.RequestManual(m.clock.Now())
}

func (m *Monitor) SetAutoWateringConfig(enabled bool, minThreshold, maxThreshold float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watering == nil {
		return ErrWateringDisabled
	}
	return m.watering.SetAutoConfig(enabled, minThreshold, maxThreshold)
}

func (m *Monitor) Calibration() CalibrationStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := CalibrationStatus{Calibration: m.calibration}
	status.SuggestedDryRaw, status.SuggestedWetRaw, status.SuggestionValid = m.calibration.Suggest()
	return status
}

// RecentAlerts returns the last alerts, most recent first.
func (m *Monitor) RecentAlerts() []alert.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]alert.Event, len(m.recentAlerts))
	copy(out, m.recentAlerts)
	return out
}

func (m *Monitor) AlertThresholds() alert.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts.Thresholds()
}

func (m *Monitor) CurrentStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.clock.Now()
	status := Status{
		Device:           m.device,
		Readings:         m.current.Clone(),
		SoilLevel:        m.soilLevel.Level(),
		TemperatureLevel: m.tempLevel.Level(),
		RecentAlerts:     len(m.recentAlerts),
		UptimeSeconds:    int64(now.Sub(m.started).Seconds()),
		Time:             now,
	}
	if m.watering != nil {
		s := m.watering.Status()
		status.Watering = &s
	}
	return status
}

/*
 * Reload applies the runtime tunable parts of a new configuration:
 * alert thresholds, watering thresholds, level tables and soil calibration.
 * Nothing is changed if the watering thresholds are invalid.
 */
func (m *Monitor) Reload(config *configmanager.Config) error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watering != nil {
		if err := m.watering.SetAutoConfig(config.Watering.AutoEnabled, config.Watering.MinThreshold, config.Watering.MaxThreshold); err != nil {
			return fmt.Errorf("could not reload watering config: %w", err)
		}
	}

	m.alerts.SetThresholds(alert.ThresholdsFrom(config))
	m.alertsEnabled = config.Alerts.Enabled
	m.soilLevel.Reload(config.Levels.Soil, config.Levels.HysteresisMargin)
	m.tempLevel.Reload(config.Levels.Temperature, config.Levels.HysteresisMargin)
	if m.normalizer != nil {
		m.normalizer.SetCalibration(config.Soil.DryRaw, config.Soil.WetRaw)
	}
	m.calibration.DryRaw = config.Soil.DryRaw
	m.calibration.WetRaw = config.Soil.WetRaw
	m.calibration.Inverted = config.Soil.DryRaw > config.Soil.WetRaw
	return nil
}

// Reset drops all runtime state and statistics and switches watering off. Configuration is kept.
func (m *Monitor) Reset() {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.normalizer != nil {
		m.normalizer.Reset()
	}
	m.current = sensor.Reading{}
	m.registry.Reset()
	m.history.Reset()
	m.alerts.Reset()
	m.recentAlerts = nil
	if m.watering != nil {
		m.watering.Reset()
	}
	m.statistics.Reset(now)
	m.calibration = sensor.NewCalibration(m.calibration.DryRaw, m.calibration.WetRaw)
	m.soilLevel.Reset()
	m.tempLevel.Reset()
	m.started = now
	m.published = false
}
