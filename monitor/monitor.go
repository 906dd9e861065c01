/*
 * Monitor:
 * Owns the complete greenhouse state and runs the control loop:
 * read sensors -> normalize soil -> registry -> history -> alerts -> watering -> statistics
 */

package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/drivers"
	"thomas-leister.de/greenhouse/history"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/quantifier"
	"thomas-leister.de/greenhouse/registry"
	"thomas-leister.de/greenhouse/sensor"
	"thomas-leister.de/greenhouse/statistics"
	"thomas-leister.de/greenhouse/watering"
)

var ErrWateringDisabled = errors.New("watering is not enabled")

const shutdownDeliveryTimeout = 5 * time.Second

type units struct {
	name string
	unit string
}

var sensorUnits = []units{
	{sensor.Temperature, "°C"},
	{sensor.Pressure, "hPa"},
	{sensor.Light, "lx"},
	{sensor.Soil, "%"},
}

type Monitor struct {
	device  string
	enabled map[string]bool
	climate sensor.TemperaturePressureReader
	light   sensor.LightReader
	store   statistics.Store

	clock     Clock
	sleep     func(time.Duration)
	publisher Publisher
	notifier  Notifier
	heartbeat Heartbeat

	// Publishing and notifications run on their own goroutine
	outbox         chan delivery
	pending        sync.WaitGroup
	publishTimeout time.Duration

	// tickMu serializes ticks, reloads and resets. Always taken before mu.
	tickMu     sync.Mutex
	normalizer *sensor.Normalizer

	// mu guards everything below
	mu            sync.RWMutex
	minValidTemp  float64
	maxValidTemp  float64
	alertsEnabled bool
	alertLimit    int
	publishEvery  time.Duration

	current      sensor.Reading
	registry     *registry.Registry
	history      *history.Buffer
	alerts       *alert.Evaluator
	recentAlerts []alert.Event // Most recent first
	watering     *watering.Controller
	statistics   *statistics.Aggregator
	calibration  sensor.Calibration
	soilLevel    *quantifier.Quantifier
	tempLevel    *quantifier.Quantifier

	started     time.Time
	lastPublish time.Time
	published   bool
}

func New(config *configmanager.Config, devices *drivers.Set, store statistics.Store, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		device:  config.Device.Name,
		climate: devices.Climate,
		light:   devices.Light,
		store:   store,
		clock:   systemClock{},
		enabled: map[string]bool{
			sensor.Temperature: config.Sensors.Temperature && devices.Climate != nil,
			sensor.Pressure:    config.Sensors.Pressure && devices.Climate != nil,
			sensor.Light:       config.Sensors.Light && devices.Light != nil,
			sensor.Soil:        config.Sensors.Soil && devices.Soil != nil,
		},
		minValidTemp:  config.Temperature.MinValid,
		maxValidTemp:  config.Temperature.MaxValid,
		alertsEnabled: config.Alerts.Enabled,
		alertLimit:    config.Alerts.RecentAlertsLimit,
		publishEvery:  config.Publish.Interval,

		outbox:         make(chan delivery, outboxSize),
		publishTimeout: config.Publish.Timeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.publisher != nil || m.notifier != nil {
		go m.deliverLoop()
	}
	now := m.clock.Now()
	m.started = now

	if m.enabled[sensor.Soil] {
		m.normalizer = sensor.NewNormalizer(devices.Soil, sensor.NormalizerConfigFrom(config))
		if m.sleep != nil {
			m.normalizer.SetSleep(m.sleep)
		}
	}
	m.calibration = sensor.NewCalibration(config.Soil.DryRaw, config.Soil.WetRaw)

	m.registry = registry.New()
	for _, s := range sensorUnits {
		m.registry.Register(s.name, s.unit, m.enabled[s.name])
	}

	m.history = history.New(config.History.Capacity, config.History.Interval, config.Temperature.MinValid, config.Temperature.MaxValid)
	m.alerts = alert.NewEvaluator(alert.ThresholdsFrom(config), config.Alerts.Interval)
	m.soilLevel = quantifier.New(sensor.Soil, config.Levels.Soil, config.Levels.HysteresisMargin)
	m.tempLevel = quantifier.New(sensor.Temperature, config.Levels.Temperature, config.Levels.HysteresisMargin)

	if config.Watering.Enabled {
		if devices.Relay == nil {
			return nil, errors.New("watering enabled but no relay available")
		}
		controller, err := watering.New(watering.ConfigFrom(config), devices.Relay)
		if err != nil {
			return nil, err
		}
		m.watering = controller
	}

	m.statistics = statistics.New(statistics.ConfigFrom(config), store, now)
	if err := m.statistics.Load(now); err != nil {
		// Not fatal. Start with fresh statistics.
		log.Errorf("Monitor: %v", err)
	}

	log.Infof("Monitor: Initialized %q (temperature %t, pressure %t, light %t, soil %t, watering %t)",
		m.device, m.enabled[sensor.Temperature], m.enabled[sensor.Pressure], m.enabled[sensor.Light],
		m.enabled[sensor.Soil], m.watering != nil)
	return m, nil
}

// Run ticks every interval until ctx is cancelled, then saves the statistics and stops watering
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Shutdown persists the statistics and switches the relay off.
func (m *Monitor) Shutdown() {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if !m.waitDeliveries(shutdownDeliveryTimeout) {
		log.Warnf("Monitor: Pending deliveries not finished after %s", shutdownDeliveryTimeout)
	}

	m.mu.Lock()
	if m.watering != nil {
		m.watering.Reset()
	}
	snapshot := m.statistics.Snapshot()
	m.statistics.MarkPersisted(m.clock.Now())
	m.mu.Unlock()

	if err := statistics.Save(m.store, snapshot); err != nil {
		log.Errorf("Monitor: Final save failed: %v", err)
		return
	}
	log.Infof("Monitor: Statistics saved")
}

type levelChange struct {
	direction int
	level     quantifier.QuantificationLevel
	value     float64
}

/*
 * Tick runs one control loop iteration.
 * Sensor I/O happens before the state lock is taken, persistence after it is
 * released. Publishing and notifications are queued and never block the loop.
 */
func (m *Monitor) Tick(ctx context.Context) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	now := m.clock.Now()
	reading, soilRaw := m.read(now)

	m.mu.Lock()
	m.current = reading

	m.registry.Update(sensor.Temperature, reading.Temperature, now)
	m.registry.Update(sensor.Pressure, reading.Pressure, now)
	m.registry.Update(sensor.Light, reading.Light, now)
	m.registry.Update(sensor.Soil, reading.SoilMoisture, now)
	if soilRaw > 0 {
		m.calibration.Observe(soilRaw)
	}

	if m.history.Append(reading, now) {
		log.Debugf("Monitor: History record stored (%d/%d)", m.history.Len(), m.history.Capacity())
	}

	var events []alert.Event
	if m.alertsEnabled {
		events = m.alerts.Evaluate(reading, now)
		m.rememberAlerts(events)
	}

	if m.watering != nil {
		m.watering.Update(reading.SoilMoisture, now)
	}

	if reading.Temperature != nil {
		m.statistics.Record(*reading.Temperature, now)
	} else {
		m.statistics.MaybeRollDaily(now)
	}

	var soilChange *levelChange
	if s := reading.SoilMoisture; s != nil {
		direction, level, err := m.soilLevel.EvaluateValue(*s)
		if err != nil {
			log.Warnf("Monitor: %v", err)
		} else if direction != 0 || !m.soilLevel.HistoryExists() {
			soilChange = &levelChange{direction: direction, level: level, value: *s}
		}
	}
	if t := reading.Temperature; t != nil {
		if _, _, err := m.tempLevel.EvaluateValue(*t); err != nil {
			log.Warnf("Monitor: %v", err)
		}
	}

	var persist *statistics.Snapshot
	if m.statistics.Dirty() && m.statistics.PersistDue(now) {
		s := m.statistics.Snapshot()
		persist = &s
		m.statistics.MarkPersisted(now)
	}

	publish := m.publisher != nil && (!m.published || now.Sub(m.lastPublish) >= m.publishEvery)
	if publish {
		m.published = true
		m.lastPublish = now
	}

	alive := m.registry.AnyAvailable()
	m.mu.Unlock()

	if persist != nil {
		if err := statistics.Save(m.store, *persist); err != nil {
			log.Errorf("Monitor: %v", err)
			m.mu.Lock()
			m.statistics.MarkDirty()
			m.mu.Unlock()
		}
	}

	d := delivery{ctx: ctx}
	if publish {
		r := reading.Clone()
		d.reading = &r
	}
	if m.notifier != nil {
		d.events = events
		d.soilChange = soilChange
	}
	m.enqueue(d)

	if alive && m.heartbeat != nil {
		m.heartbeat.Reset()
	}
}

// read queries all enabled sensors. It returns the reading and the spike damped raw soil value (0 if unavailable).
func (m *Monitor) read(now time.Time) (sensor.Reading, int) {
	reading := sensor.Reading{Timestamp: now.Unix()}

	if m.enabled[sensor.Temperature] || m.enabled[sensor.Pressure] {
		temp, pressure, err := m.climate.ReadTemperaturePressure()
		if err != nil {
			log.Warnf("Monitor: Temperature / pressure read failed: %v", err)
		} else {
			if m.enabled[sensor.Temperature] {
				if temp < m.minValidTemp || temp > m.maxValidTemp {
					log.Warnf("Monitor: Temperature %.1f°C out of range, ignored", temp)
				} else {
					reading.Temperature = sensor.Float(temp)
				}
			}
			if m.enabled[sensor.Pressure] {
				reading.Pressure = sensor.Float(pressure)
			}
		}
	}

	if m.enabled[sensor.Light] {
		lux, err := m.light.ReadLight()
		if err != nil {
			log.Warnf("Monitor: Light read failed: %v", err)
		} else {
			reading.Light = sensor.Float(lux)
		}
	}

	soilRaw := 0
	if m.normalizer != nil {
		if percent, ok := m.normalizer.Normalize(); ok {
			reading.SoilMoisture = sensor.Float(percent)
			soilRaw = m.normalizer.History.LastRaw
		} else {
			log.Warnf("Monitor: Soil moisture unavailable")
		}
	}

	return reading, soilRaw
}

func (m *Monitor) rememberAlerts(events []alert.Event) {
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		log.Infow("Monitor: Alert", "kind", event.Kind, "value", event.Value, "threshold", event.Threshold)
	}

	merged := make([]alert.Event, 0, len(events)+len(m.recentAlerts))
	merged = append(merged, events...)
	merged = append(merged, m.recentAlerts...)
	if m.alertLimit > 0 && len(merged) > m.alertLimit {
		merged = merged[:m.alertLimit]
	}
	m.recentAlerts = merged
}
