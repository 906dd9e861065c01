/*
 * Alert:
 * Rate limited threshold checks over the current readings
 */

package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/sensor"
)

type Kind string

const (
	HighTemperature Kind = "high_temperature"
	LowTemperature  Kind = "low_temperature"
	LowSoilMoisture Kind = "low_soil_moisture"
)

type Event struct {
	ID        string    `json:"id" msgpack:"id"`
	Kind      Kind      `json:"kind" msgpack:"kind"`
	Value     float64   `json:"value" msgpack:"value"`
	Threshold float64   `json:"threshold" msgpack:"threshold"`
	Time      time.Time `json:"time" msgpack:"time"`
	Message   string    `json:"message" msgpack:"message"`
}

type Thresholds struct {
	TemperatureHigh float64
	TemperatureLow  float64
	SoilMoistureLow float64
}

func ThresholdsFrom(config *configmanager.Config) Thresholds {
	return Thresholds{
		TemperatureHigh: config.Alerts.TemperatureHigh,
		TemperatureLow:  config.Alerts.TemperatureLow,
		SoilMoistureLow: config.Alerts.SoilMoistureLow,
	}
}

type Evaluator struct {
	thresholds Thresholds
	interval   time.Duration // Minimum time between two emitting evaluations
	lastEmit   time.Time
	emitted    bool
	newID      func() string
}

func NewEvaluator(thresholds Thresholds, interval time.Duration) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		interval:   interval,
		newID:      uuid.NewString,
	}
}

func (e *Evaluator) SetThresholds(thresholds Thresholds) {
	e.thresholds = thresholds
}

func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

/*
 * Evaluate checks all thresholds and returns one event per violated threshold.
 * Nothing is returned while the previous emitting evaluation is less than
 * interval ago, no matter how many thresholds are violated.
 * Unavailable readings never trigger.
 */
func (e *Evaluator) Evaluate(reading sensor.Reading, now time.Time) []Event {
	if e.emitted && now.Sub(e.lastEmit) < e.interval {
		return nil
	}

	var events []Event

	if t := reading.Temperature; t != nil {
		if *t > e.thresholds.TemperatureHigh {
			events = append(events, e.event(HighTemperature, *t, e.thresholds.TemperatureHigh, now,
				fmt.Sprintf("High temperature %.1f°C (threshold: %.1f°C)", *t, e.thresholds.TemperatureHigh)))
		} else if *t < e.thresholds.TemperatureLow {
			events = append(events, e.event(LowTemperature, *t, e.thresholds.TemperatureLow, now,
				fmt.Sprintf("Low temperature %.1f°C (threshold: %.1f°C)", *t, e.thresholds.TemperatureLow)))
		}
	}

	if s := reading.SoilMoisture; s != nil && *s < e.thresholds.SoilMoistureLow {
		events = append(events, e.event(LowSoilMoisture, *s, e.thresholds.SoilMoistureLow, now,
			fmt.Sprintf("Low soil moisture %.0f%% (threshold: %.0f%%)", *s, e.thresholds.SoilMoistureLow)))
	}

	if len(events) > 0 {
		e.lastEmit = now
		e.emitted = true
	}
	return events
}

// Reset clears the rate limit.
func (e *Evaluator) Reset() {
	e.emitted = false
	e.lastEmit = time.Time{}
}

func (e *Evaluator) event(kind Kind, value, threshold float64, now time.Time, message string) Event {
	return Event{
		ID:        e.newID(),
		Kind:      kind,
		Value:     value,
		Threshold: threshold,
		Time:      now,
		Message:   message,
	}
}
