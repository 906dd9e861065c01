package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thomas-leister.de/greenhouse/sensor"
)

var t0 = time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(Thresholds{TemperatureHigh: 30, TemperatureLow: 10, SoilMoistureLow: 20}, 30*time.Second)
}

func kinds(events []Event) []Kind {
	out := make([]Kind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestEvaluateRules(t *testing.T) {
	tests := []struct {
		name     string
		reading  sensor.Reading
		expected []Kind
	}{
		{"all normal", sensor.Reading{Temperature: sensor.Float(22), SoilMoisture: sensor.Float(50)}, []Kind{}},
		{"high temperature", sensor.Reading{Temperature: sensor.Float(31)}, []Kind{HighTemperature}},
		{"at high threshold", sensor.Reading{Temperature: sensor.Float(30)}, []Kind{}},
		{"low temperature", sensor.Reading{Temperature: sensor.Float(9.5)}, []Kind{LowTemperature}},
		{"temperature not read", sensor.Reading{SoilMoisture: sensor.Float(50)}, []Kind{}},
		{"low soil", sensor.Reading{Temperature: sensor.Float(22), SoilMoisture: sensor.Float(12)}, []Kind{LowSoilMoisture}},
		{"soil unavailable", sensor.Reading{Temperature: sensor.Float(22)}, []Kind{}},
		{"soil bone dry", sensor.Reading{SoilMoisture: sensor.Float(0)}, []Kind{LowSoilMoisture}},
		{"concurrent", sensor.Reading{Temperature: sensor.Float(35), SoilMoisture: sensor.Float(5)}, []Kind{HighTemperature, LowSoilMoisture}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEvaluator()
			assert.Equal(t, tc.expected, kinds(e.Evaluate(tc.reading, t0)))
		})
	}
}

func TestEvaluateRateLimit(t *testing.T) {
	e := newTestEvaluator()
	hot := sensor.Reading{Temperature: sensor.Float(35)}

	first := e.Evaluate(hot, t0)
	require.Len(t, first, 1)

	assert.Empty(t, e.Evaluate(hot, t0.Add(10*time.Second)))
	assert.Empty(t, e.Evaluate(hot, t0.Add(29*time.Second)))
	assert.Len(t, e.Evaluate(hot, t0.Add(30*time.Second)), 1)
}

func TestEvaluateQuietTicksDoNotArmLimit(t *testing.T) {
	e := newTestEvaluator()

	assert.Empty(t, e.Evaluate(sensor.Reading{Temperature: sensor.Float(20)}, t0))
	// Nothing was emitted, so a violation right after is reported
	assert.Len(t, e.Evaluate(sensor.Reading{Temperature: sensor.Float(35)}, t0.Add(time.Second)), 1)
}

func TestEventFields(t *testing.T) {
	e := newTestEvaluator()
	events := e.Evaluate(sensor.Reading{SoilMoisture: sensor.Float(12)}, t0)
	require.Len(t, events, 1)

	ev := events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 12.0, ev.Value)
	assert.Equal(t, 20.0, ev.Threshold)
	assert.Equal(t, t0, ev.Time)
	assert.Equal(t, "Low soil moisture 12% (threshold: 20%)", ev.Message)
}

func TestReset(t *testing.T) {
	e := newTestEvaluator()
	hot := sensor.Reading{Temperature: sensor.Float(35)}
	require.Len(t, e.Evaluate(hot, t0), 1)

	e.Reset()
	assert.Len(t, e.Evaluate(hot, t0.Add(time.Second)), 1)
}
