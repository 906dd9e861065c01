package sensor

import (
	"errors"
)

// Logical sensor names used by the registry and the API
const (
	Temperature = "temperature"
	Pressure    = "pressure"
	Light       = "light"
	Soil        = "soil"
)

var ErrSensorDisabled = errors.New("sensor disabled")

// TemperaturePressureReader reads the combined temperature (°C) / pressure (hPa) sensor.
type TemperaturePressureReader interface {
	ReadTemperaturePressure() (float64, float64, error)
}

// LightReader reads illuminance in lux.
type LightReader interface {
	ReadLight() (float64, error)
}

// SoilReader reads one raw analog soil moisture sample.
type SoilReader interface {
	ReadSoilRaw() (int, error)
}

/*
 * Reading is one snapshot of all sensors, taken once per loop iteration.
 * A nil value means the sensor was unavailable for that tick.
 * Timestamp is unix time in seconds.
 */
type Reading struct {
	Temperature  *float64 `json:"temperature" msgpack:"temperature"`
	Pressure     *float64 `json:"pressure" msgpack:"pressure"`
	Light        *float64 `json:"light" msgpack:"light"`
	SoilMoisture *float64 `json:"soil_moisture" msgpack:"soil_moisture"`
	Timestamp    int64    `json:"timestamp" msgpack:"timestamp"`
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}

// Clone returns a deep copy so snapshots never share pointers with live state.
func (r Reading) Clone() Reading {
	return Reading{
		Temperature:  clonePtr(r.Temperature),
		Pressure:     clonePtr(r.Pressure),
		Light:        clonePtr(r.Light),
		SoilMoisture: clonePtr(r.SoilMoisture),
		Timestamp:    r.Timestamp,
	}
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}
