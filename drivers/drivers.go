/*
 * Drivers:
 * Hardware access for the climate, light and soil sensors and the pump relay.
 * "periph" talks to the real I2C / GPIO devices, "simulated" generates values
 */

package drivers

import (
	"fmt"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/sensor"
	"thomas-leister.de/greenhouse/watering"
)

// Set bundles all device handles the monitor needs.
type Set struct {
	Climate sensor.TemperaturePressureReader
	Light   sensor.LightReader
	Soil    sensor.SoilReader
	Relay   watering.Relay

	close func() error
}

func (s *Set) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open initializes the driver set selected in the configuration
func Open(config *configmanager.Config) (*Set, error) {
	switch config.Drivers.Type {
	case configmanager.DriverSimulated:
		sim := NewSimulator(config.Drivers.SimulateSoilDisconnected)
		return &Set{Climate: sim, Light: sim, Soil: sim, Relay: sim}, nil
	case configmanager.DriverPeriph:
		hw, err := OpenHardware(config)
		if err != nil {
			return nil, err
		}
		relay, err := OpenGPIORelay(config.Drivers.RelayPin, config.Drivers.RelayActiveLow)
		if err != nil {
			hw.Close()
			return nil, err
		}
		return &Set{Climate: hw, Light: hw, Soil: hw, Relay: relay, close: hw.Close}, nil
	default:
		return nil, fmt.Errorf("unknown driver type %q", config.Drivers.Type)
	}
}
