package drivers

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

// BH1750 commands
const (
	bh1750PowerOn        = 0x01
	bh1750ContinuousHRes = 0x10
)

// Hardware reads a BMP280 (temperature, pressure), a BH1750 (light)
// and an I2C soil moisture ADC on one bus.
type Hardware struct {
	bus     i2c.BusCloser
	climate *bmxx80.Dev
	light   *i2c.Dev
	soil    *i2c.Dev

	soilChannel uint8
}

func OpenHardware(config *configmanager.Config) (*Hardware, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(config.Drivers.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("could not open I2C bus %q: %w", config.Drivers.I2CBus, err)
	}

	hw := &Hardware{bus: bus, soilChannel: config.Drivers.SoilChannel}

	if config.Sensors.Temperature || config.Sensors.Pressure {
		hw.climate, err = bmxx80.NewI2C(bus, config.Drivers.BMP280Address, &bmxx80.DefaultOpts)
		if err != nil {
			// Keep running. The sensor is reported as unavailable.
			log.Errorf("Drivers: BMP280 at 0x%02x not found: %v", config.Drivers.BMP280Address, err)
			hw.climate = nil
		}
	}

	if config.Sensors.Light {
		hw.light = &i2c.Dev{Bus: bus, Addr: config.Drivers.BH1750Address}
		if err := hw.light.Tx([]byte{bh1750PowerOn}, nil); err != nil {
			log.Errorf("Drivers: BH1750 at 0x%02x not responding: %v", config.Drivers.BH1750Address, err)
		} else if err := hw.light.Tx([]byte{bh1750ContinuousHRes}, nil); err != nil {
			log.Errorf("Drivers: Could not start BH1750 measurement: %v", err)
		}
	}

	if config.Sensors.Soil {
		hw.soil = &i2c.Dev{Bus: bus, Addr: config.Drivers.SoilAddress}
	}

	log.Infof("Drivers: Opened I2C bus %s", bus)
	return hw, nil
}

// ReadTemperaturePressure returns °C and hPa
func (h *Hardware) ReadTemperaturePressure() (float64, float64, error) {
	if h.climate == nil {
		return 0, 0, errors.New("BMP280 not available")
	}
	var env physic.Env
	if err := h.climate.Sense(&env); err != nil {
		return 0, 0, err
	}
	return env.Temperature.Celsius(), float64(env.Pressure) / float64(100*physic.Pascal), nil
}

// ReadLight returns lux
func (h *Hardware) ReadLight() (float64, error) {
	if h.light == nil {
		return 0, errors.New("BH1750 not available")
	}
	read := make([]byte, 2)
	if err := h.light.Tx(nil, read); err != nil {
		return 0, err
	}
	return float64(binary.BigEndian.Uint16(read)) / 1.2, nil
}

// ReadSoilRaw returns the raw ADC value of the configured channel
func (h *Hardware) ReadSoilRaw() (int, error) {
	if h.soil == nil {
		return 0, errors.New("soil ADC not available")
	}
	write := []byte{0x20 + h.soilChannel}
	read := make([]byte, 2)
	if err := h.soil.Tx(write, read); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(read)), nil
}

func (h *Hardware) Close() error {
	if h.climate != nil {
		if err := h.climate.Halt(); err != nil {
			log.Warnf("Drivers: Could not halt BMP280: %v", err)
		}
	}
	return h.bus.Close()
}
