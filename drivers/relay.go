package drivers

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIORelay drives the pump relay through one GPIO output.
type GPIORelay struct {
	pin       gpio.PinOut
	activeLow bool
}

func OpenGPIORelay(name string, activeLow bool) (*GPIORelay, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("relay pin %q not found", name)
	}
	return &GPIORelay{pin: pin, activeLow: activeLow}, nil
}

func (r *GPIORelay) SetRelay(on bool) error {
	return r.pin.Out(level(on, r.activeLow))
}

func level(on, activeLow bool) gpio.Level {
	if activeLow {
		return gpio.Level(!on)
	}
	return gpio.Level(on)
}

// MemoryRelay only remembers its state.
type MemoryRelay struct {
	mu sync.Mutex
	on bool
}

func (r *MemoryRelay) SetRelay(on bool) error {
	r.mu.Lock()
	r.on = on
	r.mu.Unlock()
	return nil
}

func (r *MemoryRelay) On() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}
