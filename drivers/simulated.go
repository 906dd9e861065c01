package drivers

import (
	"math/rand"
	"sync"
)

// Simulator produces plausible greenhouse values as a random walk.
// Watering raises the simulated soil moisture, otherwise it slowly dries out.
type Simulator struct {
	mu           sync.Mutex
	rand         *rand.Rand
	temperature  float64
	pressure     float64
	light        float64
	soilRaw      float64
	disconnected bool

	MemoryRelay
}

func NewSimulator(soilDisconnected bool) *Simulator {
	return newSimulator(rand.NewSource(rand.Int63()), soilDisconnected)
}

func newSimulator(src rand.Source, soilDisconnected bool) *Simulator {
	return &Simulator{
		rand:         rand.New(src),
		temperature:  22,
		pressure:     1013,
		light:        8000,
		soilRaw:      2200,
		disconnected: soilDisconnected,
	}
}

func (s *Simulator) ReadTemperaturePressure() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = clamp(s.temperature+s.rand.NormFloat64()*0.1, 5, 40)
	s.pressure = clamp(s.pressure+s.rand.NormFloat64()*0.2, 950, 1050)
	return s.temperature, s.pressure, nil
}

func (s *Simulator) ReadLight() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.light = clamp(s.light+s.rand.NormFloat64()*200, 0, 60000)
	return s.light, nil
}

// ReadSoilRaw returns 0 while disconnected, like a floating ADC input
func (s *Simulator) ReadSoilRaw() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return 0, nil
	}
	if s.On() {
		s.soilRaw -= 40
	} else {
		s.soilRaw += 2
	}
	s.soilRaw = clamp(s.soilRaw+s.rand.NormFloat64()*5, 1000, 3200)
	return int(s.soilRaw), nil
}

// SetSoilDisconnected simulates pulling the soil probe
func (s *Simulator) SetSoilDisconnected(disconnected bool) {
	s.mu.Lock()
	s.disconnected = disconnected
	s.mu.Unlock()
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
