/*
 * Registry:
 * Keeps last known value, availability and last read time per logical sensor
 */

package registry

import (
	"time"
)

type SensorInfo struct {
	Name      string    `json:"name" msgpack:"name"`
	Unit      string    `json:"unit" msgpack:"unit"`
	Enabled   bool      `json:"enabled" msgpack:"enabled"`
	Available bool      `json:"available" msgpack:"available"`
	LastValue float64   `json:"last_value" msgpack:"last_value"`
	LastRead  time.Time `json:"last_read" msgpack:"last_read"` // Zero until the first valid reading
}

// Registry holds sensors in registration order.
type Registry struct {
	sensors []SensorInfo
	index   map[string]int
}

func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a sensor. Registering a known name updates unit and enabled flag.
func (r *Registry) Register(name, unit string, enabled bool) {
	if i, ok := r.index[name]; ok {
		r.sensors[i].Unit = unit
		r.sensors[i].Enabled = enabled
		return
	}
	r.index[name] = len(r.sensors)
	r.sensors = append(r.sensors, SensorInfo{Name: name, Unit: unit, Enabled: enabled})
}

/*
 * Update records the outcome of one read.
 * A failed read marks the sensor unavailable but keeps its last known value.
 * Unknown or disabled sensors are ignored.
 */
func (r *Registry) Update(name string, value *float64, now time.Time) {
	i, ok := r.index[name]
	if !ok || !r.sensors[i].Enabled {
		return
	}

	if value == nil {
		r.sensors[i].Available = false
		return
	}

	r.sensors[i].Available = true
	r.sensors[i].LastValue = *value
	r.sensors[i].LastRead = now
}

func (r *Registry) Get(name string) (SensorInfo, bool) {
	i, ok := r.index[name]
	if !ok {
		return SensorInfo{}, false
	}
	return r.sensors[i], true
}

func (r *Registry) Enabled(name string) bool {
	info, ok := r.Get(name)
	return ok && info.Enabled
}

// AnyAvailable reports whether at least one sensor delivered a valid value on its last read.
func (r *Registry) AnyAvailable() bool {
	for _, s := range r.sensors {
		if s.Available {
			return true
		}
	}
	return false
}

// Snapshot returns a copy in registration order.
func (r *Registry) Snapshot() []SensorInfo {
	out := make([]SensorInfo, len(r.sensors))
	copy(out, r.sensors)
	return out
}

// Reset marks every sensor unavailable and forgets values. Registrations are kept.
func (r *Registry) Reset() {
	for i := range r.sensors {
		r.sensors[i].Available = false
		r.sensors[i].LastValue = 0
		r.sensors[i].LastRead = time.Time{}
	}
}
