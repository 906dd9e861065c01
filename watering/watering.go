/*
 * Watering:
 * Hysteresis state machine driving the watering relay from soil moisture
 */

package watering

import (
	"errors"
	"fmt"
	"time"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

var (
	ErrInvalidThresholds = errors.New("watering thresholds must satisfy 0 <= min < max <= 100")
	ErrAlreadyWatering   = errors.New("manual watering already running")
)

type State int

const (
	Idle State = iota
	ManualWatering
	AutoWatering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case ManualWatering:
		return "MANUAL_WATERING"
	case AutoWatering:
		return "AUTO_WATERING"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Relay is the watering actuator. There is no feedback: the commanded state is trusted.
type Relay interface {
	SetRelay(on bool) error
}

type Config struct {
	AutoEnabled    bool
	MinThreshold   float64 // Start auto watering below this moisture (%)
	MaxThreshold   float64 // Stop auto watering at or above this moisture (%)
	ManualDuration time.Duration
}

func ConfigFrom(config *configmanager.Config) Config {
	return Config{
		AutoEnabled:    config.Watering.AutoEnabled,
		MinThreshold:   config.Watering.MinThreshold,
		MaxThreshold:   config.Watering.MaxThreshold,
		ManualDuration: config.Watering.ManualDuration,
	}
}

// Status is the read-only view of the controller.
type Status struct {
	State             State     `json:"state" msgpack:"state"`
	IsWatering        bool      `json:"is_watering" msgpack:"is_watering"`
	AutoEnabled       bool      `json:"auto_enabled" msgpack:"auto_enabled"`
	MinThreshold      float64   `json:"min_threshold" msgpack:"min_threshold"`
	MaxThreshold      float64   `json:"max_threshold" msgpack:"max_threshold"`
	ManualModeActive  bool      `json:"manual_mode_active" msgpack:"manual_mode_active"`
	WateringStartedAt time.Time `json:"watering_started_at" msgpack:"watering_started_at"` // Zero while idle
	ManualSeconds     float64   `json:"manual_duration_seconds" msgpack:"manual_duration_seconds"`
}

type Controller struct {
	relay     Relay
	config    Config
	state     State
	startedAt time.Time
}

func ValidateThresholds(min, max float64) error {
	if min < 0 || max > 100 || min >= max {
		return fmt.Errorf("%w (got %.1f / %.1f)", ErrInvalidThresholds, min, max)
	}
	return nil
}

// New returns an idle controller and switches the relay off.
func New(config Config, relay Relay) (*Controller, error) {
	if err := ValidateThresholds(config.MinThreshold, config.MaxThreshold); err != nil {
		return nil, err
	}

	c := &Controller{relay: relay, config: config, state: Idle}
	c.setRelay(false)
	log.Infof("Watering: Auto mode %t, thresholds %.0f%% / %.0f%%, manual duration %s",
		config.AutoEnabled, config.MinThreshold, config.MaxThreshold, config.ManualDuration)
	return c, nil
}

/*
 * RequestManual starts a manual watering cycle.
 * From AUTO_WATERING it takes over the running cycle (relay stays on, timer restarts).
 */
func (c *Controller) RequestManual(now time.Time) error {
	switch c.state {
	case ManualWatering:
		return ErrAlreadyWatering
	case Idle:
		c.setRelay(true)
	}

	log.Infof("Watering: %s -> %s", c.state, ManualWatering)
	c.state = ManualWatering
	c.startedAt = now
	return nil
}

// SetAutoConfig changes auto mode and thresholds. Invalid thresholds are rejected.
func (c *Controller) SetAutoConfig(enabled bool, min, max float64) error {
	if err := ValidateThresholds(min, max); err != nil {
		return err
	}
	c.config.AutoEnabled = enabled
	c.config.MinThreshold = min
	c.config.MaxThreshold = max
	log.Infof("Watering: Auto mode %t, thresholds %.0f%% / %.0f%%", enabled, min, max)
	return nil
}

/*
 * Update advances the state machine. soil is nil if the moisture is unavailable.
 * While manual watering runs, auto mode is suspended.
 */
func (c *Controller) Update(soil *float64, now time.Time) {
	switch c.state {
	case ManualWatering:
		if now.Sub(c.startedAt) >= c.config.ManualDuration {
			c.transition(Idle, now)
		}

	case AutoWatering:
		switch {
		case !c.config.AutoEnabled:
			log.Infof("Watering: Auto mode disabled during auto watering")
			c.transition(Idle, now)
		case soil == nil:
			log.Warnf("Watering: Soil moisture unavailable, stopping auto watering")
			c.transition(Idle, now)
		case *soil >= c.config.MaxThreshold:
			c.transition(Idle, now)
		}

	case Idle:
		if c.config.AutoEnabled && soil != nil && *soil < c.config.MinThreshold {
			c.transition(AutoWatering, now)
		}
	}
}

func (c *Controller) Status() Status {
	s := Status{
		State:            c.state,
		IsWatering:       c.state != Idle,
		AutoEnabled:      c.config.AutoEnabled,
		MinThreshold:     c.config.MinThreshold,
		MaxThreshold:     c.config.MaxThreshold,
		ManualModeActive: c.state == ManualWatering,
		ManualSeconds:    c.config.ManualDuration.Seconds(),
	}
	if s.IsWatering {
		s.WateringStartedAt = c.startedAt
	}
	return s
}

// Reset stops any watering and returns to IDLE. Configuration is kept.
func (c *Controller) Reset() {
	c.state = Idle
	c.startedAt = time.Time{}
	c.setRelay(false)
}

func (c *Controller) transition(to State, now time.Time) {
	log.Infof("Watering: %s -> %s", c.state, to)
	c.state = to
	if to == Idle {
		c.startedAt = time.Time{}
		c.setRelay(false)
		return
	}
	c.startedAt = now
	c.setRelay(true)
}

func (c *Controller) setRelay(on bool) {
	if err := c.relay.SetRelay(on); err != nil {
		log.Errorf("Watering: Could not switch relay to %t: %s", on, err)
	}
}
