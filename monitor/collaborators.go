package monitor

import (
	"context"
	"time"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/quantifier"
	"thomas-leister.de/greenhouse/sensor"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Publisher forwards readings to a cloud backend.
type Publisher interface {
	Publish(ctx context.Context, reading sensor.Reading) error
}

// Notifier delivers alerts and level changes to the user.
type Notifier interface {
	SendAlert(event alert.Event)
	SendLevelChange(metric string, direction int, level quantifier.QuantificationLevel, value float64)
}

// Heartbeat is reset on every tick with at least one available sensor.
type Heartbeat interface {
	Reset()
}

type Option func(*Monitor)

func WithClock(clock Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(m *Monitor) {
		m.publisher = publisher
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(m *Monitor) {
		m.notifier = notifier
	}
}

func WithHeartbeat(heartbeat Heartbeat) Option {
	return func(m *Monitor) {
		m.heartbeat = heartbeat
	}
}

// WithSleep replaces the pause between soil samples.
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Monitor) {
		m.sleep = sleep
	}
}
