package monitor

import (
	"context"
	"time"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/sensor"
)

const outboxSize = 32

// delivery is everything one tick hands to the publisher and notifier.
type delivery struct {
	ctx        context.Context
	reading    *sensor.Reading // nil if this tick does not publish
	events     []alert.Event
	soilChange *levelChange
}

func (d delivery) empty() bool {
	return d.reading == nil && len(d.events) == 0 && d.soilChange == nil
}

/*
 * enqueue hands d to the delivery goroutine without blocking.
 * A full queue means the publisher or notifier is stuck; d is dropped then.
 */
func (m *Monitor) enqueue(d delivery) {
	if d.empty() {
		return
	}
	m.pending.Add(1)
	select {
	case m.outbox <- d:
	default:
		m.pending.Done()
		log.Warnf("Monitor: Delivery queue full, dropping %d alert(s) and reading", len(d.events))
	}
}

func (m *Monitor) deliverLoop() {
	for d := range m.outbox {
		m.deliver(d)
		m.pending.Done()
	}
}

func (m *Monitor) deliver(d delivery) {
	if d.reading != nil && m.publisher != nil {
		ctx, cancel := context.WithTimeout(d.ctx, m.publishTimeout)
		if err := m.publisher.Publish(ctx, *d.reading); err != nil {
			log.Warnf("Monitor: Publish failed: %v", err)
		}
		cancel()
	}

	if m.notifier != nil {
		for _, event := range d.events {
			m.notifier.SendAlert(event)
		}
		if d.soilChange != nil {
			m.notifier.SendLevelChange(sensor.Soil, d.soilChange.direction, d.soilChange.level, d.soilChange.value)
		}
	}
}

// waitDeliveries waits until the queue is drained. It returns false on timeout.
func (m *Monitor) waitDeliveries(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
