/*
 * History:
 * Fixed capacity ring buffer of periodic sensor snapshots for trend display
 */

package history

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"thomas-leister.de/greenhouse/sensor"
)

// Window holds temperature statistics over the records currently in the buffer.
type Window struct {
	Valid   bool    `json:"valid" msgpack:"valid"` // false if no record carries a plausible temperature
	MinTemp float64 `json:"min_temperature" msgpack:"min_temperature"`
	MaxTemp float64 `json:"max_temperature" msgpack:"max_temperature"`
	AvgTemp float64 `json:"avg_temperature" msgpack:"avg_temperature"`
	Samples int     `json:"samples" msgpack:"samples"`
}

type Buffer struct {
	records  []sensor.Reading
	head     int // Next write position
	count    int // Populated slots, <= capacity
	interval time.Duration

	lastAppend time.Time
	appended   bool

	// Temperatures outside this range are excluded from the window statistics
	minValidTemp float64
	maxValidTemp float64
	window       Window
}

func New(capacity int, interval time.Duration, minValidTemp, maxValidTemp float64) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		records:      make([]sensor.Reading, capacity),
		interval:     interval,
		minValidTemp: minValidTemp,
		maxValidTemp: maxValidTemp,
	}
}

// Due reports whether the append interval has elapsed since the last append.
func (b *Buffer) Due(now time.Time) bool {
	return !b.appended || now.Sub(b.lastAppend) >= b.interval
}

/*
 * Append stores a record if the append interval has elapsed.
 * Returns whether the record was stored.
 */
func (b *Buffer) Append(record sensor.Reading, now time.Time) bool {
	if !b.Due(now) {
		return false
	}

	b.records[b.head] = record.Clone()
	b.head = (b.head + 1) % len(b.records)
	if b.count < len(b.records) {
		b.count++
	}
	b.lastAppend = now
	b.appended = true

	b.recalcWindow()
	return true
}

// ReadAll returns the stored records, oldest first.
func (b *Buffer) ReadAll() []sensor.Reading {
	out := make([]sensor.Reading, 0, b.count)

	// Once wrapped, the oldest record sits at the write position
	start := 0
	if b.count == len(b.records) {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.records[(start+i)%len(b.records)].Clone())
	}
	return out
}

func (b *Buffer) Window() Window {
	return b.window
}

func (b *Buffer) Len() int {
	return b.count
}

func (b *Buffer) Capacity() int {
	return len(b.records)
}

func (b *Buffer) Interval() time.Duration {
	return b.interval
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	for i := range b.records {
		b.records[i] = sensor.Reading{}
	}
	b.head = 0
	b.count = 0
	b.appended = false
	b.lastAppend = time.Time{}
	b.window = Window{}
}

// Scan all valid entries. Implausible temperatures are skipped.
func (b *Buffer) recalcWindow() {
	temps := make([]float64, 0, b.count)
	for i := 0; i < b.count; i++ {
		t := b.records[i].Temperature
		if t == nil || *t < b.minValidTemp || *t > b.maxValidTemp {
			continue
		}
		temps = append(temps, *t)
	}

	if len(temps) == 0 {
		b.window = Window{}
		return
	}

	b.window = Window{
		Valid:   true,
		MinTemp: floats.Min(temps),
		MaxTemp: floats.Max(temps),
		AvgTemp: stat.Mean(temps, nil),
		Samples: len(temps),
	}
}
