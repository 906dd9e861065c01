package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thomas-leister.de/greenhouse/sensor"
)

var t0 = time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)

func record(ts time.Time, temp *float64) sensor.Reading {
	return sensor.Reading{Temperature: temp, Pressure: sensor.Float(1013), Timestamp: ts.Unix()}
}

func TestAppendRateLimited(t *testing.T) {
	b := New(4, 5*time.Minute, -50, 100)

	assert.True(t, b.Append(record(t0, sensor.Float(20)), t0))
	assert.False(t, b.Append(record(t0, sensor.Float(21)), t0.Add(4*time.Minute)))
	assert.True(t, b.Append(record(t0, sensor.Float(22)), t0.Add(5*time.Minute)))
	assert.Equal(t, 2, b.Len())
}

func TestReadAllBeforeWrap(t *testing.T) {
	b := New(5, time.Minute, -50, 100)
	for i := 0; i < 3; i++ {
		ts := t0.Add(time.Duration(i) * time.Minute)
		require.True(t, b.Append(record(ts, sensor.Float(float64(i))), ts))
	}

	records := b.ReadAll()
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Minute).Unix(), r.Timestamp)
	}
}

func TestReadAllAfterWrap(t *testing.T) {
	const capacity = 6
	for _, k := range []int{1, 2, 5, capacity, capacity + 3} {
		b := New(capacity, time.Minute, -50, 100)
		for i := 0; i < capacity+k; i++ {
			ts := t0.Add(time.Duration(i) * time.Minute)
			require.True(t, b.Append(record(ts, sensor.Float(20)), ts))
		}

		records := b.ReadAll()
		require.Len(t, records, capacity, "k=%d", k)
		assert.Equal(t, t0.Add(time.Duration(k)*time.Minute).Unix(), records[0].Timestamp, "oldest survivor, k=%d", k)
		for i := 1; i < len(records); i++ {
			assert.Less(t, records[i-1].Timestamp, records[i].Timestamp, "k=%d", k)
		}
	}
}

func TestWindowExcludesAnomalies(t *testing.T) {
	b := New(10, time.Minute, -50, 100)
	temps := []*float64{sensor.Float(18), sensor.Float(150), nil, sensor.Float(24), sensor.Float(-80), sensor.Float(21)}
	for i, temp := range temps {
		ts := t0.Add(time.Duration(i) * time.Minute)
		require.True(t, b.Append(record(ts, temp), ts))
	}

	w := b.Window()
	require.True(t, w.Valid)
	assert.Equal(t, 18.0, w.MinTemp)
	assert.Equal(t, 24.0, w.MaxTemp)
	assert.InDelta(t, 21.0, w.AvgTemp, 0.0001)
	assert.Equal(t, 3, w.Samples)
}

func TestWindowFollowsEviction(t *testing.T) {
	b := New(2, time.Minute, -50, 100)
	for i, temp := range []float64{5, 30, 20} {
		ts := t0.Add(time.Duration(i) * time.Minute)
		b.Append(record(ts, sensor.Float(temp)), ts)
	}

	w := b.Window()
	assert.Equal(t, 20.0, w.MinTemp)
	assert.Equal(t, 30.0, w.MaxTemp)
}

func TestWindowWithoutTemperatures(t *testing.T) {
	b := New(3, time.Minute, -50, 100)
	b.Append(record(t0, nil), t0)
	assert.False(t, b.Window().Valid)
}

func TestReadAllReturnsCopies(t *testing.T) {
	b := New(3, time.Minute, -50, 100)
	b.Append(record(t0, sensor.Float(20)), t0)

	records := b.ReadAll()
	*records[0].Temperature = 99

	assert.Equal(t, 20.0, *b.ReadAll()[0].Temperature)
}

func TestReset(t *testing.T) {
	b := New(3, time.Hour, -50, 100)
	b.Append(record(t0, sensor.Float(20)), t0)
	b.Reset()

	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.ReadAll())
	assert.False(t, b.Window().Valid)
	assert.True(t, b.Due(t0))
	assert.Equal(t, 3, b.Capacity())
}
