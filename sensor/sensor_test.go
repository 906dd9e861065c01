package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSoil returns samples from a fixed script, then repeats the last one
type scriptedSoil struct {
	samples []int
	errs    []error
	pos     int
}

func (s *scriptedSoil) ReadSoilRaw() (int, error) {
	i := s.pos
	if i >= len(s.samples) {
		i = len(s.samples) - 1
	}
	s.pos++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.samples[i], err
}

// constantSoil always reports the same raw value
type constantSoil struct {
	raw int
}

func (c *constantSoil) ReadSoilRaw() (int, error) {
	return c.raw, nil
}

func testConfig(dry, wet int) NormalizerConfig {
	return NormalizerConfig{
		Samples:              5,
		SampleDelay:          10 * time.Millisecond,
		DryRaw:               dry,
		WetRaw:               wet,
		RawSpikeThreshold:    400,
		PercentJumpThreshold: 50,
	}
}

func newTestNormalizer(reader SoilReader, config NormalizerConfig) *Normalizer {
	n := NewNormalizer(reader, config)
	n.SetSleep(func(time.Duration) {})
	return n
}

func TestMapRawValue(t *testing.T) {
	// Capacitive probe: high raw value means dry
	var testData = map[int]float64{
		3000: 0,
		3624: 0,
		2100: 50,
		1200: 100,
		500:  100,
	}

	n := newTestNormalizer(&constantSoil{}, testConfig(3000, 1200))

	for input, expected := range testData {
		assert.InDelta(t, expected, n.mapRawValue(input), 0.001, "raw value %d", input)
	}
}

func TestNormalizeUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		reader SoilReader
	}{
		{"all zero", &constantSoil{raw: 0}},
		{"all negative", &constantSoil{raw: -12}},
		{"driver errors", &scriptedSoil{
			samples: []int{2000, 2000, 2000, 2000, 2000},
			errs:    []error{errors.New("bus"), errors.New("bus"), errors.New("bus"), errors.New("bus"), errors.New("bus")},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := newTestNormalizer(tc.reader, testConfig(3000, 1200))
			for i := 0; i < 3; i++ {
				_, ok := n.Normalize()
				assert.False(t, ok)
			}
			assert.False(t, n.History.Valid)
		})
	}
}

func TestNormalizeDiscardsInvalidSamples(t *testing.T) {
	reader := &scriptedSoil{samples: []int{0, 2100, -1, 2100, 2100}}
	n := newTestNormalizer(reader, testConfig(3000, 1200))

	pct, ok := n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 50, pct, 0.001)
	assert.Equal(t, 2100, n.LastRaw)
	assert.Equal(t, 5, reader.pos)
}

func TestNormalizeSleepsBetweenSamples(t *testing.T) {
	n := NewNormalizer(&constantSoil{raw: 2000}, testConfig(3000, 1200))
	var slept []time.Duration
	n.SetSleep(func(d time.Duration) { slept = append(slept, d) })

	_, ok := n.Normalize()
	require.True(t, ok)
	assert.Len(t, slept, 4)
	for _, d := range slept {
		assert.Equal(t, 10*time.Millisecond, d)
	}
}

func TestNormalizeClamped(t *testing.T) {
	tests := []struct {
		name     string
		dry, wet int
		raws     []int
	}{
		{"capacitive", 3000, 1200, []int{1, 100, 4095, 65535, 2500, 900000}},
		{"inverted calibration", 50, 200, []int{1, 20, 4095, 300, 120, 999999}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			soil := &constantSoil{}
			n := newTestNormalizer(soil, testConfig(tc.dry, tc.wet))
			for _, raw := range tc.raws {
				soil.raw = raw
				pct, ok := n.Normalize()
				require.True(t, ok)
				assert.GreaterOrEqual(t, pct, 0.0)
				assert.LessOrEqual(t, pct, 100.0)
			}
		})
	}
}

func TestNormalizeResistivePolarity(t *testing.T) {
	// Resistive probe: higher raw means wetter
	soil := &constantSoil{raw: 125}
	n := newTestNormalizer(soil, testConfig(50, 200))

	pct, ok := n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 50, pct, 0.001)
}

func TestNormalizeRawSpikeDamped(t *testing.T) {
	soil := &constantSoil{raw: 2100}
	n := newTestNormalizer(soil, testConfig(3000, 1200))

	pct, ok := n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 50, pct, 0.001)

	// Jump of 900 raw units is above the spike threshold: blended to (1200+2100)/2 = 1650 => 75 %
	soil.raw = 1200
	pct, ok = n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 75, pct, 0.001)
	assert.Equal(t, 1650, n.History.LastRaw)
	assert.Equal(t, 1200, n.LastRaw)

	// Small jump: taken as is
	soil.raw = 1500
	pct, ok = n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 83.333, pct, 0.01)
}

func TestNormalizePercentJumpSmoothed(t *testing.T) {
	// Large spike threshold so only the percentage stage acts
	config := testConfig(3000, 1200)
	config.RawSpikeThreshold = 10000
	soil := &constantSoil{raw: 3000}
	n := newTestNormalizer(soil, config)

	pct, ok := n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 0, pct, 0.001)

	// 0 % -> 100 % is a jump of 100 points: averaged to 50 %
	soil.raw = 1200
	pct, ok = n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 50, pct, 0.001)

	// 50 % -> 100 % is exactly the threshold: not smoothed
	pct, ok = n.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 100, pct, 0.001)
}

func TestNormalizeUnavailableKeepsHistory(t *testing.T) {
	soil := &constantSoil{raw: 2100}
	n := newTestNormalizer(soil, testConfig(3000, 1200))

	_, ok := n.Normalize()
	require.True(t, ok)

	soil.raw = 0
	_, ok = n.Normalize()
	require.False(t, ok)
	assert.True(t, n.History.Valid)
	assert.Equal(t, 2100, n.History.LastRaw)
	assert.InDelta(t, 50, n.History.LastPercent, 0.001)
}

func TestCalibration(t *testing.T) {
	c := NewCalibration(3000, 1200)
	_, _, ok := c.Suggest()
	assert.False(t, ok)

	for _, raw := range []int{2500, 0, 3100, 1300, -5} {
		c.Observe(raw)
	}

	assert.Equal(t, 3, c.Samples)
	assert.Equal(t, 1300, c.MinRaw)
	assert.Equal(t, 3100, c.MaxRaw)
	assert.Equal(t, 1300, c.CurrentRaw)

	dry, wet, ok := c.Suggest()
	require.True(t, ok)
	assert.Equal(t, 3100, dry)
	assert.Equal(t, 1300, wet)

	resistive := NewCalibration(50, 200)
	resistive.Observe(40)
	resistive.Observe(210)
	dry, wet, ok = resistive.Suggest()
	require.True(t, ok)
	assert.Equal(t, 40, dry)
	assert.Equal(t, 210, wet)
}

func TestReadingClone(t *testing.T) {
	r := Reading{Temperature: Float(21.5), SoilMoisture: Float(40), Timestamp: 42}
	c := r.Clone()
	*r.Temperature = 99

	require.NotNil(t, c.Temperature)
	assert.Equal(t, 21.5, *c.Temperature)
	assert.Nil(t, c.Light)
	assert.Equal(t, int64(42), c.Timestamp)
}
