/*
 * package sensor turns raw soil moisture ADC samples into a stable
 * moisture percentage and defines the sensor driver contracts
 */

package sensor

import (
	"math"
	"time"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

// NormalizerConfig holds the calibration and smoothing constants.
type NormalizerConfig struct {
	Samples              int           // Raw samples per normalization
	SampleDelay          time.Duration // Pause between samples
	DryRaw               int           // Raw value mapped to 0 %
	WetRaw               int           // Raw value mapped to 100 %
	RawSpikeThreshold    int           // Raw jump above which current and previous average are blended
	PercentJumpThreshold float64       // Percentage jump above which current and previous percentage are blended
}

func NormalizerConfigFrom(config *configmanager.Config) NormalizerConfig {
	return NormalizerConfig{
		Samples:              config.Soil.Samples,
		SampleDelay:          config.Soil.SampleDelay,
		DryRaw:               config.Soil.DryRaw,
		WetRaw:               config.Soil.WetRaw,
		RawSpikeThreshold:    config.Soil.RawSpikeThreshold,
		PercentJumpThreshold: config.Soil.PercentJumpThreshold,
	}
}

type Normalizer struct {
	reader SoilReader
	config NormalizerConfig
	sleep  func(time.Duration)

	History struct {
		Valid       bool // Whether a previous raw average exists
		LastRaw     int  // Last raw average after spike suppression
		PctValid    bool
		LastPercent float64 // Last returned percentage
	}
	LastRaw int // Raw average of the last successful Normalize() call, before spike suppression
}

func NewNormalizer(reader SoilReader, config NormalizerConfig) *Normalizer {
	if config.Samples <= 0 {
		config.Samples = 1
	}
	log.Infof("Sensor: Soil calibration dry=%d wet=%d, %d samples per reading", config.DryRaw, config.WetRaw, config.Samples)

	return &Normalizer{
		reader: reader,
		config: config,
		sleep:  time.Sleep,
	}
}

// SetSleep replaces the inter-sample delay function.
func (n *Normalizer) SetSleep(sleep func(time.Duration)) {
	n.sleep = sleep
}

// SetCalibration replaces the dry / wet raw values. Smoothing state is kept.
func (n *Normalizer) SetCalibration(dryRaw, wetRaw int) {
	n.config.DryRaw = dryRaw
	n.config.WetRaw = wetRaw
}

/*
 * Normalize samples the soil sensor and returns the moisture percentage.
 * ok is false if no valid sample was taken; smoothing state is untouched then.
 */
func (n *Normalizer) Normalize() (percent float64, ok bool) {
	// Take samples. Non-positive values indicate a disconnected sensor
	sum := 0
	valid := 0
	for i := 0; i < n.config.Samples; i++ {
		raw, err := n.reader.ReadSoilRaw()
		if err == nil && raw > 0 {
			sum += raw
			valid++
		}
		if i < n.config.Samples-1 && n.config.SampleDelay > 0 {
			n.sleep(n.config.SampleDelay)
		}
	}

	if valid == 0 {
		log.Debugf("Sensor: No valid soil samples")
		return 0, false
	}

	rawAvg := sum / valid
	n.LastRaw = rawAvg

	// Damp raw spikes by blending with the previous average
	if n.History.Valid {
		if abs(rawAvg-n.History.LastRaw) > n.config.RawSpikeThreshold {
			log.Debugf("Sensor: Raw spike %d -> %d damped", n.History.LastRaw, rawAvg)
			rawAvg = (rawAvg + n.History.LastRaw) / 2
		}
	}

	percent = n.mapRawValue(rawAvg)

	// Percentage-level smoothing
	if n.History.PctValid && math.Abs(percent-n.History.LastPercent) > n.config.PercentJumpThreshold {
		percent = (percent + n.History.LastPercent) / 2
	}

	n.History.Valid = true
	n.History.LastRaw = rawAvg
	n.History.PctValid = true
	n.History.LastPercent = percent

	return percent, true
}

/*
 * Maps a raw value linearly from [DryRaw, WetRaw] to [0, 100] and clamps.
 * Works for both sensor polarities (dry > wet for capacitive sensors, dry < wet for resistive ones).
 */
func (n *Normalizer) mapRawValue(rawValue int) float64 {
	span := float64(n.config.WetRaw - n.config.DryRaw)
	if span == 0 {
		return 0
	}

	percentageValue := float64(rawValue-n.config.DryRaw) * 100 / span

	// We cannot accept values < 0 or > 100.
	if percentageValue < 0 {
		percentageValue = 0
	} else if percentageValue > 100 {
		percentageValue = 100
	}

	return percentageValue
}

// Reset forgets smoothing history.
func (n *Normalizer) Reset() {
	n.History.Valid = false
	n.History.LastRaw = 0
	n.History.PctValid = false
	n.History.LastPercent = 0
	n.LastRaw = 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
