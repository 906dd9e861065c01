package sensor

// Calibration tracks the raw soil range seen since start, so dry / wet values
// can be read off after holding the probe in air and in water.
type Calibration struct {
	CurrentRaw int  `json:"current_raw" msgpack:"current_raw"`
	MinRaw     int  `json:"min_raw" msgpack:"min_raw"`
	MaxRaw     int  `json:"max_raw" msgpack:"max_raw"`
	Samples    int  `json:"samples" msgpack:"samples"`
	DryRaw     int  `json:"dry_raw" msgpack:"dry_raw"`
	WetRaw     int  `json:"wet_raw" msgpack:"wet_raw"`
	Inverted   bool `json:"inverted" msgpack:"inverted"` // dry raw above wet raw (capacitive probe)
}

func NewCalibration(dryRaw, wetRaw int) Calibration {
	return Calibration{DryRaw: dryRaw, WetRaw: wetRaw, Inverted: dryRaw > wetRaw}
}

// Observe records one averaged raw value. Non-positive values are ignored.
func (c *Calibration) Observe(raw int) {
	if raw <= 0 {
		return
	}
	c.CurrentRaw = raw
	if c.Samples == 0 || raw < c.MinRaw {
		c.MinRaw = raw
	}
	if c.Samples == 0 || raw > c.MaxRaw {
		c.MaxRaw = raw
	}
	c.Samples++
}

/*
 * Suggest proposes new calibration values from the observed range,
 * keeping the configured probe polarity.
 */
func (c Calibration) Suggest() (dryRaw, wetRaw int, ok bool) {
	if c.Samples == 0 || c.MinRaw == c.MaxRaw {
		return 0, 0, false
	}
	if c.Inverted {
		return c.MaxRaw, c.MinRaw, true
	}
	return c.MinRaw, c.MaxRaw, true
}
