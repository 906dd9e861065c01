/*
 * Configmanager:
 * Reads configuration from YAML config file
 */

package configmanager

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Driver backends
const (
	DriverPeriph    = "periph"
	DriverSimulated = "simulated"
)

type LevelConfig struct {
	Name             string        `yaml:"name"`
	Start            float64       `yaml:"start"`
	End              float64       `yaml:"end"`
	GifKeyword       string        `yaml:"gif_keyword"`
	ReminderInterval time.Duration `yaml:"reminder_interval"` // 0 disables reminders for this level
}

type Config struct {
	Device struct {
		Name string `yaml:"name"`
	} `yaml:"device"`

	Log struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`

	Loop struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"loop"`

	Drivers struct {
		Type           string `yaml:"type"` // periph | simulated
		I2CBus         string `yaml:"i2c_bus"`
		BMP280Address  uint16 `yaml:"bmp280_address"`
		BH1750Address  uint16 `yaml:"bh1750_address"`
		SoilAddress    uint16 `yaml:"soil_address"`
		SoilChannel    uint8  `yaml:"soil_channel"`
		RelayPin       string `yaml:"relay_pin"`
		RelayActiveLow bool   `yaml:"relay_active_low"`
		// Simulated soil sensor returns 0 on every sample
		SimulateSoilDisconnected bool `yaml:"simulate_soil_disconnected"`
	} `yaml:"drivers"`

	Sensors struct {
		Temperature bool `yaml:"temperature"`
		Pressure    bool `yaml:"pressure"`
		Light       bool `yaml:"light"`
		Soil        bool `yaml:"soil"`
	} `yaml:"sensors"`

	Soil struct {
		Samples              int           `yaml:"samples"`
		SampleDelay          time.Duration `yaml:"sample_delay"`
		DryRaw               int           `yaml:"dry_raw"`
		WetRaw               int           `yaml:"wet_raw"`
		RawSpikeThreshold    int           `yaml:"raw_spike_threshold"`
		PercentJumpThreshold float64       `yaml:"percent_jump_threshold"`
	} `yaml:"soil"`

	Temperature struct {
		MinValid float64 `yaml:"min_valid"`
		MaxValid float64 `yaml:"max_valid"`
	} `yaml:"temperature"`

	History struct {
		Capacity int           `yaml:"capacity"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"history"`

	Alerts struct {
		Enabled           bool              `yaml:"enabled"`
		Interval          time.Duration     `yaml:"interval"`
		TemperatureHigh   float64           `yaml:"temperature_high"`
		TemperatureLow    float64           `yaml:"temperature_low"`
		SoilMoistureLow   float64           `yaml:"soil_moisture_low"`
		GifKeywords       map[string]string `yaml:"gif_keywords"`
		RecentAlertsLimit int               `yaml:"recent_alerts_limit"`
	} `yaml:"alerts"`

	Watering struct {
		Enabled        bool          `yaml:"enabled"`
		AutoEnabled    bool          `yaml:"auto_enabled"`
		MinThreshold   float64       `yaml:"min_threshold"`
		MaxThreshold   float64       `yaml:"max_threshold"`
		ManualDuration time.Duration `yaml:"manual_duration"`
	} `yaml:"watering"`

	Statistics struct {
		Database        string        `yaml:"database"`
		PersistInterval time.Duration `yaml:"persist_interval"`
		DayLength       time.Duration `yaml:"day_length"`
		HistoryDays     int           `yaml:"history_days"`
	} `yaml:"statistics"`

	Levels struct {
		HysteresisMargin float64       `yaml:"hysteresis_margin"`
		Soil             []LevelConfig `yaml:"soil"`
		Temperature      []LevelConfig `yaml:"temperature"`
	} `yaml:"levels"`

	Http struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`

	Publish struct {
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"` // Deadline for one publish to all backends
	} `yaml:"publish"`

	Mqtt struct {
		Enabled     bool   `yaml:"enabled"`
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		Tls         bool   `yaml:"tls"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Firebase struct {
		Enabled         bool   `yaml:"enabled"`
		DatabaseURL     string `yaml:"database_url"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`

	Xmpp struct {
		Enabled    bool     `yaml:"enabled"`
		Host       string   `yaml:"host"`
		Port       int      `yaml:"port"`
		Username   string   `yaml:"username"`
		Password   string   `yaml:"password"`
		Recipients []string `yaml:"recipients"`
	} `yaml:"xmpp"`

	Giphy struct {
		ApiKey string `yaml:"api_key"`
	} `yaml:"giphy"`

	Watchdog struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"watchdog"`
}

func ReadConfig(configPath string) (Config, error) {
	// Keys missing in the file keep their defaults
	config := base()

	// Open config file
	file, err := os.Open(configPath)
	if err != nil {
		return config, err
	}
	defer file.Close()

	// Init new YAML decode
	d := yaml.NewDecoder(file)
	// Start YAML decoding from file
	if err := d.Decode(&config); err != nil {
		return config, fmt.Errorf("could not decode %s: %w", configPath, err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Default returns a configuration with every tunable set to its default and
// all sensors enabled on the simulated driver.
func Default() Config {
	c := base()
	c.ApplyDefaults()
	return c
}

// base holds the defaults for settings where false or 0 is a valid choice.
func base() Config {
	c := Config{}
	c.Sensors.Temperature = true
	c.Sensors.Pressure = true
	c.Sensors.Light = true
	c.Sensors.Soil = true

	// Capacitive probe on a 12 bit ADC
	c.Soil.DryRaw = 3000
	c.Soil.WetRaw = 1200

	c.Temperature.MinValid = -50
	c.Temperature.MaxValid = 100

	c.Alerts.Enabled = true
	c.Alerts.TemperatureHigh = 30
	c.Alerts.TemperatureLow = 10
	c.Alerts.SoilMoistureLow = 20

	c.Watering.MinThreshold = 30
	c.Watering.MaxThreshold = 60
	return c
}

// ApplyDefaults fills every non-positive duration, count and missing name.
func (c *Config) ApplyDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "greenhouse"
	}
	if c.Loop.Interval <= 0 {
		c.Loop.Interval = 3 * time.Second
	}
	if c.Drivers.Type == "" {
		c.Drivers.Type = DriverSimulated
	}
	if c.Drivers.BMP280Address == 0 {
		c.Drivers.BMP280Address = 0x76
	}
	if c.Drivers.BH1750Address == 0 {
		c.Drivers.BH1750Address = 0x23
	}
	if c.Drivers.SoilAddress == 0 {
		c.Drivers.SoilAddress = 0x20
	}
	if c.Drivers.RelayPin == "" {
		c.Drivers.RelayPin = "GPIO17"
	}

	if c.Soil.Samples <= 0 {
		c.Soil.Samples = 5
	}
	if c.Soil.SampleDelay <= 0 {
		c.Soil.SampleDelay = 10 * time.Millisecond
	}
	if c.Soil.RawSpikeThreshold <= 0 {
		c.Soil.RawSpikeThreshold = 400
	}
	if c.Soil.PercentJumpThreshold <= 0 {
		c.Soil.PercentJumpThreshold = 50
	}

	if c.History.Capacity <= 0 {
		c.History.Capacity = 288
	}
	if c.History.Interval <= 0 {
		c.History.Interval = 5 * time.Minute
	}

	if c.Alerts.Interval <= 0 {
		c.Alerts.Interval = 30 * time.Second
	}
	if c.Alerts.RecentAlertsLimit <= 0 {
		c.Alerts.RecentAlertsLimit = 50
	}

	if c.Watering.ManualDuration <= 0 {
		c.Watering.ManualDuration = 15 * time.Second
	}

	if c.Statistics.PersistInterval <= 0 {
		c.Statistics.PersistInterval = 30 * time.Second
	}
	if c.Statistics.DayLength <= 0 {
		c.Statistics.DayLength = 24 * time.Hour
	}
	if c.Statistics.HistoryDays <= 0 {
		c.Statistics.HistoryDays = 7
	}

	if c.Levels.HysteresisMargin < 0 {
		c.Levels.HysteresisMargin = 0
	}
	if len(c.Levels.Soil) == 0 {
		c.Levels.Soil = []LevelConfig{
			{Name: "very_dry", Start: 0, End: 20, ReminderInterval: 4 * time.Hour},
			{Name: "needs_water", Start: 20, End: 40},
			{Name: "optimal", Start: 40, End: 70},
			{Name: "very_wet", Start: 70, End: 100},
		}
	}
	if len(c.Levels.Temperature) == 0 {
		c.Levels.Temperature = []LevelConfig{
			{Name: "out_of_range", Start: -50, End: 15},
			{Name: "acceptable", Start: 15, End: 18},
			{Name: "ideal", Start: 18, End: 25},
			{Name: "acceptable", Start: 25, End: 30},
			{Name: "out_of_range", Start: 30, End: 100},
		}
	}

	if c.Http.Listen == "" {
		c.Http.Listen = ":8080"
	}
	if c.Publish.Interval <= 0 {
		c.Publish.Interval = 60 * time.Second
	}
	if c.Publish.Timeout <= 0 {
		c.Publish.Timeout = 10 * time.Second
	}
	if c.Mqtt.Port == 0 {
		c.Mqtt.Port = 8883
	}
	if c.Mqtt.TopicPrefix == "" {
		c.Mqtt.TopicPrefix = "greenhouse/" + c.Device.Name
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "greenhouse-telemetry"
	}
	if c.Xmpp.Port == 0 {
		c.Xmpp.Port = 5222
	}
	if c.Watchdog.Timeout <= 0 {
		c.Watchdog.Timeout = 10 * time.Minute
	}
}

// Validate rejects settings the control loop cannot work with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Drivers.Type {
	case DriverPeriph, DriverSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown driver type %q", c.Drivers.Type))
	}
	if c.Soil.DryRaw == c.Soil.WetRaw {
		errs = append(errs, fmt.Errorf("soil dry_raw and wet_raw must differ (both %d)", c.Soil.DryRaw))
	}
	if c.Temperature.MinValid >= c.Temperature.MaxValid {
		errs = append(errs, fmt.Errorf("temperature min_valid %.1f must be below max_valid %.1f", c.Temperature.MinValid, c.Temperature.MaxValid))
	}
	if c.Watering.MinThreshold < 0 || c.Watering.MaxThreshold > 100 || c.Watering.MinThreshold >= c.Watering.MaxThreshold {
		errs = append(errs, fmt.Errorf("watering thresholds must satisfy 0 <= min < max <= 100 (got %.1f / %.1f)", c.Watering.MinThreshold, c.Watering.MaxThreshold))
	}
	if c.Alerts.TemperatureLow >= c.Alerts.TemperatureHigh {
		errs = append(errs, fmt.Errorf("alert temperature_low %.1f must be below temperature_high %.1f", c.Alerts.TemperatureLow, c.Alerts.TemperatureHigh))
	}
	if c.Mqtt.Enabled && c.Mqtt.Host == "" {
		errs = append(errs, errors.New("mqtt enabled but no host configured"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled but no brokers configured"))
	}
	if c.Firebase.Enabled && c.Firebase.DatabaseURL == "" {
		errs = append(errs, errors.New("firebase enabled but no database_url configured"))
	}
	if c.Xmpp.Enabled && (c.Xmpp.Host == "" || len(c.Xmpp.Recipients) == 0) {
		errs = append(errs, errors.New("xmpp enabled but host or recipients missing"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
