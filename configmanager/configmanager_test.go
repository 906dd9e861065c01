package configmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	config, err := ReadConfig("testdata/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "greenhouse", config.Device.Name)
	assert.Equal(t, DriverPeriph, config.Drivers.Type)
	assert.Equal(t, uint16(0x76), config.Drivers.BMP280Address)
	assert.True(t, config.Drivers.RelayActiveLow)
	assert.Equal(t, 10*time.Millisecond, config.Soil.SampleDelay)
	assert.Equal(t, 3000, config.Soil.DryRaw)
	assert.Equal(t, 5*time.Minute, config.History.Interval)
	assert.Equal(t, "thirsty", config.Alerts.GifKeywords["low_soil_moisture"])
	assert.Equal(t, 15*time.Second, config.Watering.ManualDuration)
	assert.Equal(t, 2.0, config.Levels.HysteresisMargin)
	require.Len(t, config.Levels.Soil, 4)
	assert.Equal(t, 4*time.Hour, config.Levels.Soil[0].ReminderInterval)
	require.Len(t, config.Levels.Temperature, 5)
	assert.Equal(t, "ideal", config.Levels.Temperature[2].Name)
	assert.Equal(t, []string{"gardener@example.org"}, config.Xmpp.Recipients)
	assert.Equal(t, 10*time.Minute, config.Watchdog.Timeout)
}

func TestReadConfigDefaults(t *testing.T) {
	config, err := ReadConfig("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "shed", config.Device.Name)
	assert.True(t, config.Sensors.Temperature)
	assert.True(t, config.Sensors.Pressure)
	assert.True(t, config.Sensors.Light)
	assert.True(t, config.Sensors.Soil)
	assert.True(t, config.Alerts.Enabled)
	assert.Equal(t, 30.0, config.Alerts.TemperatureHigh)
	assert.Equal(t, 10.0, config.Alerts.TemperatureLow)
	assert.Equal(t, 20.0, config.Alerts.SoilMoistureLow)
	assert.Equal(t, 30.0, config.Watering.MinThreshold)
	assert.Equal(t, 60.0, config.Watering.MaxThreshold)
	assert.Equal(t, 3000, config.Soil.DryRaw)
	assert.Equal(t, 1200, config.Soil.WetRaw)
	assert.Equal(t, 10*time.Second, config.Publish.Timeout)
	assert.Equal(t, 5, config.Soil.Samples)
	assert.Equal(t, 400, config.Soil.RawSpikeThreshold)
	assert.Equal(t, 50.0, config.Soil.PercentJumpThreshold)
	assert.Equal(t, 288, config.History.Capacity)
	assert.Equal(t, 30*time.Second, config.Alerts.Interval)
	assert.Equal(t, 24*time.Hour, config.Statistics.DayLength)
	assert.Equal(t, 7, config.Statistics.HistoryDays)
	assert.Equal(t, 30*time.Second, config.Statistics.PersistInterval)
	assert.Equal(t, -50.0, config.Temperature.MinValid)
	assert.Equal(t, 100.0, config.Temperature.MaxValid)
	assert.Equal(t, "greenhouse/shed", config.Mqtt.TopicPrefix)
	assert.Equal(t, ":8080", config.Http.Listen)
	assert.Len(t, config.Levels.Soil, 4)
}

func TestReadConfigKeepsExplicitZeros(t *testing.T) {
	config, err := ReadConfig("testdata/zero_thresholds.yaml")
	require.NoError(t, err)

	assert.False(t, config.Sensors.Light)
	assert.True(t, config.Sensors.Soil)
	assert.Equal(t, 0.0, config.Alerts.TemperatureLow)
	assert.Equal(t, 35.0, config.Alerts.TemperatureHigh)
	assert.Equal(t, 0.0, config.Alerts.SoilMoistureLow)
	assert.Equal(t, 0.0, config.Watering.MinThreshold)
	assert.Equal(t, 50.0, config.Watering.MaxThreshold)
}

func TestReadConfigInvalid(t *testing.T) {
	_, err := ReadConfig("testdata/invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver type")
	assert.Contains(t, err.Error(), "dry_raw and wet_raw must differ")
	assert.Contains(t, err.Error(), "watering thresholds")
	assert.Contains(t, err.Error(), "mqtt enabled but no host")
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	assert.NoError(t, config.Validate())
	assert.Equal(t, DriverSimulated, config.Drivers.Type)
	assert.True(t, config.Sensors.Soil)
}

func TestValidateTemperatureRange(t *testing.T) {
	config := Default()
	config.Temperature.MinValid = 50
	config.Temperature.MaxValid = 40
	assert.Error(t, config.Validate())
}
