/*
 * Publisher:
 * Cloud backends for telemetry. Each publisher takes one reading per publish interval.
 */

package publisher

import (
	"context"
	"errors"
	"time"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/sensor"
)

type Publisher interface {
	Publish(ctx context.Context, reading sensor.Reading) error
}

// Record is the document stored by the cloud backends.
type Record struct {
	Device       string   `json:"device"`
	Temperature  *float64 `json:"temperature"`
	Pressure     *float64 `json:"pressure"`
	Light        *float64 `json:"light"`
	SoilMoisture *float64 `json:"soil_moisture"`
	Timestamp    int64    `json:"timestamp"`
	PublishedAt  string   `json:"published_at"`
}

func NewRecord(device string, reading sensor.Reading, now time.Time) Record {
	return Record{
		Device:       device,
		Temperature:  reading.Temperature,
		Pressure:     reading.Pressure,
		Light:        reading.Light,
		SoilMoisture: reading.SoilMoisture,
		Timestamp:    reading.Timestamp,
		PublishedAt:  now.UTC().Format(time.RFC3339),
	}
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, reading sensor.Reading) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, reading); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

/*
 * FromConfig builds the configured Kafka and Firebase publishers.
 * The returned closer releases them.
 */
func FromConfig(ctx context.Context, config *configmanager.Config) (Multi, func(), error) {
	var publishers Multi
	var closers []func() error

	if config.Kafka.Enabled {
		kafka := NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.Topic, config.Device.Name)
		publishers = append(publishers, kafka)
		closers = append(closers, kafka.Close)
		log.Infof("Publisher: Kafka topic %s on %v", config.Kafka.Topic, config.Kafka.Brokers)
	}

	if config.Firebase.Enabled {
		firebase, err := NewFirebasePublisher(ctx, config.Firebase.DatabaseURL, config.Firebase.CredentialsFile, config.Device.Name)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		publishers = append(publishers, firebase)
		log.Infof("Publisher: Firebase database %s", config.Firebase.DatabaseURL)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warnf("Publisher: Close failed: %v", err)
			}
		}
	}
	return publishers, closeAll, nil
}
