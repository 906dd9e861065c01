package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"thomas-leister.de/greenhouse/sensor"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes readings as JSON, keyed by device name.
type KafkaPublisher struct {
	writer messageWriter
	device string
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic, device string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Balancer:     &kafka.Hash{},
			Async:        false,
		},
		device: device,
		now:    time.Now,
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, reading sensor.Reading) error {
	value, err := json.Marshal(NewRecord(k.device, reading, k.now()))
	if err != nil {
		return fmt.Errorf("could not encode record: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(k.device), Value: value}); err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
