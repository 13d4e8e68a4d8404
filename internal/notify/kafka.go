package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KafkaPublisher streams lifecycle events to a topic keyed by vehicle, so all
// events of one vehicle land on one partition in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaProducer builds an idempotent sync producer.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_1_0_0
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) message(ev Event) (*sarama.ProducerMessage, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.VehicleID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte("reservation." + string(ev.Kind))},
			{Key: []byte("event-id"), Value: []byte(uuid.New().String())},
			{Key: []byte("timestamp"), Value: []byte(ev.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

func (p *KafkaPublisher) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	msg, err := p.message(ev)
	if err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Kind, err)
	}
	p.logger.Debug("event published",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("reservation_id", ev.ReservationID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
