// Package audit persists finalized dispatch results for the reporting and
// billing sides of the platform. All implementations are best-effort; the
// orchestrator never lets an audit failure change a dispatch outcome.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// event is the audit record published per finalized dispatch.
type event struct {
	Type   string                 `json:"type"`
	Result *models.DispatchResult `json:"result"`
	At     time.Time              `json:"at"`
}

// KafkaPublisher emits one audit event per finalized dispatch to a Kafka
// topic, keyed by dispatch id so per-dispatch events stay ordered.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSyncProducer connects a synchronous producer to the supplied brokers.
// Acks from all in-sync replicas are required so audit events are not lost
// on broker failover.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("audit: at least one kafka broker is required")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: create kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaPublisher wraps an existing producer.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger zerolog.Logger) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, errors.New("audit: kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("audit: kafka topic is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Record implements dispatch.AttemptLogger.
func (p *KafkaPublisher) Record(_ context.Context, result *models.DispatchResult) error {
	payload, err := json.Marshal(event{Type: "dispatch.finalized", Result: result, At: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(result.DispatchID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("audit: publish event: %w", err)
	}

	p.logger.Debug().
		Str("dispatch_id", result.DispatchID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("audit event published")
	return nil
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
