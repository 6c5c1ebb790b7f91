package repository

import (
	"context"
	"time"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
	"PayPull/pkg/kafka"
)

// transactionEvent is the feed payload for a newly inserted transaction.
type transactionEvent struct {
	AccountID       string    `json:"account_id"`
	Provider        string    `json:"provider"`
	ProviderEventID string    `json:"provider_event_id"`
	EventType       string    `json:"event_type"`
	OccurredAt      time.Time `json:"occurred_at"`
	Verified        bool      `json:"verified"`
}

// KafkaPublisher feeds inserted transactions to a Kafka topic, keyed by
// account so per-account ordering is preserved.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *kafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, t *models.Transaction) error {
	evt := transactionEvent{
		AccountID:       t.AccountID,
		Provider:        t.Provider,
		ProviderEventID: t.ProviderEventID,
		EventType:       t.EventType,
		OccurredAt:      t.OccurredAt,
		Verified:        t.Verified,
	}
	return p.producer.Publish(ctx, p.topic, []byte(t.AccountID), evt)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.Transaction) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
