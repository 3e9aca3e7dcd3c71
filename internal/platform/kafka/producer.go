package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is one certificate lifecycle transition published for downstream
// consumers (dashboards, settlement, notifications).
type Event struct {
	Type       string    `json:"type"` // certificate.uploaded | certificate.verified | certificate.listed
	CreditID   string    `json:"credit_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventUploaded = "certificate.uploaded"
	EventVerified = "certificate.verified"
	EventListed   = "certificate.listed"
)

// Publisher is the narrow surface services depend on. Publishing is
// best-effort: failures are logged, never surfaced to the request path.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// NopPublisher drops every event. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close()                         {}

// Producer publishes lifecycle events to a Kafka topic via franz-go.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer connects to the given brokers and makes sure the topic exists.
// Returns nil if brokers is empty (event publishing not configured).
func NewProducer(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure topic %q: %w", topic, res.Err)
		}
	}

	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one event keyed by creditId so per-certificate ordering holds
// within a partition. Delivery errors are logged and dropped.
func (p *Producer) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal lifecycle event", "error", err.Error())
		return
	}
	record := &kgo.Record{Key: []byte(event.CreditID), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("publish lifecycle event",
				"type", event.Type,
				"credit_id", event.CreditID,
				"error", err.Error(),
			)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
