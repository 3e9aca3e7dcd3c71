//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"greencredits/internal/platform/kafka"
	"greencredits/internal/platform/logger"
	"greencredits/pkg/testutil/containers"
)

func TestProducerPublishesLifecycleEvents(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	producer, err := kafka.NewProducer(ctx, []string{rp.Broker}, "certificate-events", logger.New())
	require.NoError(t, err)
	require.NotNil(t, producer)

	event := kafka.Event{
		Type:       kafka.EventUploaded,
		CreditID:   "CREDIT-1",
		Status:     "pending",
		OccurredAt: time.Now().UTC(),
	}
	producer.Publish(ctx, event)
	producer.Close() // flushes

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics("certificate-events"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, []byte("CREDIT-1"), records[0].Key, "events are keyed by credit id")

	var got kafka.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, kafka.EventUploaded, got.Type)
	require.Equal(t, "pending", got.Status)
}

func TestNewProducerWithoutBrokers(t *testing.T) {
	producer, err := kafka.NewProducer(context.Background(), nil, "certificate-events", logger.New())
	require.NoError(t, err)
	require.Nil(t, producer)
}

func TestNewProducerToleratesExistingTopic(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	first, err := kafka.NewProducer(ctx, []string{rp.Broker}, "certificate-events", logger.New())
	require.NoError(t, err)
	first.Close()

	second, err := kafka.NewProducer(ctx, []string{rp.Broker}, "certificate-events", logger.New())
	require.NoError(t, err)
	second.Close()
}
