// Package ingest subscribes to the client-heartbeats subject, buffers
// records into bounded batches, and forwards each batch to the processor
// through a channel.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/JackRipper1888/GPUFabric/internal/metrics"
	"github.com/JackRipper1888/GPUFabric/pkg/bus"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

// Record is one undecoded heartbeat message pulled off the bus, carrying
// its ack handles so the caller can commit or reject each record once it
// has been applied.
type Record struct {
	Payload []byte
	Ack     func() error
	Nak     func() error
}

// MessageBus is the subset of bus.Bus the consumer needs.
type MessageBus interface {
	JetStream() jetstream.JetStream
}

// Consumer pulls batches of heartbeat records bounded by batch_size OR
// batch_timeout, whichever fires first, and hands them to Batches.
type Consumer struct {
	bus            MessageBus
	logger         *logger.Logger
	batchSize      int
	batchTimeout   time.Duration
	consumerName   string
	consumer       jetstream.Consumer

	// Batches receives each drained batch. Capacity throttles the
	// consumer: once the channel is full, Fetch is not called again until
	// the processor takes a batch off it.
	Batches chan []Record
}

// NewConsumer constructs a Consumer. channelCapacity bounds Batches, which
// is the back-pressure mechanism described by the ingestion spec.
func NewConsumer(b MessageBus, l *logger.Logger, batchSize int, batchTimeout time.Duration, channelCapacity int) *Consumer {
	return &Consumer{
		bus:          b,
		logger:       l,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		consumerName: "heartbeat-consumer-group",
		Batches:      make(chan []Record, channelCapacity),
	}
}

// Start creates the durable pull consumer and runs the fetch loop until ctx
// is cancelled. Records without a payload are dropped with a log rather
// than forwarded.
func (c *Consumer) Start(ctx context.Context) error {
	cons, err := c.bus.JetStream().CreateOrUpdateConsumer(ctx, bus.StreamHeartbeats, jetstream.ConsumerConfig{
		Durable:       c.consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: bus.SubjectClientHeartbeats + ".*",
	})
	if err != nil {
		return fmt.Errorf("create heartbeat consumer: %w", err)
	}
	c.consumer = cons

	c.logger.Info("heartbeat consumer started", "batch_size", c.batchSize, "batch_timeout", c.batchTimeout)

	for {
		select {
		case <-ctx.Done():
			close(c.Batches)
			return nil
		default:
		}

		batch, err := c.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				close(c.Batches)
				return nil
			}
			c.logger.Error("heartbeat fetch failed", "error", err)
			continue
		}

		if len(batch) == 0 {
			continue
		}

		metrics.HeartbeatBatchSize.Observe(float64(len(batch)))

		select {
		case c.Batches <- batch:
		case <-ctx.Done():
			close(c.Batches)
			return nil
		}
	}
}

func (c *Consumer) fetchBatch(ctx context.Context) ([]Record, error) {
	msgs, err := c.consumer.Fetch(c.batchSize, jetstream.FetchMaxWait(c.batchTimeout))
	if err != nil {
		return nil, err
	}

	var batch []Record
	for msg := range msgs.Messages() {
		if len(msg.Data()) == 0 {
			c.logger.Warn("dropping empty heartbeat record")
			_ = msg.Ack()
			continue
		}
		batch = append(batch, Record{
			Payload: msg.Data(),
			Ack:     msg.Ack,
			Nak:     msg.Nak,
		})
	}
	if err := msgs.Error(); err != nil && len(batch) == 0 {
		return nil, err
	}

	return batch, nil
}
