package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

type Bus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

const (
	StreamHeartbeats = "GPUFABRIC_HEARTBEATS"
	StreamEvents     = "GPUFABRIC_EVENTS"
	StreamDevices    = "GPUFABRIC_DEVICES"

	SubjectClientHeartbeats = "client-heartbeats" // pattern: client-heartbeats.{client_id}
	SubjectErrorEvents      = "events.error"
	SubjectDeviceModel      = "devices.model-status" // pattern: devices.model-status.{client_id}
)

func Connect(url string, l *logger.Logger) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("gpufabric-heartbeat-consumer"), nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	b := &Bus{nc: nc, js: js, logger: l}
	return b, nil
}

func (b *Bus) InitStreams(ctx context.Context) error {
	// Heartbeat ingestion: work-queue semantics, each message consumed once
	// by the durable heartbeat-consumer-group.
	_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamHeartbeats,
		Subjects:  []string{SubjectClientHeartbeats + ".*"},
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamHeartbeats, err)
	}

	// Operational events (unexpected errors), retained for 90 days.
	_, err = b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamEvents,
		Subjects:  []string{"events.*"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    90 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamEvents, err)
	}

	// Device/model control-plane notifications, fanned out to any number
	// of subscribers.
	_, err = b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamDevices,
		Subjects:  []string{"devices.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamDevices, err)
	}

	return nil
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := b.js.Publish(ctx, subject, data)
	return err
}

func (b *Bus) Close() {
	b.nc.Close()
}

func (b *Bus) JetStream() jetstream.JetStream {
	return b.js
}

func (b *Bus) Conn() *nats.Conn {
	return b.nc
}
