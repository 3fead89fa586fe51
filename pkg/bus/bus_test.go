package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *server.Server {
	t.Helper()
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	ns, err := server.NewServer(opts)
	require.NoError(t, err, "failed to create test NATS server")

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server failed to start")
	}

	return ns
}

func TestStreamConstants(t *testing.T) {
	assert.Equal(t, "GPUFABRIC_HEARTBEATS", StreamHeartbeats)
	assert.Equal(t, "GPUFABRIC_EVENTS", StreamEvents)
	assert.Equal(t, "GPUFABRIC_DEVICES", StreamDevices)
}

func TestSubjectConstants(t *testing.T) {
	assert.Equal(t, "client-heartbeats", SubjectClientHeartbeats)
	assert.Equal(t, "events.error", SubjectErrorEvents)
	assert.Equal(t, "devices.model-status", SubjectDeviceModel)
}

func TestBusStruct(t *testing.T) {
	b := &Bus{}
	assert.NotNil(t, b)
}

func TestConnect(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	require.NotNil(t, bus)
	defer bus.Close()

	assert.NotNil(t, bus.nc)
	assert.NotNil(t, bus.js)
	assert.NotNil(t, bus.logger)
}

func TestInitStreams(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	ctx := context.Background()
	err = bus.InitStreams(ctx)
	require.NoError(t, err)

	js := bus.JetStream()

	stream, err := js.Stream(ctx, StreamHeartbeats)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, StreamHeartbeats, info.Config.Name)
	assert.Equal(t, jetstream.WorkQueuePolicy, info.Config.Retention)
	assert.Contains(t, info.Config.Subjects, SubjectClientHeartbeats+".*")

	stream, err = js.Stream(ctx, StreamEvents)
	require.NoError(t, err)
	info, err = stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, info.Config.MaxAge)

	stream, err = js.Stream(ctx, StreamDevices)
	require.NoError(t, err)
	info, err = stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, info.Config.MaxAge)
}

func TestInitStreams_Idempotent(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	ctx := context.Background()
	require.NoError(t, bus.InitStreams(ctx))
	require.NoError(t, bus.InitStreams(ctx))
	require.NoError(t, bus.InitStreams(ctx))
}

func TestPublish(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	ctx := context.Background()
	require.NoError(t, bus.InitStreams(ctx))

	subject := SubjectClientHeartbeats + ".deadbeef"
	testData := []byte("heartbeat-payload")
	require.NoError(t, bus.Publish(ctx, subject, testData))

	js := bus.JetStream()
	cons, err := js.CreateConsumer(ctx, StreamHeartbeats, jetstream.ConsumerConfig{
		Durable:       "test-consumer",
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	require.NoError(t, err)

	msg, err := cons.Next()
	require.NoError(t, err)
	assert.Equal(t, testData, msg.Data())
	require.NoError(t, msg.Ack())
}

func TestPublish_InvalidSubject(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	ctx := context.Background()
	require.NoError(t, bus.InitStreams(ctx))

	err = bus.Publish(ctx, "invalid.subject.test", []byte(`{"test": "data"}`))
	assert.Error(t, err, "should fail for subject not in any stream")
}

func TestClose(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)

	assert.True(t, bus.nc.IsConnected())
	bus.Close()
	assert.True(t, bus.nc.IsClosed())
}

func TestJetStream(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	js := bus.JetStream()
	assert.NotNil(t, js)
	assert.Equal(t, bus.js, js)
}

func TestConn(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	nc := bus.Conn()
	assert.NotNil(t, nc)
	assert.Equal(t, bus.nc, nc)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	ns := startTestServer(t)
	defer ns.Shutdown()

	l := logger.New("test")
	bus, err := Connect(ns.ClientURL(), l)
	require.NoError(t, err)
	defer bus.Close()

	ctx := context.Background()
	require.NoError(t, bus.InitStreams(ctx))

	numGoroutines := 10
	numMessages := 50
	errCh := make(chan error, numGoroutines*numMessages)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numMessages; j++ {
				data := []byte(fmt.Sprintf(`{"goroutine": %d, "msg": %d}`, id, j))
				if err := bus.Publish(ctx, SubjectClientHeartbeats+".x", data); err != nil {
					errCh <- err
				}
			}
		}(i)
	}

	time.Sleep(500 * time.Millisecond)

	select {
	case err := <-errCh:
		t.Fatalf("concurrent publish failed: %v", err)
	default:
	}
}

func TestBus_NilAccessors(t *testing.T) {
	b := &Bus{}
	assert.Nil(t, b.JetStream())
	assert.Nil(t, b.Conn())
}
