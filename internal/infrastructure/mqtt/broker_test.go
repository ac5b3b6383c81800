package mqtt

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
)

// testBroker is an embedded MQTT broker on a loopback port.
type testBroker struct {
	server *mochi.Server
	host   string
	port   int

	mu       sync.Mutex
	messages map[string][][]byte
	subID    int
}

// startTestBroker runs an embedded broker that accepts any client.
func startTestBroker(t *testing.T) *testBroker {
	t.Helper()

	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("AddHook() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	if err := server.AddListener(listeners.NewNet("test", ln)); err != nil {
		t.Fatalf("AddListener() error = %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	addr := ln.Addr().(*net.TCPAddr)
	b := &testBroker{
		server:   server,
		host:     addr.IP.String(),
		port:     addr.Port,
		messages: make(map[string][][]byte),
	}
	t.Cleanup(func() {
		server.Close()
	})
	return b
}

// config returns client settings pointing at the broker.
func (b *testBroker) config(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     b.host,
			Port:     b.port,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// record captures every message matching filter through the inline client.
func (b *testBroker) record(t *testing.T, filter string) {
	t.Helper()
	b.mu.Lock()
	b.subID++
	id := b.subID
	b.mu.Unlock()

	err := b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		b.mu.Lock()
		b.messages[pk.TopicName] = append(b.messages[pk.TopicName], append([]byte(nil), pk.Payload...))
		b.mu.Unlock()
	})
	if err != nil {
		t.Fatalf("inline Subscribe(%s) error = %v", filter, err)
	}
}

// waitFor polls until a message on topic satisfies match.
func (b *testBroker) waitFor(t *testing.T, topic string, match func(payload []byte) bool) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		msgs := b.messages[topic]
		for _, m := range msgs {
			if match(m) {
				b.mu.Unlock()
				return m
			}
		}
		b.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no matching message on %s", topic)
	return nil
}

// inject publishes from the broker side.
func (b *testBroker) inject(t *testing.T, topic string, payload []byte) {
	t.Helper()
	if err := b.server.Publish(topic, payload, false, 1); err != nil {
		t.Fatalf("inline Publish(%s) error = %v", topic, err)
	}
}
