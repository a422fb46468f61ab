package mqttbus

import (
	"context"
	"os"
	"testing"
	"time"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestClientOptions(t *testing.T) {
	opts := Options{BrokerURL: "tcp://localhost:1883", ClientID: "bot_1", Username: "u", Password: "p"}
	co := newBus(opts).clientOptions(opts)

	if len(co.Servers) != 1 || co.Servers[0].Host != "localhost:1883" {
		t.Errorf("Servers = %v", co.Servers)
	}
	if co.ClientID != "bot_1" || !co.CleanSession || !co.AutoReconnect {
		t.Errorf("ClientID/CleanSession/AutoReconnect = %q/%v/%v", co.ClientID, co.CleanSession, co.AutoReconnect)
	}
	if co.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", co.ConnectTimeout)
	}
	if co.Username != "u" || co.Password != "p" {
		t.Errorf("credentials not set")
	}
}

func TestOnMessageCopiesPayload(t *testing.T) {
	b := newBus(Options{QueueSize: 1})
	payload := []byte(`{"move":1}`)
	b.onMessage(nil, fakeMessage{topic: "light_and_heavy/move", payload: payload})
	payload[0] = 'X'

	d := <-b.Deliveries()
	if d.Channel != "light_and_heavy/move" || string(d.Payload) != `{"move":1}` {
		t.Errorf("delivery = %s %q", d.Channel, d.Payload)
	}

	// Full queue and closed queue both drop without blocking.
	b.onMessage(nil, fakeMessage{topic: "t", payload: []byte("1")})
	b.onMessage(nil, fakeMessage{topic: "t", payload: []byte("2")})
	b.Close()
	b.onMessage(nil, fakeMessage{topic: "t", payload: []byte("3")})
}

// TestBusLive needs an MQTT broker at LH_TEST_MQTT, e.g. tcp://localhost:1883.
func TestBusLive(t *testing.T) {
	url := os.Getenv("LH_TEST_MQTT")
	if url == "" {
		t.Skip("LH_TEST_MQTT not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := Dial(ctx, Options{BrokerURL: url, ClientID: "lhbot_test_" + time.Now().Format("150405")})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer b.Close()

	topic := "lhbot_test/" + time.Now().Format("150405.000")
	if err := b.Subscribe(ctx, topic); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if err := b.Publish(ctx, topic, []byte("ping"), false); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	select {
	case d := <-b.Deliveries():
		if string(d.Payload) != "ping" {
			t.Errorf("payload = %q, want ping", d.Payload)
		}
	case <-ctx.Done():
		t.Fatal("no delivery")
	}
}
