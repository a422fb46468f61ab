// Package mqttbus carries game channels over an MQTT broker, the
// transport used by the public light and heavy clients.
package mqttbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/pkg/transport"
)

// Options configures a Bus.
type Options struct {
	BrokerURL      string // tcp://, ssl://, ws:// or wss://
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	QueueSize      int
	Logger         *zap.Logger
}

// Bus is an MQTT client used as a transport.Bus.
type Bus struct {
	client mqtt.Client
	qos    byte
	queue  *transport.Queue
	log    *zap.Logger

	mu     sync.Mutex
	topics []string // resubscribed after a reconnect
}

func newBus(opts Options) *Bus {
	return &Bus{
		qos:   opts.QoS,
		queue: transport.NewQueue(opts.QueueSize),
		log:   logger.OrNop(opts.Logger).With(zap.String("broker", opts.BrokerURL)),
	}
}

func (b *Bus) clientOptions(opts Options) *mqtt.ClientOptions {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.log.Warn("mqtt connection lost", zap.Error(err))
		})
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	return co
}

// Dial connects to the broker.
func Dial(ctx context.Context, opts Options) (*Bus, error) {
	b := newBus(opts)
	b.client = mqtt.NewClient(b.clientOptions(opts))
	if err := wait(ctx, b.client.Connect()); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", opts.BrokerURL, err)
	}
	b.log.Info("mqtt connected", zap.String("client", opts.ClientID))
	return b, nil
}

// Subscribe subscribes to topic. Retained messages arrive from the broker.
func (b *Bus) Subscribe(ctx context.Context, topic string) error {
	if b.queue.Closed() {
		return transport.ErrClosed
	}
	if err := wait(ctx, b.client.Subscribe(topic, b.qos, b.onMessage)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.mu.Lock()
	b.topics = append(b.topics, topic)
	b.mu.Unlock()
	return nil
}

// Publish sends payload to topic. An empty retained payload clears the
// topic on the broker.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if b.queue.Closed() {
		return transport.ErrClosed
	}
	if err := wait(ctx, b.client.Publish(topic, b.qos, retained, payload)); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Deliveries returns the inbound stream. It is closed by Close.
func (b *Bus) Deliveries() <-chan transport.Delivery {
	return b.queue.C()
}

// Close disconnects from the broker.
func (b *Bus) Close() error {
	if b.queue.Close() && b.client != nil {
		b.client.Disconnect(250)
	}
	return nil
}

func (b *Bus) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	if !b.queue.Deliver(transport.Delivery{Channel: msg.Topic(), Payload: payload}) && !b.queue.Closed() {
		b.log.Warn("delivery dropped", zap.String("topic", msg.Topic()))
	}
}

// onConnect restores subscriptions after an automatic reconnect.
func (b *Bus) onConnect(c mqtt.Client) {
	b.mu.Lock()
	topics := append([]string(nil), b.topics...)
	b.mu.Unlock()
	for _, topic := range topics {
		if tok := c.Subscribe(topic, b.qos, b.onMessage); tok.WaitTimeout(10*time.Second) && tok.Error() != nil {
			b.log.Warn("resubscribe failed", zap.String("topic", topic), zap.Error(tok.Error()))
		}
	}
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
