// Package redisbus carries game channels over Redis pub/sub. Redis has
// no retained messages, so the last retained payload of a channel is
// kept under a key and replayed on Subscribe.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/pkg/transport"
)

// DefaultKeyPrefix prefixes the keys holding retained payloads.
const DefaultKeyPrefix = "lhbot:retained:"

// Options configures a Bus.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	QueueSize int
	Logger    *zap.Logger
}

func (o Options) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	}
}

// Bus is a Redis connection used as a transport.Bus.
type Bus struct {
	client *redis.Client
	pubsub *redis.PubSub
	queue  *transport.Queue
	prefix string
	log    *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to Redis and starts receiving.
func Dial(ctx context.Context, opts Options) (*Bus, error) {
	client := redis.NewClient(opts.redisOptions())
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", opts.Addr, err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	b := &Bus{
		client: client,
		pubsub: client.Subscribe(ctx),
		queue:  transport.NewQueue(opts.QueueSize),
		prefix: prefix,
		log:    logger.OrNop(opts.Logger).With(zap.String("redis", opts.Addr)),
		done:   make(chan struct{}),
	}
	go b.forward(b.pubsub.Channel())
	return b, nil
}

// RetainedKey returns the key holding the retained payload of channel.
func (b *Bus) RetainedKey(channel string) string {
	return b.prefix + channel
}

// Subscribe subscribes to channel and replays its retained payload.
func (b *Bus) Subscribe(ctx context.Context, channel string) error {
	if b.queue.Closed() {
		return transport.ErrClosed
	}
	if err := b.pubsub.Subscribe(ctx, channel); err != nil {
		return fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	payload, err := b.client.Get(ctx, b.RetainedKey(channel)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading retained %s: %w", channel, err)
	}
	b.queue.Deliver(transport.Delivery{Channel: channel, Payload: payload})
	return nil
}

// Publish sends payload to channel. A retained publish also stores the
// payload, or deletes it when empty.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte, retained bool) error {
	if b.queue.Closed() {
		return transport.ErrClosed
	}
	if retained {
		var err error
		if len(payload) == 0 {
			err = b.client.Del(ctx, b.RetainedKey(channel)).Err()
		} else {
			err = b.client.Set(ctx, b.RetainedKey(channel), payload, 0).Err()
		}
		if err != nil {
			return fmt.Errorf("storing retained %s: %w", channel, err)
		}
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	return nil
}

// Deliveries returns the inbound stream. It is closed by Close.
func (b *Bus) Deliveries() <-chan transport.Delivery {
	return b.queue.C()
}

// Close unsubscribes and closes the connection.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = errors.Join(b.pubsub.Close(), b.client.Close())
	})
	<-b.done
	return err
}

func (b *Bus) forward(ch <-chan *redis.Message) {
	defer close(b.done)
	defer b.queue.Close()
	for msg := range ch {
		if !b.queue.Deliver(transport.Delivery{Channel: msg.Channel, Payload: []byte(msg.Payload)}) {
			b.log.Warn("delivery dropped", zap.String("channel", msg.Channel))
		}
	}
}
