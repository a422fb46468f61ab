// Package wsbus connects to a relay server over WebSocket and exposes it
// as a transport.Bus.
package wsbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/pkg/relay"
	"github.com/yourusername/lhbot/pkg/transport"
)

const writeWait = 10 * time.Second

// Bus is a relay connection.
type Bus struct {
	conn  *websocket.Conn
	queue *transport.Queue
	log   *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string, log *zap.Logger) (*Bus, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing relay %s: %w", url, err)
	}
	b := &Bus{
		conn:  conn,
		queue: transport.NewQueue(transport.DefaultQueueSize),
		log:   logger.OrNop(log).With(zap.String("relay", url)),
		done:  make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

// Subscribe asks the relay for messages on channel.
func (b *Bus) Subscribe(ctx context.Context, channel string) error {
	return b.write(ctx, relay.Frame{Op: relay.OpSubscribe, Channel: channel})
}

// Publish sends payload to channel through the relay.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte, retained bool) error {
	return b.write(ctx, relay.Frame{
		Op:       relay.OpPublish,
		Channel:  channel,
		Payload:  string(payload),
		Retained: retained,
	})
}

// Deliveries returns the inbound stream. It closes when the connection
// is lost or the bus is closed.
func (b *Bus) Deliveries() <-chan transport.Delivery {
	return b.queue.C()
}

// Close closes the connection and waits for the reader to stop.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		b.writeMu.Unlock()
		err = b.conn.Close()
	})
	<-b.done
	return err
}

func (b *Bus) write(ctx context.Context, f relay.Frame) error {
	if b.queue.Closed() {
		return transport.ErrClosed
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(deadline)
	if err := b.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("relay %s %s: %w", f.Op, f.Channel, err)
	}
	return nil
}

func (b *Bus) readLoop() {
	defer close(b.done)
	defer b.queue.Close()
	for {
		var f relay.Frame
		if err := b.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				b.log.Debug("relay read ended", zap.Error(err))
			}
			return
		}
		switch f.Op {
		case relay.OpMessage:
			if !b.queue.Deliver(transport.Delivery{Channel: f.Channel, Payload: []byte(f.Payload)}) {
				b.log.Warn("delivery dropped", zap.String("channel", f.Channel))
			}
		case relay.OpError:
			b.log.Warn("relay error", zap.String("channel", f.Channel), zap.String("error", f.Error))
		}
	}
}
