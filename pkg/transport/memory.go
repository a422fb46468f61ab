package transport

import (
	"context"
	"sync"
)

// MemoryBroker routes messages between in-process buses and keeps the
// last retained payload of each channel. An empty retained payload clears
// the channel.
type MemoryBroker struct {
	mu       sync.RWMutex
	retained map[string][]byte
	subs     map[string]map[*MemoryBus]struct{}
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		retained: make(map[string][]byte),
		subs:     make(map[string]map[*MemoryBus]struct{}),
	}
}

// Connect returns a new bus attached to the broker.
func (b *MemoryBroker) Connect() *MemoryBus {
	return b.ConnectSize(DefaultQueueSize)
}

// ConnectSize returns a new bus with an inbound buffer of n deliveries.
func (b *MemoryBroker) ConnectSize(n int) *MemoryBus {
	return &MemoryBus{
		broker: b,
		queue:  NewQueue(n),
	}
}

// Retained returns the retained payload of a channel.
func (b *MemoryBroker) Retained(channel string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.retained[channel]
	return p, ok
}

func (b *MemoryBroker) subscribe(bus *MemoryBus, channel string) {
	b.mu.Lock()
	set, ok := b.subs[channel]
	if !ok {
		set = make(map[*MemoryBus]struct{})
		b.subs[channel] = set
	}
	_, already := set[bus]
	set[bus] = struct{}{}
	retained, hasRetained := b.retained[channel]
	b.mu.Unlock()

	if !already && hasRetained {
		bus.deliver(Delivery{Channel: channel, Payload: retained})
	}
}

func (b *MemoryBroker) publish(channel string, payload []byte, retained bool) {
	b.mu.Lock()
	if retained {
		if len(payload) == 0 {
			delete(b.retained, channel)
		} else {
			b.retained[channel] = payload
		}
	}
	targets := make([]*MemoryBus, 0, len(b.subs[channel]))
	for bus := range b.subs[channel] {
		targets = append(targets, bus)
	}
	b.mu.Unlock()

	for _, bus := range targets {
		bus.deliver(Delivery{Channel: channel, Payload: payload})
	}
}

func (b *MemoryBroker) detach(bus *MemoryBus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.subs {
		delete(set, bus)
	}
}

// MemoryBus is one connection to a MemoryBroker.
type MemoryBus struct {
	broker *MemoryBroker
	queue  *Queue
}

// Subscribe registers interest in a channel. A retained payload on the
// channel is delivered immediately.
func (m *MemoryBus) Subscribe(ctx context.Context, channel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.queue.Closed() {
		return ErrClosed
	}
	m.broker.subscribe(m, channel)
	return nil
}

// Publish sends payload to every bus subscribed to channel.
func (m *MemoryBus) Publish(ctx context.Context, channel string, payload []byte, retained bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.queue.Closed() {
		return ErrClosed
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	m.broker.publish(channel, data, retained)
	return nil
}

// Deliveries returns the inbound stream. It is closed by Close.
func (m *MemoryBus) Deliveries() <-chan Delivery {
	return m.queue.C()
}

// Dropped returns the number of deliveries lost to a full queue.
func (m *MemoryBus) Dropped() int64 {
	return m.queue.Dropped()
}

// Close detaches the bus and closes its delivery stream.
func (m *MemoryBus) Close() error {
	m.broker.detach(m)
	m.queue.Close()
	return nil
}

func (m *MemoryBus) deliver(d Delivery) {
	m.queue.Deliver(d)
}
