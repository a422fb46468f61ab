// Package transport defines the narrow bus interface the session machine
// depends on and an in-process implementation of it.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("transport closed")

// Delivery is one inbound message.
type Delivery struct {
	Channel string
	Payload []byte
}

// Bus is a publish/subscribe connection. Deliveries for every subscribed
// channel arrive on a single stream, including messages published by the
// same connection. Delivery is at most once.
type Bus interface {
	Subscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, channel string, payload []byte, retained bool) error
	Deliveries() <-chan Delivery
	Close() error
}

// DefaultQueueSize is the inbound buffer of the bundled buses. Deliveries
// beyond it are dropped.
const DefaultQueueSize = 256
