package transport

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, bus Bus) Delivery {
	t.Helper()
	select {
	case d, ok := <-bus.Deliveries():
		if !ok {
			t.Fatal("delivery stream closed")
		}
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return Delivery{}
}

func expectNone(t *testing.T, bus Bus) {
	t.Helper()
	select {
	case d := <-bus.Deliveries():
		t.Fatalf("unexpected delivery on %s: %s", d.Channel, d.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryPublishReachesSubscribers(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()
	a, b := broker.Connect(), broker.Connect()
	defer a.Close()
	defer b.Close()

	for _, bus := range []*MemoryBus{a, b} {
		if err := bus.Subscribe(ctx, "move"); err != nil {
			t.Fatalf("Subscribe error: %v", err)
		}
	}
	if err := a.Publish(ctx, "move", []byte("x"), false); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	// The publisher sees its own message too.
	for _, bus := range []*MemoryBus{a, b} {
		d := recv(t, bus)
		if d.Channel != "move" || string(d.Payload) != "x" {
			t.Errorf("delivery = %s %q, want move %q", d.Channel, d.Payload, "x")
		}
	}

	if err := a.Publish(ctx, "draw", []byte("y"), false); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	expectNone(t, b)
}

func TestMemoryRetained(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()
	pub := broker.Connect()
	defer pub.Close()

	if err := pub.Publish(ctx, "challenge", []byte("c1"), true); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	late := broker.Connect()
	defer late.Close()
	if err := late.Subscribe(ctx, "challenge"); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if d := recv(t, late); string(d.Payload) != "c1" {
		t.Errorf("retained payload = %q, want %q", d.Payload, "c1")
	}

	// Clearing the retained message still delivers the empty payload to
	// current subscribers.
	if err := pub.Publish(ctx, "challenge", nil, true); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if d := recv(t, late); len(d.Payload) != 0 {
		t.Errorf("clear payload = %q, want empty", d.Payload)
	}
	if _, ok := broker.Retained("challenge"); ok {
		t.Error("retained message not cleared")
	}

	later := broker.Connect()
	defer later.Close()
	if err := later.Subscribe(ctx, "challenge"); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	expectNone(t, later)
}

func TestMemoryDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()
	bus := broker.ConnectSize(1)
	defer bus.Close()

	if err := bus.Subscribe(ctx, "move"); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := bus.Publish(ctx, "move", []byte{byte(i)}, false); err != nil {
			t.Fatalf("Publish error: %v", err)
		}
	}
	if got := bus.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestMemoryClose(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBroker().Connect()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if _, ok := <-bus.Deliveries(); ok {
		t.Error("Deliveries not closed")
	}
	if err := bus.Publish(ctx, "move", nil, false); err != ErrClosed {
		t.Errorf("Publish after Close err = %v, want %v", err, ErrClosed)
	}
	if err := bus.Subscribe(ctx, "move"); err != ErrClosed {
		t.Errorf("Subscribe after Close err = %v, want %v", err, ErrClosed)
	}
}
