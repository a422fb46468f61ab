package wsbus

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/lhbot/pkg/relay"
	"github.com/yourusername/lhbot/pkg/transport"
)

func startRelay(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(relay.New(nil, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func next(t *testing.T, b *Bus) transport.Delivery {
	t.Helper()
	select {
	case d, ok := <-b.Deliveries():
		if !ok {
			t.Fatal("delivery stream closed")
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
	return transport.Delivery{}
}

func TestBusOverRelay(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	a, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer a.Close()
	b, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer b.Close()

	if err := a.Subscribe(ctx, "lh/move"); err != nil {
		t.Fatal(err)
	}
	a.Publish(ctx, "lh/move", []byte("echo"), false)
	if d := next(t, a); string(d.Payload) != "echo" {
		t.Fatalf("payload = %q, want echo", d.Payload)
	}

	b.Publish(ctx, "lh/move", []byte(`{"move":2}`), false)
	d := next(t, a)
	if d.Channel != "lh/move" || string(d.Payload) != `{"move":2}` {
		t.Errorf("delivery = %s %q", d.Channel, d.Payload)
	}
}

func TestBusRetainedClear(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	a, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer a.Close()

	a.Subscribe(ctx, "lh/challenge")
	a.Publish(ctx, "lh/challenge", []byte("c1"), true)
	next(t, a)
	a.Publish(ctx, "lh/challenge", nil, true)
	if d := next(t, a); len(d.Payload) != 0 {
		t.Errorf("clear payload = %q, want empty", d.Payload)
	}
}

func TestBusClose(t *testing.T) {
	ctx := context.Background()
	b, err := Dial(ctx, startRelay(t), nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	b.Close()
	if _, ok := <-b.Deliveries(); ok {
		t.Error("Deliveries not closed")
	}
	if err := b.Publish(ctx, "lh/move", []byte("x"), false); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
	b.Close()
}
