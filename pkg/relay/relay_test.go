package relay

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourusername/lhbot/pkg/transport"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	return f
}

func TestRelayPublishSubscribe(t *testing.T) {
	srv := httptest.NewServer(New(nil, nil))
	defer srv.Close()
	a, b := dial(t, srv), dial(t, srv)

	a.WriteJSON(Frame{Op: OpSubscribe, Channel: "lh/move"})
	// Our own publish comes back once the subscription is in place.
	a.WriteJSON(Frame{Op: OpPublish, Channel: "lh/move", Payload: "first"})
	if f := read(t, a); f.Op != OpMessage || f.Payload != "first" {
		t.Fatalf("frame = %+v, want message first", f)
	}

	b.WriteJSON(Frame{Op: OpPublish, Channel: "lh/move", Payload: `{"move":1}`})
	f := read(t, a)
	if f.Op != OpMessage || f.Channel != "lh/move" || f.Payload != `{"move":1}` {
		t.Errorf("frame = %+v, want message on lh/move", f)
	}
}

func TestRelayRetained(t *testing.T) {
	broker := transport.NewMemoryBroker()
	srv := httptest.NewServer(New(broker, nil))
	defer srv.Close()

	pub := dial(t, srv)
	pub.WriteJSON(Frame{Op: OpPublish, Channel: "lh/challenge", Payload: "hello", Retained: true})
	pub.WriteJSON(Frame{Op: OpPing})
	if f := read(t, pub); f.Op != OpPong {
		t.Fatalf("frame = %+v, want pong", f)
	}
	if got, ok := broker.Retained("lh/challenge"); !ok || string(got) != "hello" {
		t.Fatalf("Retained = %q, %v", got, ok)
	}

	sub := dial(t, srv)
	sub.WriteJSON(Frame{Op: OpSubscribe, Channel: "lh/challenge"})
	if f := read(t, sub); f.Payload != "hello" {
		t.Errorf("retained frame = %+v, want hello", f)
	}
}

func TestRelayErrors(t *testing.T) {
	srv := httptest.NewServer(New(nil, nil))
	defer srv.Close()
	conn := dial(t, srv)

	tests := []Frame{
		{Op: "bogus"},
		{Op: OpSubscribe},
		{Op: OpPublish, Payload: "x"},
	}
	for _, in := range tests {
		conn.WriteJSON(in)
		if f := read(t, conn); f.Op != OpError || f.Error == "" {
			t.Errorf("reply to %+v = %+v, want error", in, f)
		}
	}
}
