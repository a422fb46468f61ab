// Package relay is a small WebSocket publish/subscribe broker with
// retained messages, for local games without an MQTT broker.
package relay

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/pkg/transport"
)

// Frame operations.
const (
	OpSubscribe = "subscribe" // client to relay
	OpPublish   = "publish"   // client to relay
	OpMessage   = "message"   // relay to client
	OpPing      = "ping"
	OpPong      = "pong"
	OpError     = "error"
)

// Frame is the JSON unit exchanged over a relay connection. Payload is
// the message text; an empty retained publish clears the channel.
type Frame struct {
	Op       string `json:"op"`
	Channel  string `json:"channel,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Retained bool   `json:"retained,omitempty"`
	Error    string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server accepts relay connections. Every connection gets its own bus on
// a shared in-memory broker.
type Server struct {
	broker  *transport.MemoryBroker
	log     *zap.Logger
	clients atomic.Int64
}

// New returns a relay on broker. A nil broker gets a fresh one.
func New(broker *transport.MemoryBroker, log *zap.Logger) *Server {
	if broker == nil {
		broker = transport.NewMemoryBroker()
	}
	return &Server{broker: broker, log: logger.OrNop(log)}
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// ServeHTTP upgrades the request and serves the connection until it
// closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		ctx:  r.Context(),
		conn: conn,
		bus:  s.broker.Connect(),
		send: make(chan Frame, transport.DefaultQueueSize),
		log:  s.log.With(zap.String("remote", r.RemoteAddr)),
	}
	s.clients.Add(1)
	defer s.clients.Add(-1)
	c.log.Debug("relay client connected")

	go c.writePump()
	go c.forward()
	c.readPump()
	c.log.Debug("relay client disconnected")
}

type client struct {
	ctx  context.Context
	conn *websocket.Conn
	bus  *transport.MemoryBus
	send chan Frame
	log  *zap.Logger
}

// forward copies bus deliveries to the connection. It closes send once
// the bus is closed.
func (c *client) forward() {
	defer close(c.send)
	for d := range c.bus.Deliveries() {
		c.queue(Frame{Op: OpMessage, Channel: d.Channel, Payload: string(d.Payload)})
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for f := range c.send {
		if err := c.conn.WriteJSON(f); err != nil {
			return
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.bus.Close()
		c.conn.Close()
	}()
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		c.handleFrame(f)
	}
}

func (c *client) handleFrame(f Frame) {
	switch f.Op {
	case OpSubscribe:
		if f.Channel == "" {
			c.queue(Frame{Op: OpError, Error: "missing channel"})
			return
		}
		if err := c.bus.Subscribe(c.ctx, f.Channel); err != nil {
			c.queue(Frame{Op: OpError, Channel: f.Channel, Error: err.Error()})
		}
	case OpPublish:
		if f.Channel == "" {
			c.queue(Frame{Op: OpError, Error: "missing channel"})
			return
		}
		if err := c.bus.Publish(c.ctx, f.Channel, []byte(f.Payload), f.Retained); err != nil {
			c.queue(Frame{Op: OpError, Channel: f.Channel, Error: err.Error()})
		}
	case OpPing:
		c.queue(Frame{Op: OpPong})
	default:
		c.queue(Frame{Op: OpError, Error: "unknown op " + f.Op})
	}
}

// queue hands f to the writer, dropping it when the writer is behind.
func (c *client) queue(f Frame) {
	select {
	case c.send <- f:
	default:
		c.log.Warn("relay frame dropped", zap.String("op", f.Op), zap.String("channel", f.Channel))
	}
}
