// Package protocol defines the messages exchanged by light and heavy
// clients and their JSON encoding on the four game channels.
package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/yourusername/lhbot/pkg/engine"
)

// DefaultPrefix is the topic prefix used by the public clients.
const DefaultPrefix = "light_and_heavy"

// ErrParseFault is returned for payloads that do not match the message
// schema of their channel.
var ErrParseFault = errors.New("parse fault")

// ErrEmptyPayload is returned for empty payloads on the handshake
// channels. These clear retained messages and carry no message.
var ErrEmptyPayload = errors.New("empty payload")

// Kind is the variant of a message.
type Kind int8

const (
	KindChallenge Kind = iota
	KindChallengeAccepted
	KindMove
	KindDraw
)

func (k Kind) String() string {
	switch k {
	case KindChallenge:
		return "challenge"
	case KindChallengeAccepted:
		return "challenge_accepted"
	case KindMove:
		return "move"
	case KindDraw:
		return "draw"
	}
	return "unknown"
}

// Channels holds the channel name of every message kind.
type Channels struct {
	Challenge         string
	ChallengeAccepted string
	Move              string
	Draw              string
}

// NewChannels returns the channel names under prefix.
func NewChannels(prefix string) Channels {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Channels{
		Challenge:         prefix + "/challenge",
		ChallengeAccepted: prefix + "/challenge_accepted",
		Move:              prefix + "/move",
		Draw:              prefix + "/draw",
	}
}

// All returns the four channel names.
func (c Channels) All() []string {
	return []string{c.Challenge, c.ChallengeAccepted, c.Move, c.Draw}
}

// For returns the channel carrying messages of kind k.
func (c Channels) For(k Kind) string {
	switch k {
	case KindChallenge:
		return c.Challenge
	case KindChallengeAccepted:
		return c.ChallengeAccepted
	case KindMove:
		return c.Move
	case KindDraw:
		return c.Draw
	}
	return ""
}

// Kind maps a channel name back to its message kind.
func (c Channels) Kind(channel string) (Kind, bool) {
	switch channel {
	case c.Challenge:
		return KindChallenge, true
	case c.ChallengeAccepted:
		return KindChallengeAccepted, true
	case c.Move:
		return KindMove, true
	case c.Draw:
		return KindDraw, true
	}
	return 0, false
}

// Message is a decoded protocol message. Column, Class and Color are only
// meaningful for moves.
type Message struct {
	Kind   Kind
	Seq    int
	Nonce  string
	Sender string
	Column int
	Class  engine.PieceClass
	Color  string
}

// Action returns the action id of a move message.
func (m Message) Action() (int, error) {
	return engine.EncodeAction(engine.Action{Column: m.Column, Class: m.Class})
}

// wireMessage is the JSON form of every message. Pointer fields
// distinguish missing from zero values.
type wireMessage struct {
	Move     *int    `json:"move"`
	Col      *int    `json:"col,omitempty"`
	Type     *string `json:"type,omitempty"`
	Color    string  `json:"color,omitempty"`
	Nonce    *string `json:"nonce"`
	HMAC     string  `json:"hmac,omitempty"`
	ClientID *string `json:"clientId"`
}

// NewNonce returns a fresh message nonce.
func NewNonce() string {
	return "nonce_" + uuid.NewString()
}

// NewClientID returns a random client id of the form bot_xxxxxxxx.
func NewClientID() string {
	return "bot_" + uuid.NewString()[:8]
}

// Colors used by the browser client for each role and piece class.
var colors = [2][2]string{
	engine.PlayerOne: {engine.Light: "#ffff99", engine.Heavy: "#ffff00"},
	engine.PlayerTwo: {engine.Light: "#ff5050", engine.Heavy: "#ff0000"},
}

// ColorFor returns the piece color for a role and class.
func ColorFor(p engine.Player, c engine.PieceClass) string {
	if !p.Valid() || !c.Valid() {
		return ""
	}
	return colors[p][c]
}

// Codec encodes and decodes messages on a set of channels. When Secret is
// set every message is signed and unsigned inbound messages are rejected.
type Codec struct {
	Channels Channels
	Secret   []byte
}

// NewCodec returns a codec for the channels under prefix.
func NewCodec(prefix string, secret string) *Codec {
	c := &Codec{Channels: NewChannels(prefix)}
	if secret != "" {
		c.Secret = []byte(secret)
	}
	return c
}

// Encode returns the channel and payload for m.
func (c *Codec) Encode(m Message) (string, []byte, error) {
	channel := c.Channels.For(m.Kind)
	if channel == "" {
		return "", nil, fmt.Errorf("encode: unknown kind %d", m.Kind)
	}

	w := wireMessage{
		Move:     &m.Seq,
		Nonce:    &m.Nonce,
		ClientID: &m.Sender,
	}
	switch m.Kind {
	case KindChallenge, KindChallengeAccepted:
		t := m.Kind.String()
		w.Type = &t
	case KindMove:
		if _, err := m.Action(); err != nil {
			return "", nil, fmt.Errorf("encode move: %w", err)
		}
		t := m.Class.String()
		w.Col = &m.Column
		w.Type = &t
		w.Color = m.Color
	}
	if c.Secret != nil {
		w.HMAC = c.sign(m)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return "", nil, fmt.Errorf("encode: %w", err)
	}
	return channel, data, nil
}

// Decode parses a payload received on channel.
//
// Empty payloads on the handshake channels return ErrEmptyPayload. An empty
// draw payload is a valid Draw with no sender. Everything else that does
// not match the schema returns an error wrapping ErrParseFault, including
// an empty nonce and a handshake whose type names another channel.
func (c *Codec) Decode(channel string, payload []byte) (Message, error) {
	kind, ok := c.Channels.Kind(channel)
	if !ok {
		return Message{}, fmt.Errorf("%w: unknown channel %q", ErrParseFault, channel)
	}
	if len(payload) == 0 {
		if kind == KindDraw {
			return Message{Kind: KindDraw}, nil
		}
		return Message{}, ErrEmptyPayload
	}

	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrParseFault, err)
	}

	m := Message{Kind: kind}
	if kind == KindDraw {
		// Draw carries no required fields.
		if w.Move != nil {
			m.Seq = *w.Move
		}
		if w.Nonce != nil {
			m.Nonce = *w.Nonce
		}
		if w.ClientID != nil {
			m.Sender = *w.ClientID
		}
		return m, nil
	}

	if w.Move == nil || w.Nonce == nil || w.ClientID == nil {
		return Message{}, fmt.Errorf("%w: %s message missing move, nonce or clientId", ErrParseFault, kind)
	}
	if *w.Nonce == "" {
		return Message{}, fmt.Errorf("%w: %s message with empty nonce", ErrParseFault, kind)
	}
	m.Seq = *w.Move
	m.Nonce = *w.Nonce
	m.Sender = *w.ClientID

	// Handshake type is optional, but must name the channel when present.
	if kind != KindMove && w.Type != nil && *w.Type != kind.String() {
		return Message{}, fmt.Errorf("%w: %q message on the %s channel", ErrParseFault, *w.Type, kind)
	}

	if kind == KindMove {
		if w.Col == nil || w.Type == nil {
			return Message{}, fmt.Errorf("%w: move missing col or type", ErrParseFault)
		}
		class, ok := engine.ParsePieceClass(*w.Type)
		if !ok {
			return Message{}, fmt.Errorf("%w: unknown piece type %q", ErrParseFault, *w.Type)
		}
		m.Column = *w.Col
		m.Class = class
		m.Color = w.Color
	}

	if c.Secret != nil && !c.verify(m, w.HMAC) {
		return Message{}, fmt.Errorf("%w: bad hmac on %s from %s", ErrParseFault, kind, m.Sender)
	}
	return m, nil
}

// signedText is the string the browser client signs. For moves the
// sequence number and column are added together before concatenation.
func signedText(m Message) string {
	if m.Kind == KindMove {
		return strconv.Itoa(m.Seq+m.Column) + m.Class.String() + m.Nonce + m.Color
	}
	return strconv.Itoa(m.Seq) + m.Nonce
}

func (c *Codec) sign(m Message) string {
	mac := hmac.New(sha256.New, c.Secret)
	mac.Write([]byte(signedText(m)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Codec) verify(m Message, sum string) bool {
	got, err := hex.DecodeString(sum)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, c.Secret)
	mac.Write([]byte(signedText(m)))
	return hmac.Equal(got, mac.Sum(nil))
}
