package session

import (
	"time"

	"github.com/yourusername/lhbot/internal/positionid"
	"github.com/yourusername/lhbot/pkg/engine"
)

// EventType classifies session events.
type EventType string

const (
	EventTransition EventType = "transition"
	EventMove       EventType = "move"
	EventEnd        EventType = "end"
)

// Event is a notification about the session, for status streams.
type Event struct {
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	SessionID  string    `json:"sessionId,omitempty"`
	Phase      string    `json:"phase"`
	Player     string    `json:"player,omitempty"`
	Column     int       `json:"col"`
	Class      string    `json:"pieceType,omitempty"`
	Seq        int       `json:"move,omitempty"`
	Result     string    `json:"result,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	PositionID string    `json:"positionId"`
}

func newEvent(t EventType, s engine.GameSession) Event {
	return Event{
		Type:       t,
		Time:       time.Now().UTC(),
		SessionID:  s.SessionID,
		Phase:      s.Phase.String(),
		PositionID: positionid.PositionID(s),
	}
}

// Subscribe returns a stream of events and a function that cancels it.
// Events are dropped for subscribers that fall behind.
func (m *Machine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
		m.subMu.Unlock()
	}
	return ch, cancel
}

func (m *Machine) emit(e Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
