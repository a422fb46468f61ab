// Package archive records finished light and heavy sessions and stores
// them as JSON lines or in PostgreSQL.
package archive

import (
	"fmt"
	"time"

	"github.com/yourusername/lhbot/internal/positionid"
	"github.com/yourusername/lhbot/pkg/engine"
)

// Result describes how a session ended.
type Result string

const (
	ResultWin        Result = "win"         // four in a line
	ResultDraw       Result = "draw"        // draw message received
	ResultFault      Result = "fault"       // terminal placement fault
	ResultNoMoves    Result = "no_moves"    // player to move had no legal action
	ResultAbandoned  Result = "abandoned"   // process stopped mid-game
	ResultInProgress Result = "in_progress" // not finished
)

// Move is one applied placement.
type Move struct {
	Seq         int                `json:"seq"`
	Player      engine.Player      `json:"player"`
	Column      int                `json:"col"`
	Class       string             `json:"type"`
	Observation engine.Observation `json:"observation"` // before the move
}

// Record is the full history of one session.
type Record struct {
	SessionID     string        `json:"sessionId"`
	PlayerOne     string        `json:"playerOne"`
	PlayerTwo     string        `json:"playerTwo"`
	Self          engine.Player `json:"self"`
	Started       time.Time     `json:"started"`
	Finished      time.Time     `json:"finished,omitempty"`
	Result        Result        `json:"result"`
	Reason        string        `json:"reason,omitempty"`
	Winner        engine.Player `json:"winner"`
	FinalPosition string        `json:"finalPosition,omitempty"`
	Moves         []Move        `json:"moves"`
}

// NewRecord starts a record for a session between two clients.
func NewRecord(sessionID, playerOne, playerTwo string, self engine.Player) *Record {
	return &Record{
		SessionID: sessionID,
		PlayerOne: playerOne,
		PlayerTwo: playerTwo,
		Self:      self,
		Started:   time.Now().UTC(),
		Result:    ResultInProgress,
		Winner:    engine.NoPlayer,
		Moves:     make([]Move, 0, 2*(engine.InitialLight+engine.InitialHeavy)),
	}
}

// AddMove appends a placement by p. before is the session the move was
// applied to.
func (r *Record) AddMove(before engine.GameSession, p engine.Player, a engine.Action) {
	r.Moves = append(r.Moves, Move{
		Seq:         len(r.Moves) + 1,
		Player:      p,
		Column:      a.Column,
		Class:       a.Class.String(),
		Observation: engine.Encode(before),
	})
}

// Finish closes the record.
func (r *Record) Finish(final engine.GameSession, result Result, reason string, winner engine.Player) {
	r.Finished = time.Now().UTC()
	r.Result = result
	r.Reason = reason
	r.Winner = winner
	r.FinalPosition = positionid.PositionID(final)
}

// Replay applies every move to a fresh session and checks each stored
// observation against the replayed position.
func (r *Record) Replay() (engine.GameSession, error) {
	s := engine.Reset()
	s.Phase = engine.Playing
	for _, m := range r.Moves {
		if engine.Encode(s) != m.Observation {
			return s, fmt.Errorf("move %d: observation does not match replayed position", m.Seq)
		}
		class, ok := engine.ParsePieceClass(m.Class)
		if !ok {
			return s, fmt.Errorf("move %d: unknown piece type %q", m.Seq, m.Class)
		}
		next, outcome, err := engine.Place(s, m.Player, class, m.Column)
		if err != nil {
			return s, fmt.Errorf("move %d: %w", m.Seq, err)
		}
		if outcome.Kind != engine.Continue {
			return next, fmt.Errorf("move %d: %s", m.Seq, outcome.Reason)
		}
		s = next
	}
	return s, nil
}
