package engine

import (
	"errors"
	"fmt"
)

// ErrIllegalMove is the root of every rejected placement. A rejected
// placement never changes the session.
var ErrIllegalMove = errors.New("illegal move")

var (
	ErrSessionEnded      = fmt.Errorf("%w: session has ended", ErrIllegalMove)
	ErrNotYourTurn       = fmt.Errorf("%w: not this player's turn", ErrIllegalMove)
	ErrColumnOutOfRange  = fmt.Errorf("%w: column out of range", ErrIllegalMove)
	ErrInvalidPieceClass = fmt.Errorf("%w: invalid piece class", ErrIllegalMove)
	ErrColumnFull        = fmt.Errorf("%w: column full", ErrIllegalMove)
)

// FaultNoRemainingPieces is the reason given when a player tries to place
// a piece class it has run out of.
const FaultNoRemainingPieces = "no remaining pieces"

// OutcomeKind classifies the result of Place.
type OutcomeKind int8

const (
	Continue OutcomeKind = iota // placement applied, game goes on
	Fault                       // terminal fault, session is Ended
	Rejected                    // illegal, session unchanged
)

func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Fault:
		return "fault"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Outcome is the result of a placement attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Place puts a piece of class c for player p in the lowest empty cell of
// col. On success the inventory is decremented and the turn passes to the
// other player.
//
// Running out of the requested class is a fault: the returned session is
// Ended and the outcome is Fault("no remaining pieces"). Every other
// violation is returned as an error wrapping ErrIllegalMove together with
// the unchanged session.
func Place(s GameSession, p Player, c PieceClass, col int) (GameSession, Outcome, error) {
	if err := checkPlace(s, p, c, col); err != nil {
		return s, Outcome{Kind: Rejected, Reason: err.Error()}, err
	}

	if s.Inventory[p].Remaining(c) <= 0 {
		s.Phase = Ended
		return s, Outcome{Kind: Fault, Reason: FaultNoRemainingPieces}, nil
	}

	if s.Board.ColumnFull(col) {
		return s, Outcome{Kind: Rejected, Reason: ErrColumnFull.Error()}, ErrColumnFull
	}

	row := s.Board.Height(col)
	s.Board[row][col] = CellFor(p, c)
	s.Inventory[p].take(c)
	s.Current = p.Other()
	s.Moves++

	return s, Outcome{Kind: Continue}, nil
}

func checkPlace(s GameSession, p Player, c PieceClass, col int) error {
	if s.Phase == Ended {
		return ErrSessionEnded
	}
	if p != s.Current {
		return ErrNotYourTurn
	}
	if col < 0 || col >= Cols {
		return ErrColumnOutOfRange
	}
	if !c.Valid() {
		return ErrInvalidPieceClass
	}
	return nil
}

// IsLegal reports whether Place would apply the placement.
func IsLegal(s GameSession, p Player, c PieceClass, col int) bool {
	if checkPlace(s, p, c, col) != nil {
		return false
	}
	return s.Inventory[p].Remaining(c) > 0 && !s.Board.ColumnFull(col)
}

// LegalActions returns the action ids the current player may play,
// in ascending order.
func LegalActions(s GameSession) []int {
	actions := make([]int, 0, NumActions)
	for id := 0; id < NumActions; id++ {
		a := Action{Column: id / 2, Class: PieceClass(id % 2)}
		if IsLegal(s, s.Current, a.Class, a.Column) {
			actions = append(actions, id)
		}
	}
	return actions
}

// Apply decodes an action id and places it for the current player.
// Out-of-range ids return ErrInvalidAction and leave the session unchanged.
func Apply(s GameSession, id int) (GameSession, Outcome, error) {
	a, err := DecodeAction(id)
	if err != nil {
		return s, Outcome{Kind: Rejected, Reason: err.Error()}, err
	}
	return Place(s, s.Current, a.Class, a.Column)
}

// Winner reports a player with four pieces in a line, horizontally,
// vertically or diagonally. Piece weight does not matter.
func Winner(b Board) (Player, bool) {
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			owner := b[r][c].Owner()
			if owner == NoPlayer {
				continue
			}
			for _, d := range dirs {
				if lineOf(b, r, c, d[0], d[1], owner) {
					return owner, true
				}
			}
		}
	}
	return NoPlayer, false
}

func lineOf(b Board, r, c, dr, dc int, owner Player) bool {
	for i := 1; i < 4; i++ {
		rr, cc := r+dr*i, c+dc*i
		if rr < 0 || rr >= Rows || cc < 0 || cc >= Cols {
			return false
		}
		if b[rr][cc].Owner() != owner {
			return false
		}
	}
	return true
}
