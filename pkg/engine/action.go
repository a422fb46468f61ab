package engine

import (
	"errors"
	"fmt"
)

// NumActions is the size of the action space: one light and one heavy
// placement per column.
const NumActions = 2 * Cols

// ErrInvalidAction is returned for action ids or actions outside the
// action space.
var ErrInvalidAction = errors.New("invalid action")

// Action is a decoded action id.
type Action struct {
	Column int
	Class  PieceClass
}

func (a Action) String() string {
	return fmt.Sprintf("%s@%d", a.Class, a.Column)
}

// DecodeAction maps an id in [0, NumActions) to its column (id/2) and
// class (light for even ids, heavy for odd ids).
func DecodeAction(id int) (Action, error) {
	if id < 0 || id >= NumActions {
		return Action{}, fmt.Errorf("%w: id %d not in [0, %d)", ErrInvalidAction, id, NumActions)
	}
	return Action{Column: id / 2, Class: PieceClass(id % 2)}, nil
}

// EncodeAction is the inverse of DecodeAction.
func EncodeAction(a Action) (int, error) {
	if a.Column < 0 || a.Column >= Cols || !a.Class.Valid() {
		return 0, fmt.Errorf("%w: %d/%d", ErrInvalidAction, a.Column, a.Class)
	}
	return a.Column*2 + int(a.Class), nil
}
