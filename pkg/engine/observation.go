package engine

import (
	"errors"
	"fmt"
	"math"
)

// ObservationSize is the length of an observation: one value per cell
// followed by four inventory counts.
const ObservationSize = Rows*Cols + 4

// Observation bounds.
const (
	MinCellValue = -2
	MaxCellValue = 2
)

// ErrInvalidObservation is returned when an observation cannot be decoded.
var ErrInvalidObservation = errors.New("invalid observation")

// Observation is the numeric view of a session handed to a decision
// policy. Cells come first in row-major order, then
// [one.light, one.heavy, two.light, two.heavy].
type Observation [ObservationSize]float32

// Float64s returns the observation as a float64 slice.
func (o Observation) Float64s() []float64 {
	out := make([]float64, ObservationSize)
	for i, v := range o {
		out[i] = float64(v)
	}
	return out
}

// Encode builds the observation of a session. It depends on nothing but
// the board and inventories.
func Encode(s GameSession) Observation {
	var obs Observation
	i := 0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			obs[i] = float32(s.Board[r][c].Value())
			i++
		}
	}
	obs[i] = float32(s.Inventory[PlayerOne].Light)
	obs[i+1] = float32(s.Inventory[PlayerOne].Heavy)
	obs[i+2] = float32(s.Inventory[PlayerTwo].Light)
	obs[i+3] = float32(s.Inventory[PlayerTwo].Heavy)
	return obs
}

// Decode rebuilds a session from an observation. Cells and counts are
// recovered exactly; the player to move is inferred from the number of
// pieces each side has placed. Phase is Idle and no role is bound.
func Decode(obs Observation) (GameSession, error) {
	s := Reset()
	i := 0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			v, ok := wholeNumber(obs[i])
			if !ok {
				return s, fmt.Errorf("%w: cell %d is %v", ErrInvalidObservation, i, obs[i])
			}
			cell, ok := CellFromValue(v)
			if !ok {
				return s, fmt.Errorf("%w: cell %d out of range: %d", ErrInvalidObservation, i, v)
			}
			if cell != Empty && r > 0 && s.Board[r-1][c] == Empty {
				return s, fmt.Errorf("%w: floating piece at row %d col %d", ErrInvalidObservation, r, c)
			}
			s.Board[r][c] = cell
			i++
		}
	}

	limits := [4]int{InitialLight, InitialHeavy, InitialLight, InitialHeavy}
	var counts [4]int
	for k := 0; k < 4; k++ {
		v, ok := wholeNumber(obs[i+k])
		if !ok || v < 0 || v > limits[k] {
			return s, fmt.Errorf("%w: count %d out of range: %v", ErrInvalidObservation, k, obs[i+k])
		}
		counts[k] = v
	}
	s.Inventory[PlayerOne] = Inventory{Light: counts[0], Heavy: counts[1]}
	s.Inventory[PlayerTwo] = Inventory{Light: counts[2], Heavy: counts[3]}
	s.Current = InferCurrent(s)
	s.Moves = placed(s.Inventory[PlayerOne]) + placed(s.Inventory[PlayerTwo])
	return s, nil
}

// InferCurrent returns the player to move judging by how many pieces each
// side has placed. PlayerOne moves whenever both have placed equally.
func InferCurrent(s GameSession) Player {
	if placed(s.Inventory[PlayerOne]) > placed(s.Inventory[PlayerTwo]) {
		return PlayerTwo
	}
	return PlayerOne
}

func placed(inv Inventory) int {
	return InitialLight + InitialHeavy - inv.Light - inv.Heavy
}

func wholeNumber(v float32) (int, bool) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
