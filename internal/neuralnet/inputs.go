package neuralnet

import (
	"github.com/yourusername/lhbot/pkg/engine"
)

// Input layout, always from the point of view of the player to move:
//
//	[0, 84)    per cell: own piece weight, then opponent piece weight
//	[84, 88)   own light, own heavy, opponent light, opponent heavy (scaled)
//	[88, 95)   column heights (scaled)
//	[95, 109)  own winning drops per column, then opponent winning drops
const (
	cellInputs   = 2 * engine.Rows * engine.Cols
	countInputs  = 4
	heightInputs = engine.Cols
	threatInputs = 2 * engine.Cols

	NumInputs  = cellInputs + countInputs + heightInputs + threatInputs
	NumOutputs = engine.NumActions
)

// pieceWeight is the input value of a piece by class.
var pieceWeight = [2]float32{engine.Light: 0.5, engine.Heavy: 1.0}

// Inputs encodes a session for player p.
func Inputs(s engine.GameSession, p engine.Player) []float32 {
	in := make([]float32, NumInputs)
	opp := p.Other()

	i := 0
	for r := 0; r < engine.Rows; r++ {
		for c := 0; c < engine.Cols; c++ {
			cell := s.Board[r][c]
			switch cell.Owner() {
			case p:
				in[i] = pieceWeight[cell.Class()]
			case opp:
				in[i+1] = pieceWeight[cell.Class()]
			}
			i += 2
		}
	}

	own, theirs := s.InventoryOf(p), s.InventoryOf(opp)
	in[i] = float32(own.Light) / engine.InitialLight
	in[i+1] = float32(own.Heavy) / engine.InitialHeavy
	in[i+2] = float32(theirs.Light) / engine.InitialLight
	in[i+3] = float32(theirs.Heavy) / engine.InitialHeavy
	i += countInputs

	for c := 0; c < engine.Cols; c++ {
		in[i+c] = float32(s.Board.Height(c)) / engine.Rows
	}
	i += heightInputs

	ownDrops, oppDrops := WinningDrops(s.Board, p), WinningDrops(s.Board, opp)
	for c := 0; c < engine.Cols; c++ {
		if ownDrops[c] {
			in[i+c] = 1
		}
		if oppDrops[c] {
			in[i+engine.Cols+c] = 1
		}
	}
	return in
}

// ObservationInputs decodes an observation and encodes it for the player
// to move.
func ObservationInputs(obs engine.Observation) ([]float32, engine.GameSession, error) {
	s, err := engine.Decode(obs)
	if err != nil {
		return nil, s, err
	}
	return Inputs(s, s.Current), s, nil
}
