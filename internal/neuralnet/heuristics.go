package neuralnet

import "github.com/yourusername/lhbot/pkg/engine"

// heuristics.go holds the hand-made features fed to the network next to
// the raw board.

var lineDirs = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// WinningDrops marks the columns where a piece of player p, dropped on
// the current board, would complete four in a line.
func WinningDrops(b engine.Board, p engine.Player) [engine.Cols]bool {
	var drops [engine.Cols]bool
	for c := 0; c < engine.Cols; c++ {
		if b.ColumnFull(c) {
			continue
		}
		r := b.Height(c)
		drops[c] = lineThrough(b, r, c, p)
	}
	return drops
}

// Threats counts the columns in WinningDrops.
func Threats(b engine.Board, p engine.Player) int {
	n := 0
	for _, ok := range WinningDrops(b, p) {
		if ok {
			n++
		}
	}
	return n
}

// lineThrough reports whether cell (r, c), taken as owned by p, lies on
// a run of at least four cells owned by p.
func lineThrough(b engine.Board, r, c int, p engine.Player) bool {
	for _, d := range lineDirs {
		run := 1 + runLength(b, r, c, d[0], d[1], p) + runLength(b, r, c, -d[0], -d[1], p)
		if run >= 4 {
			return true
		}
	}
	return false
}

func runLength(b engine.Board, r, c, dr, dc int, p engine.Player) int {
	n := 0
	for {
		r, c = r+dr, c+dc
		if r < 0 || r >= engine.Rows || c < 0 || c >= engine.Cols || b[r][c].Owner() != p {
			return n
		}
		n++
	}
}
