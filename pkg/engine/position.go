// Package engine provides the game model for light and heavy checkers:
// the board, per-player piece inventories, placement rules and the
// numeric encodings consumed by decision policies.
package engine

// Board dimensions and starting inventories.
const (
	Rows         = 6
	Cols         = 7
	InitialLight = 11
	InitialHeavy = 10
)

// Player identifies one side of a game.
type Player int8

const (
	NoPlayer  Player = -1
	PlayerOne Player = 0 // moves first, positive values in the observation
	PlayerTwo Player = 1
)

// Other returns the opposing player.
func (p Player) Other() Player {
	switch p {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	}
	return NoPlayer
}

// Valid reports whether p is PlayerOne or PlayerTwo.
func (p Player) Valid() bool {
	return p == PlayerOne || p == PlayerTwo
}

func (p Player) String() string {
	switch p {
	case PlayerOne:
		return "one"
	case PlayerTwo:
		return "two"
	}
	return "none"
}

// PieceClass is the weight of a piece.
type PieceClass int8

const (
	Light PieceClass = 0
	Heavy PieceClass = 1
)

func (c PieceClass) String() string {
	switch c {
	case Light:
		return "light"
	case Heavy:
		return "heavy"
	}
	return "unknown"
}

// Valid reports whether c is Light or Heavy.
func (c PieceClass) Valid() bool {
	return c == Light || c == Heavy
}

// ParsePieceClass parses the wire name of a piece class.
func ParsePieceClass(s string) (PieceClass, bool) {
	switch s {
	case "light":
		return Light, true
	case "heavy":
		return Heavy, true
	}
	return 0, false
}

// Cell is the content of one board square.
type Cell int8

const (
	Empty Cell = iota
	LightA
	HeavyA
	LightB
	HeavyB
)

// CellFor returns the cell value for a piece of class c owned by p.
func CellFor(p Player, c PieceClass) Cell {
	switch {
	case p == PlayerOne && c == Light:
		return LightA
	case p == PlayerOne && c == Heavy:
		return HeavyA
	case p == PlayerTwo && c == Light:
		return LightB
	case p == PlayerTwo && c == Heavy:
		return HeavyB
	}
	return Empty
}

// Owner returns the player owning the piece in the cell, or NoPlayer.
func (c Cell) Owner() Player {
	switch c {
	case LightA, HeavyA:
		return PlayerOne
	case LightB, HeavyB:
		return PlayerTwo
	}
	return NoPlayer
}

// Class returns the weight of the piece in the cell. Only meaningful
// for non-empty cells.
func (c Cell) Class() PieceClass {
	if c == HeavyA || c == HeavyB {
		return Heavy
	}
	return Light
}

// Value is the observation encoding of the cell:
// Empty=0, LightA=1, HeavyA=2, LightB=-1, HeavyB=-2.
func (c Cell) Value() int {
	switch c {
	case LightA:
		return 1
	case HeavyA:
		return 2
	case LightB:
		return -1
	case HeavyB:
		return -2
	}
	return 0
}

// CellFromValue is the inverse of Value.
func CellFromValue(v int) (Cell, bool) {
	switch v {
	case 0:
		return Empty, true
	case 1:
		return LightA, true
	case 2:
		return HeavyA, true
	case -1:
		return LightB, true
	case -2:
		return HeavyB, true
	}
	return Empty, false
}

// Symbol returns the single-character board symbol used in logs:
// '.', 'y', 'Y', 'r', 'R'.
func (c Cell) Symbol() byte {
	return ".yYrR"[c]
}

// Board holds the cells, indexed [row][col]. Row 0 is the first row
// filled in every column.
type Board [Rows][Cols]Cell

// Height returns the number of occupied cells in a column.
func (b *Board) Height(col int) int {
	n := 0
	for r := 0; r < Rows; r++ {
		if b[r][col] != Empty {
			n++
		}
	}
	return n
}

// Pieces returns the number of occupied cells on the board.
func (b *Board) Pieces() int {
	n := 0
	for c := 0; c < Cols; c++ {
		n += b.Height(c)
	}
	return n
}

// ColumnFull reports whether a column has no empty cell left.
func (b *Board) ColumnFull(col int) bool {
	return b[Rows-1][col] != Empty
}

// String renders the board top row first, one line per row.
func (b *Board) String() string {
	buf := make([]byte, 0, Rows*(Cols+1))
	for r := Rows - 1; r >= 0; r-- {
		for c := 0; c < Cols; c++ {
			buf = append(buf, b[r][c].Symbol())
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}

// Inventory counts the unplaced pieces of one player.
type Inventory struct {
	Light int `json:"light"`
	Heavy int `json:"heavy"`
}

// Remaining returns the count for a piece class.
func (inv Inventory) Remaining(c PieceClass) int {
	if c == Heavy {
		return inv.Heavy
	}
	return inv.Light
}

func (inv *Inventory) take(c PieceClass) {
	if c == Heavy {
		inv.Heavy--
	} else {
		inv.Light--
	}
}

// FullInventory returns a starting inventory.
func FullInventory() Inventory {
	return Inventory{Light: InitialLight, Heavy: InitialHeavy}
}

// Phase is the lifecycle stage of a game session.
type Phase int8

const (
	Idle Phase = iota
	Challenging
	Accepted
	Playing
	Ended
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Challenging:
		return "challenging"
	case Accepted:
		return "accepted"
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// GameSession is the complete state of one game. It is a plain value:
// every operation takes a session and returns a new one.
type GameSession struct {
	Board     Board
	Inventory [2]Inventory // indexed by Player
	Current   Player       // whose turn it is
	Phase     Phase
	SessionID string
	Self      Player // local role, NoPlayer until an opponent is bound
	Opponent  string // opponent client id
	Moves     int    // placements applied so far
}

// Reset returns a fresh session: empty board, full inventories,
// PlayerOne to move, phase Idle.
func Reset() GameSession {
	return GameSession{
		Inventory: [2]Inventory{FullInventory(), FullInventory()},
		Current:   PlayerOne,
		Phase:     Idle,
		Self:      NoPlayer,
	}
}

// InventoryOf returns the inventory of a player.
func (s GameSession) InventoryOf(p Player) Inventory {
	if !p.Valid() {
		return Inventory{}
	}
	return s.Inventory[p]
}
