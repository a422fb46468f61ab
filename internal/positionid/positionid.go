// Package positionid implements compact position IDs for light and heavy
// sessions.
//
// A position key packs every cell in 3 bits (row-major) followed by the
// four inventory counts in 4 bits each: 42*3 + 4*4 = 142 bits in 18 bytes.
// The position ID is the key in base64, 24 characters long.
package positionid

import (
	"errors"

	"github.com/yourusername/lhbot/pkg/engine"
)

const (
	// KeyLength is the size in bytes of a position key
	KeyLength = 18
	// PositionIDLength is the length of a position ID string
	PositionIDLength = KeyLength / 3 * 4

	cellBits  = 3
	countBits = 4
)

// Base64 alphabet used for position ID encoding
const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// ErrInvalidPositionID is returned for malformed or inconsistent IDs.
var ErrInvalidPositionID = errors.New("invalid position ID")

// PositionKey is the packed binary form of a position.
type PositionKey struct {
	Data [KeyLength]uint8
}

// addBits writes the low nBits of v at bitPos.
func addBits(key *PositionKey, bitPos, v, nBits uint32) {
	for i := uint32(0); i < nBits; i++ {
		if v&(1<<i) != 0 {
			p := bitPos + i
			key.Data[p>>3] |= 1 << (p & 7)
		}
	}
}

// readBits reads nBits at bitPos.
func readBits(key PositionKey, bitPos, nBits uint32) uint32 {
	var v uint32
	for i := uint32(0); i < nBits; i++ {
		p := bitPos + i
		if key.Data[p>>3]&(1<<(p&7)) != 0 {
			v |= 1 << i
		}
	}
	return v
}

// MakePositionKey packs the board and inventories of a session.
func MakePositionKey(s engine.GameSession) PositionKey {
	var key PositionKey
	pos := uint32(0)
	for r := 0; r < engine.Rows; r++ {
		for c := 0; c < engine.Cols; c++ {
			addBits(&key, pos, uint32(s.Board[r][c]), cellBits)
			pos += cellBits
		}
	}
	for _, p := range []engine.Player{engine.PlayerOne, engine.PlayerTwo} {
		inv := s.Inventory[p]
		addBits(&key, pos, uint32(inv.Light), countBits)
		addBits(&key, pos+countBits, uint32(inv.Heavy), countBits)
		pos += 2 * countBits
	}
	return key
}

// SessionFromKey unpacks a key. The player to move is inferred from the
// piece counts. The result is validated with CheckPosition.
func SessionFromKey(key PositionKey) (engine.GameSession, error) {
	s := engine.Reset()
	pos := uint32(0)
	for r := 0; r < engine.Rows; r++ {
		for c := 0; c < engine.Cols; c++ {
			v := readBits(key, pos, cellBits)
			if v > uint32(engine.HeavyB) {
				return s, ErrInvalidPositionID
			}
			s.Board[r][c] = engine.Cell(v)
			pos += cellBits
		}
	}
	for _, p := range []engine.Player{engine.PlayerOne, engine.PlayerTwo} {
		s.Inventory[p] = engine.Inventory{
			Light: int(readBits(key, pos, countBits)),
			Heavy: int(readBits(key, pos+countBits, countBits)),
		}
		pos += 2 * countBits
	}
	if !CheckPosition(s) {
		return s, ErrInvalidPositionID
	}
	s.Current = engine.InferCurrent(s)
	s.Moves = s.Board.Pieces()
	return s, nil
}

// PositionID returns the base64 ID of a session.
func PositionID(s engine.GameSession) string {
	return PositionIDFromKey(MakePositionKey(s))
}

// PositionIDFromKey encodes a key as base64.
func PositionIDFromKey(key PositionKey) string {
	result := make([]byte, PositionIDLength)
	puch := key.Data[:]

	for i := 0; i < KeyLength/3; i++ {
		result[i*4] = base64Chars[puch[0]>>2]
		result[i*4+1] = base64Chars[((puch[0]&0x03)<<4)|(puch[1]>>4)]
		result[i*4+2] = base64Chars[((puch[1]&0x0F)<<2)|(puch[2]>>6)]
		result[i*4+3] = base64Chars[puch[2]&0x3F]
		puch = puch[3:]
	}

	return string(result)
}

func base64Decode(ch byte) uint8 {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A'
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + 26
	case ch >= '0' && ch <= '9':
		return ch - '0' + 52
	case ch == '+':
		return 62
	case ch == '/':
		return 63
	}
	return 255
}

// KeyFromPositionID decodes the base64 form of a key.
func KeyFromPositionID(posID string) (PositionKey, error) {
	var key PositionKey
	if len(posID) != PositionIDLength {
		return key, ErrInvalidPositionID
	}

	ach := make([]uint8, PositionIDLength)
	for i := 0; i < PositionIDLength; i++ {
		ach[i] = base64Decode(posID[i])
		if ach[i] == 255 {
			return key, ErrInvalidPositionID
		}
	}

	pch := ach
	for i := 0; i < KeyLength/3; i++ {
		key.Data[i*3] = (pch[0] << 2) | (pch[1] >> 4)
		key.Data[i*3+1] = (pch[1] << 4) | (pch[2] >> 2)
		key.Data[i*3+2] = (pch[2] << 6) | pch[3]
		pch = pch[4:]
	}
	return key, nil
}

// SessionFromPositionID decodes a position ID into a session value.
func SessionFromPositionID(posID string) (engine.GameSession, error) {
	key, err := KeyFromPositionID(posID)
	if err != nil {
		return engine.Reset(), err
	}
	return SessionFromKey(key)
}

// CheckPosition verifies that a session could arise from play: no piece
// floats above an empty cell, inventories are within their starting
// values and the pieces on the board match what each side has spent.
func CheckPosition(s engine.GameSession) bool {
	var onBoard [2][2]int
	for c := 0; c < engine.Cols; c++ {
		for r := 0; r < engine.Rows; r++ {
			cell := s.Board[r][c]
			if cell == engine.Empty {
				continue
			}
			if r > 0 && s.Board[r-1][c] == engine.Empty {
				return false
			}
			onBoard[cell.Owner()][cell.Class()]++
		}
	}

	for _, p := range []engine.Player{engine.PlayerOne, engine.PlayerTwo} {
		inv := s.Inventory[p]
		if inv.Light < 0 || inv.Light > engine.InitialLight || inv.Heavy < 0 || inv.Heavy > engine.InitialHeavy {
			return false
		}
		if onBoard[p][engine.Light] != engine.InitialLight-inv.Light {
			return false
		}
		if onBoard[p][engine.Heavy] != engine.InitialHeavy-inv.Heavy {
			return false
		}
	}

	// PlayerOne always moves first.
	one := onBoard[engine.PlayerOne][engine.Light] + onBoard[engine.PlayerOne][engine.Heavy]
	two := onBoard[engine.PlayerTwo][engine.Light] + onBoard[engine.PlayerTwo][engine.Heavy]
	return one-two == 0 || one-two == 1
}

// EqualKeys returns true if two position keys are identical
func EqualKeys(k1, k2 PositionKey) bool {
	return k1.Data == k2.Data
}
