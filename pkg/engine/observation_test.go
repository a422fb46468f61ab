package engine

import (
	"errors"
	"math"
	"testing"
)

func playSequence(t *testing.T, ids ...int) GameSession {
	t.Helper()
	s := Reset()
	var err error
	for _, id := range ids {
		s, _, err = Apply(s, id)
		if err != nil {
			t.Fatalf("Apply(%d) error: %v", id, err)
		}
	}
	return s
}

func TestObservationShapeAndBounds(t *testing.T) {
	sessions := []GameSession{
		Reset(),
		playSequence(t, 4),
		playSequence(t, 4, 5, 0, 13, 7, 6, 2, 9, 11, 1),
	}
	for i, s := range sessions {
		obs := Encode(s)
		if len(obs) != Rows*Cols+4 {
			t.Fatalf("len(obs) = %d, want %d", len(obs), Rows*Cols+4)
		}
		for j := 0; j < Rows*Cols; j++ {
			if obs[j] < MinCellValue || obs[j] > MaxCellValue {
				t.Errorf("session %d: cell %d = %v out of bounds", i, j, obs[j])
			}
		}
		limits := []float32{InitialLight, InitialHeavy, InitialLight, InitialHeavy}
		for k, limit := range limits {
			v := obs[Rows*Cols+k]
			if v < 0 || v > limit {
				t.Errorf("session %d: count %d = %v out of [0, %v]", i, k, v, limit)
			}
		}
	}
}

func TestObservationEncoding(t *testing.T) {
	// one: light@2, two: heavy@2, one: heavy@0
	s := playSequence(t, 4, 5, 1)
	obs := Encode(s)

	if obs[2] != 1 {
		t.Errorf("obs[2] = %v, want 1", obs[2])
	}
	if obs[Cols+2] != -2 {
		t.Errorf("obs[%d] = %v, want -2", Cols+2, obs[Cols+2])
	}
	if obs[0] != 2 {
		t.Errorf("obs[0] = %v, want 2", obs[0])
	}
	counts := obs[Rows*Cols:]
	want := []float32{10, 9, 11, 9}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("count %d = %v, want %v", i, counts[i], want[i])
		}
	}

	if Encode(s) != obs {
		t.Error("Encode is not deterministic")
	}
}

func TestObservationDecodeRoundTrip(t *testing.T) {
	s := playSequence(t, 4, 5, 0, 13, 7, 6, 2, 9, 11)
	got, err := Decode(Encode(s))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.Board != s.Board {
		t.Errorf("Board mismatch:\n%s\nwant\n%s", got.Board.String(), s.Board.String())
	}
	if got.Inventory != s.Inventory {
		t.Errorf("Inventory = %+v, want %+v", got.Inventory, s.Inventory)
	}
	if got.Current != s.Current {
		t.Errorf("Current = %v, want %v", got.Current, s.Current)
	}
	if got.Moves != s.Moves {
		t.Errorf("Moves = %d, want %d", got.Moves, s.Moves)
	}
}

func TestObservationDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		patch func(o *Observation)
	}{
		{"cell out of range", func(o *Observation) { o[0] = 3 }},
		{"fractional cell", func(o *Observation) { o[0] = 0.5 }},
		{"nan count", func(o *Observation) { o[Rows*Cols] = float32(math.NaN()) }},
		{"negative count", func(o *Observation) { o[Rows*Cols+1] = -1 }},
		{"count above initial", func(o *Observation) { o[Rows*Cols+2] = InitialLight + 1 }},
		{"floating piece", func(o *Observation) { o[Cols+3] = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := Encode(Reset())
			tt.patch(&obs)
			if _, err := Decode(obs); !errors.Is(err, ErrInvalidObservation) {
				t.Errorf("Decode err = %v, want %v", err, ErrInvalidObservation)
			}
		})
	}
}
