package engine

import (
	"errors"
	"testing"
)

func TestActionCodecBijection(t *testing.T) {
	for id := 0; id < NumActions; id++ {
		a, err := DecodeAction(id)
		if err != nil {
			t.Fatalf("DecodeAction(%d) error: %v", id, err)
		}
		back, err := EncodeAction(a)
		if err != nil {
			t.Fatalf("EncodeAction(%v) error: %v", a, err)
		}
		if back != id {
			t.Errorf("EncodeAction(DecodeAction(%d)) = %d", id, back)
		}
	}

	for col := 0; col < Cols; col++ {
		for _, class := range []PieceClass{Light, Heavy} {
			a := Action{Column: col, Class: class}
			id, err := EncodeAction(a)
			if err != nil {
				t.Fatalf("EncodeAction(%v) error: %v", a, err)
			}
			got, err := DecodeAction(id)
			if err != nil {
				t.Fatalf("DecodeAction(%d) error: %v", id, err)
			}
			if got != a {
				t.Errorf("DecodeAction(EncodeAction(%v)) = %v", a, got)
			}
		}
	}
}

func TestDecodeActionParity(t *testing.T) {
	tests := []struct {
		id    int
		col   int
		class PieceClass
	}{
		{0, 0, Light},
		{1, 0, Heavy},
		{4, 2, Light},
		{13, 6, Heavy},
	}
	for _, tt := range tests {
		a, err := DecodeAction(tt.id)
		if err != nil {
			t.Fatalf("DecodeAction(%d) error: %v", tt.id, err)
		}
		if a.Column != tt.col || a.Class != tt.class {
			t.Errorf("DecodeAction(%d) = %v, want %s@%d", tt.id, a, tt.class, tt.col)
		}
	}
}

func TestInvalidAction(t *testing.T) {
	for _, id := range []int{-1, NumActions, 100} {
		if _, err := DecodeAction(id); !errors.Is(err, ErrInvalidAction) {
			t.Errorf("DecodeAction(%d) err = %v, want %v", id, err, ErrInvalidAction)
		}
	}
	bad := []Action{{Column: -1, Class: Light}, {Column: Cols, Class: Heavy}, {Column: 0, Class: PieceClass(2)}}
	for _, a := range bad {
		if _, err := EncodeAction(a); !errors.Is(err, ErrInvalidAction) {
			t.Errorf("EncodeAction(%+v) err = %v, want %v", a, err, ErrInvalidAction)
		}
	}

	s := Reset()
	next, out, err := Apply(s, NumActions)
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Apply err = %v, want %v", err, ErrInvalidAction)
	}
	if out.Kind != Rejected || next != s {
		t.Error("Apply with an invalid action changed the session")
	}
}
