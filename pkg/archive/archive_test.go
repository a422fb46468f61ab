package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/lhbot/pkg/engine"
)

// sampleRecord plays light@2, heavy@2, light@0 and ends the game.
func sampleRecord(t *testing.T) *Record {
	t.Helper()
	r := NewRecord("session-1", "bot_a", "bot_b", engine.PlayerOne)
	s := engine.Reset()
	s.Phase = engine.Playing
	for _, id := range []int{4, 5, 0} {
		a, err := engine.DecodeAction(id)
		if err != nil {
			t.Fatal(err)
		}
		r.AddMove(s, s.Current, a)
		s, _, err = engine.Place(s, s.Current, a.Class, a.Column)
		if err != nil {
			t.Fatalf("Place error: %v", err)
		}
	}
	r.Finish(s, ResultDraw, "", engine.NoPlayer)
	return r
}

func TestRecordMoves(t *testing.T) {
	r := sampleRecord(t)
	if len(r.Moves) != 3 {
		t.Fatalf("len(Moves) = %d, want 3", len(r.Moves))
	}
	m := r.Moves[1]
	if m.Seq != 2 || m.Player != engine.PlayerTwo || m.Column != 2 || m.Class != "heavy" {
		t.Errorf("Moves[1] = %+v", m)
	}
	// The observation is taken before the move: one light piece at r0c2.
	if m.Observation[2] != 1 || m.Observation[engine.Cols+2] != 0 {
		t.Errorf("Moves[1] observation does not show the position before the move")
	}
	if r.FinalPosition == "" {
		t.Error("FinalPosition not set")
	}
}

func TestReplay(t *testing.T) {
	r := sampleRecord(t)
	s, err := r.Replay()
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if s.Moves != 3 || s.Current != engine.PlayerTwo {
		t.Errorf("replayed session Moves=%d Current=%v, want 3 two", s.Moves, s.Current)
	}

	r.Moves[2].Observation[0] = 2
	if _, err := r.Replay(); err == nil {
		t.Error("Replay accepted a tampered observation")
	}
}

func TestTextRoundTrip(t *testing.T) {
	r := sampleRecord(t)
	var buf bytes.Buffer
	if err := ExportText(&buf, r); err != nil {
		t.Fatalf("ExportText error: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, "  1) light@2") {
		t.Errorf("export lacks first move line:\n%s", text)
	}

	got, err := ImportText(&buf)
	if err != nil {
		t.Fatalf("ImportText error: %v", err)
	}
	if got.SessionID != r.SessionID || got.PlayerOne != r.PlayerOne || got.PlayerTwo != r.PlayerTwo {
		t.Errorf("header = %s/%s/%s", got.SessionID, got.PlayerOne, got.PlayerTwo)
	}
	if got.Result != ResultDraw {
		t.Errorf("Result = %q, want %q", got.Result, ResultDraw)
	}
	if len(got.Moves) != len(r.Moves) {
		t.Fatalf("len(Moves) = %d, want %d", len(got.Moves), len(r.Moves))
	}
	for i := range r.Moves {
		if got.Moves[i] != r.Moves[i] {
			t.Errorf("move %d = %+v, want %+v", i, got.Moves[i], r.Moves[i])
		}
	}
}

func TestImportTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bad move", "  1) light@9\n"},
		{"garbage", "hello\n"},
		{"illegal sequence", strings.Repeat("  1) light@0     light@0\n", 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ImportText(strings.NewReader(tt.text)); err == nil {
				t.Error("ImportText() error = nil, want error")
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "games.jsonl")
	store, err := Open(ctx, "file:"+path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()

	empty, err := store.List(ctx, 0)
	if err != nil || len(empty) != 0 {
		t.Errorf("List on missing file = %v, %v, want empty", empty, err)
	}

	first := sampleRecord(t)
	second := sampleRecord(t)
	second.SessionID = "session-2"
	for _, r := range []*Record{first, second} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	got, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "session-2" {
		t.Errorf("List(1) = %+v, want session-2", got)
	}
	if _, err := got[0].Replay(); err != nil {
		t.Errorf("Replay of stored record error: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "")
	if err != nil || s != nil {
		t.Errorf("Open(\"\") = %v, %v, want nil, nil", s, err)
	}
	if _, err := Open(ctx, "s3://bucket"); err == nil {
		t.Error("Open accepted an unknown scheme")
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("LH_TEST_POSTGRES")
	if url == "" {
		t.Skip("LH_TEST_POSTGRES not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresStore error: %v", err)
	}
	defer store.Close()

	r := sampleRecord(t)
	r.SessionID = "test-" + filepath.Base(t.TempDir())
	if err := store.Save(ctx, r); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	for _, g := range got {
		if g.SessionID == r.SessionID {
			if len(g.Moves) != len(r.Moves) {
				t.Errorf("stored moves = %d, want %d", len(g.Moves), len(r.Moves))
			}
			return
		}
	}
	t.Errorf("saved record %s not listed", r.SessionID)
}
