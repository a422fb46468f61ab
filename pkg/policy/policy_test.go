package policy

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/yourusername/lhbot/internal/neuralnet"
	"github.com/yourusername/lhbot/pkg/engine"
)

// fullColumnZero returns an observation where column 0 is full, so the
// lowest legal action is 2.
func fullColumnZero(t *testing.T) engine.Observation {
	t.Helper()
	s := engine.Reset()
	var err error
	for i := 0; i < engine.Rows; i++ {
		s, _, err = engine.Apply(s, i%2)
		if err != nil {
			t.Fatalf("Apply error: %v", err)
		}
	}
	return engine.Encode(s)
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestFirst(t *testing.T) {
	ctx := context.Background()
	id, err := First().ChooseAction(ctx, engine.Encode(engine.Reset()))
	if err != nil || id != 0 {
		t.Errorf("First on empty board = %d, %v, want 0", id, err)
	}
	id, err = First().ChooseAction(ctx, fullColumnZero(t))
	if err != nil || id != 2 {
		t.Errorf("First with column 0 full = %d, %v, want 2", id, err)
	}
}

func TestRandomPicksLegal(t *testing.T) {
	ctx := context.Background()
	obs := fullColumnZero(t)
	legal := LegalActions(obs)
	p := NewRandom(42)
	for i := 0; i < 100; i++ {
		id, err := p.ChooseAction(ctx, obs)
		if err != nil {
			t.Fatalf("ChooseAction error: %v", err)
		}
		if !contains(legal, id) {
			t.Fatalf("random chose illegal action %d", id)
		}
	}
}

func TestChooseRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	obs := engine.Encode(engine.Reset())

	bad := Func(func(context.Context, engine.Observation) (int, error) { return engine.NumActions, nil })
	if _, _, err := Choose(ctx, bad, obs); !errors.Is(err, engine.ErrInvalidAction) {
		t.Errorf("out-of-range err = %v, want %v", err, engine.ErrInvalidAction)
	}

	failing := Func(func(context.Context, engine.Observation) (int, error) { return 0, errors.New("boom") })
	if _, _, err := Choose(ctx, failing, obs); !errors.Is(err, engine.ErrInvalidAction) {
		t.Errorf("policy error err = %v, want %v", err, engine.ErrInvalidAction)
	}

	id, _, err := Choose(ctx, First(), obs)
	if err != nil || id != 0 {
		t.Errorf("Choose(First) = %d, %v, want 0", id, err)
	}
}

func TestNetPolicy(t *testing.T) {
	nn := neuralnet.NewRandom(neuralnet.NumInputs, 8, neuralnet.NumOutputs, rand.New(rand.NewSource(5)))
	path := filepath.Join(t.TempDir(), "qnet.txt")
	if err := neuralnet.SaveWeights(path, nn); err != nil {
		t.Fatalf("SaveWeights error: %v", err)
	}

	p, err := New("net", path, 0)
	if err != nil {
		t.Fatalf("New(net) error: %v", err)
	}
	obs := fullColumnZero(t)
	id, err := p.ChooseAction(context.Background(), obs)
	if err != nil {
		t.Fatalf("ChooseAction error: %v", err)
	}
	if !contains(LegalActions(obs), id) {
		t.Errorf("net chose illegal action %d", id)
	}

	if _, err := NewNet(neuralnet.NewRandom(3, 2, 1, rand.New(rand.NewSource(1)))); err == nil {
		t.Error("NewNet accepted a network of the wrong shape")
	}
}

func TestDeepPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep.json")
	if err := SaveDeep(path, NewDeepNetwork(16)); err != nil {
		t.Fatalf("SaveDeep error: %v", err)
	}
	p, err := LoadDeep(path)
	if err != nil {
		t.Fatalf("LoadDeep error: %v", err)
	}
	obs := fullColumnZero(t)
	id, err := p.ChooseAction(context.Background(), obs)
	if err != nil {
		t.Fatalf("ChooseAction error: %v", err)
	}
	if !contains(LegalActions(obs), id) {
		t.Errorf("deep chose illegal action %d", id)
	}
}

const luaScript = `
function choose_action(obs)
  local legal = legal_actions(obs)
  return legal[#legal]
end
`

func TestLuaPolicy(t *testing.T) {
	p, err := NewLua(luaScript)
	if err != nil {
		t.Fatalf("NewLua error: %v", err)
	}
	defer p.Close()

	id, err := p.ChooseAction(context.Background(), engine.Encode(engine.Reset()))
	if err != nil {
		t.Fatalf("ChooseAction error: %v", err)
	}
	if id != engine.NumActions-1 {
		t.Errorf("lua chose %d, want %d", id, engine.NumActions-1)
	}
}

func TestLuaPolicyErrors(t *testing.T) {
	if _, err := NewLua("x = 1"); err == nil {
		t.Error("NewLua accepted a script without choose_action")
	}
	if _, err := NewLua("function choose_action("); err == nil {
		t.Error("NewLua accepted a syntax error")
	}

	p, err := NewLua(`function choose_action(obs) return "left" end`)
	if err != nil {
		t.Fatalf("NewLua error: %v", err)
	}
	defer p.Close()
	if _, _, err := Choose(context.Background(), p, engine.Encode(engine.Reset())); !errors.Is(err, engine.ErrInvalidAction) {
		t.Errorf("non-numeric result err = %v, want %v", err, engine.ErrInvalidAction)
	}
}

func TestLoadLuaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lua")
	if err := os.WriteFile(path, []byte(luaScript), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New("lua", path, 0); err != nil {
		t.Errorf("New(lua) error: %v", err)
	}
	if _, err := New("oracle", "", 0); err == nil {
		t.Error("New accepted an unknown policy")
	}
}
