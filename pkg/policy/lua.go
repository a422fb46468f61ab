package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/yourusername/lhbot/pkg/engine"
)

// luaEntry is the global function a policy script must define. It
// receives the observation as a 1-based array and returns an action id.
const luaEntry = "choose_action"

// LuaPolicy runs a Lua script. Scripts may call legal_actions(obs) to get
// the legal action ids as an array.
type LuaPolicy struct {
	mu    sync.Mutex
	state *lua.LState
}

// NewLua compiles a policy script.
func NewLua(src string) (*LuaPolicy, error) {
	L := lua.NewState()
	L.SetGlobal("legal_actions", L.NewFunction(luaLegalActions))
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua policy: %w", err)
	}
	if L.GetGlobal(luaEntry).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("lua policy: script does not define %s", luaEntry)
	}
	return &LuaPolicy{state: L}, nil
}

// LoadLua reads and compiles a policy script.
func LoadLua(path string) (*LuaPolicy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua policy: %w", err)
	}
	return NewLua(string(src))
}

// Close releases the interpreter.
func (p *LuaPolicy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Close()
}

// ChooseAction implements Policy.
func (p *LuaPolicy) ChooseAction(ctx context.Context, obs engine.Observation) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	L := p.state
	L.SetContext(ctx)
	defer L.RemoveContext()

	tbl := L.NewTable()
	for _, v := range obs {
		tbl.Append(lua.LNumber(v))
	}
	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(luaEntry),
		NRet:    1,
		Protect: true,
	}, tbl)
	if err != nil {
		return 0, fmt.Errorf("lua policy: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("lua policy: %s returned %s, not a number", luaEntry, ret.Type())
	}
	return int(n), nil
}

// luaLegalActions implements legal_actions(obs) for scripts.
func luaLegalActions(L *lua.LState) int {
	tbl := L.CheckTable(1)
	var obs engine.Observation
	for i := range obs {
		v, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok {
			L.ArgError(1, "observation must be an array of numbers")
			return 0
		}
		obs[i] = float32(v)
	}

	out := L.NewTable()
	for _, id := range LegalActions(obs) {
		out.Append(lua.LNumber(id))
	}
	L.Push(out)
	return 1
}
