// Package policy provides decision policies: functions from an
// observation to an action id.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/lhbot/pkg/engine"
)

// Policy chooses an action for the player to move in an observation.
// Implementations must be safe for concurrent use.
type Policy interface {
	ChooseAction(ctx context.Context, obs engine.Observation) (int, error)
}

// Func adapts a function to Policy.
type Func func(ctx context.Context, obs engine.Observation) (int, error)

// ChooseAction calls f.
func (f Func) ChooseAction(ctx context.Context, obs engine.Observation) (int, error) {
	return f(ctx, obs)
}

// Choose runs p and checks the result. A policy error or an id outside
// the action space is returned wrapped in engine.ErrInvalidAction, along
// with the time spent in the policy.
func Choose(ctx context.Context, p Policy, obs engine.Observation) (int, time.Duration, error) {
	start := time.Now()
	id, err := p.ChooseAction(ctx, obs)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, fmt.Errorf("%w: policy failed: %v", engine.ErrInvalidAction, err)
	}
	if _, err := engine.DecodeAction(id); err != nil {
		return 0, elapsed, err
	}
	return id, elapsed, nil
}

// LegalActions returns the legal actions for the player to move in obs.
// It returns nil when the observation does not decode.
func LegalActions(obs engine.Observation) []int {
	s, err := engine.Decode(obs)
	if err != nil {
		return nil
	}
	return engine.LegalActions(s)
}

// New builds a policy by name. file is the weights or script path for
// the net, deep and lua policies.
func New(name, file string, seed int64) (Policy, error) {
	switch name {
	case "random":
		return NewRandom(seed), nil
	case "first":
		return First(), nil
	case "net":
		return LoadNet(file)
	case "deep":
		return LoadDeep(file)
	case "lua":
		return LoadLua(file)
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}
