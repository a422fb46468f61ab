package policy

import (
	"context"
	"math/rand"
	"sync"

	"github.com/yourusername/lhbot/pkg/engine"
)

// RandomPolicy picks uniformly among the legal actions, or among all
// actions when none is legal.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a random policy seeded with seed.
func NewRandom(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

// ChooseAction implements Policy.
func (p *RandomPolicy) ChooseAction(ctx context.Context, obs engine.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	legal := LegalActions(obs)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(legal) == 0 {
		return p.rng.Intn(engine.NumActions), nil
	}
	return legal[p.rng.Intn(len(legal))], nil
}

// First returns a policy choosing the lowest legal action id, or 0 when
// none is legal.
func First() Policy {
	return Func(func(ctx context.Context, obs engine.Observation) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		legal := LegalActions(obs)
		if len(legal) == 0 {
			return 0, nil
		}
		return legal[0], nil
	})
}
