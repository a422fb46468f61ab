package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	deep "github.com/patrikeh/go-deep"

	"github.com/yourusername/lhbot/pkg/engine"
)

// DeepPolicy plays the legal action with the highest output of a go-deep
// network fed with the raw observation.
type DeepPolicy struct {
	mu      sync.Mutex
	network *deep.Neural
}

// NewDeepNetwork builds an untrained network with the given hidden
// layers, shaped for observations and action ids.
func NewDeepNetwork(hidden ...int) *deep.Neural {
	layout := append(append([]int{}, hidden...), engine.NumActions)
	return deep.NewNeural(&deep.Config{
		Inputs:     engine.ObservationSize,
		Layout:     layout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(0.0, 0.1),
		Bias:       true,
	})
}

// NewDeep wraps a network. It must take ObservationSize inputs and
// produce NumActions outputs.
func NewDeep(n *deep.Neural) (*DeepPolicy, error) {
	cfg := n.Config
	if cfg.Inputs != engine.ObservationSize {
		return nil, fmt.Errorf("deep policy: network has %d inputs, expected %d", cfg.Inputs, engine.ObservationSize)
	}
	if len(cfg.Layout) == 0 || cfg.Layout[len(cfg.Layout)-1] != engine.NumActions {
		return nil, fmt.Errorf("deep policy: network layout %v does not end in %d outputs", cfg.Layout, engine.NumActions)
	}
	return &DeepPolicy{network: n}, nil
}

// LoadDeep reads a network saved with SaveDeep.
func LoadDeep(path string) (*DeepPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deep policy: %w", err)
	}
	n, err := deep.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("deep policy: decoding %s: %w", path, err)
	}
	return NewDeep(n)
}

// SaveDeep writes the network as a go-deep JSON dump.
func SaveDeep(path string, n *deep.Neural) error {
	data, err := n.Marshal()
	if err != nil {
		return fmt.Errorf("encoding network: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ChooseAction implements Policy.
func (p *DeepPolicy) ChooseAction(ctx context.Context, obs engine.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	out := p.network.Predict(obs.Float64s())
	p.mu.Unlock()

	best := -1
	for _, id := range LegalActions(obs) {
		if best == -1 || out[id] > out[best] {
			best = id
		}
	}
	if best >= 0 {
		return best, nil
	}
	for id := range out {
		if best == -1 || out[id] > out[best] {
			best = id
		}
	}
	return best, nil
}
