package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/lhbot/internal/neuralnet"
	"github.com/yourusername/lhbot/pkg/engine"
)

// NetPolicy plays the legal action with the highest Q-network output.
type NetPolicy struct {
	nn   *neuralnet.NeuralNet
	bufs sync.Pool
}

// NewNet wraps a loaded network.
func NewNet(nn *neuralnet.NeuralNet) (*NetPolicy, error) {
	if err := neuralnet.ValidateQNet(nn); err != nil {
		return nil, err
	}
	p := &NetPolicy{nn: nn}
	p.bufs.New = func() any { return neuralnet.NewEvaluateBuffer(nn) }
	return p, nil
}

// LoadNet reads a network from a weights file.
func LoadNet(path string) (*NetPolicy, error) {
	nn, err := neuralnet.LoadWeights(path)
	if err != nil {
		return nil, fmt.Errorf("net policy: %w", err)
	}
	return NewNet(nn)
}

// Scores returns the network outputs for obs, one per action id.
func (p *NetPolicy) Scores(obs engine.Observation) ([]float32, error) {
	in, _, err := neuralnet.ObservationInputs(obs)
	if err != nil {
		return nil, err
	}
	buf := p.bufs.Get().(*neuralnet.EvaluateBuffer)
	defer p.bufs.Put(buf)

	out := make([]float32, p.nn.COutput)
	p.nn.EvaluateFast(in, out, buf)
	return out, nil
}

// ChooseAction implements Policy.
func (p *NetPolicy) ChooseAction(ctx context.Context, obs engine.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	scores, err := p.Scores(obs)
	if err != nil {
		return 0, err
	}
	if id := neuralnet.Argmax(scores, LegalActions(obs)); id >= 0 {
		return id, nil
	}
	return neuralnet.Argmax(scores, nil), nil
}
