package neuralnet

import (
	"math/rand"
	"testing"

	"github.com/yourusername/lhbot/pkg/engine"
)

// Global to prevent compiler optimizations
var benchOutput []float32

func benchInputs(b *testing.B) []float32 {
	s := engine.Reset()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 16; i++ {
		legal := engine.LegalActions(s)
		next, _, err := engine.Apply(s, legal[rng.Intn(len(legal))])
		if err != nil {
			b.Fatalf("Apply error: %v", err)
		}
		s = next
	}
	return Inputs(s, s.Current)
}

func BenchmarkEvaluate(b *testing.B) {
	nn := NewRandom(NumInputs, 64, NumOutputs, rand.New(rand.NewSource(1)))
	input := benchInputs(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchOutput = nn.Evaluate(input)
	}
}

func BenchmarkEvaluateFast(b *testing.B) {
	nn := NewRandom(NumInputs, 64, NumOutputs, rand.New(rand.NewSource(1)))
	input := benchInputs(b)
	buf := NewEvaluateBuffer(nn)
	output := make([]float32, nn.COutput)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		nn.EvaluateFast(input, output, buf)
		benchOutput = output
	}
}

func BenchmarkInputs(b *testing.B) {
	s := engine.Reset()
	for i := 0; i < b.N; i++ {
		benchOutput = Inputs(s, engine.PlayerOne)
	}
}
