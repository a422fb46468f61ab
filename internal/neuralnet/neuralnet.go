// Package neuralnet implements a small feed-forward Q-network that scores
// the actions of a light and heavy position.
package neuralnet

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
)

// NeuralNet is a network with one sigmoid hidden layer and linear outputs,
// one output per action.
type NeuralNet struct {
	CInput          uint32    // Number of input nodes
	CHidden         uint32    // Number of hidden nodes
	COutput         uint32    // Number of output nodes
	RBetaHidden     float32   // Beta for hidden layer sigmoid
	HiddenWeight    []float32 // Input to hidden, input-major
	OutputWeight    []float32 // Hidden to output, output-major
	HiddenThreshold []float32 // Bias of hidden nodes
	OutputThreshold []float32 // Bias of output nodes
}

// NewRandom returns a network with small random weights.
func NewRandom(cInput, cHidden, cOutput uint32, rng *rand.Rand) *NeuralNet {
	nn := &NeuralNet{
		CInput:          cInput,
		CHidden:         cHidden,
		COutput:         cOutput,
		RBetaHidden:     1,
		HiddenWeight:    make([]float32, cInput*cHidden),
		OutputWeight:    make([]float32, cHidden*cOutput),
		HiddenThreshold: make([]float32, cHidden),
		OutputThreshold: make([]float32, cOutput),
	}
	scale := float32(1 / math.Sqrt(float64(cInput)))
	for i := range nn.HiddenWeight {
		nn.HiddenWeight[i] = (rng.Float32()*2 - 1) * scale
	}
	for i := range nn.OutputWeight {
		nn.OutputWeight[i] = rng.Float32()*2 - 1
	}
	return nn
}

// Evaluate computes the network output for the given input.
func (nn *NeuralNet) Evaluate(input []float32) []float32 {
	output := make([]float32, nn.COutput)
	nn.EvaluateInto(input, output)
	return output
}

// EvaluateInto computes the network output into the provided slice.
func (nn *NeuralNet) EvaluateInto(input, output []float32) {
	ar := make([]float32, nn.CHidden)
	copy(ar, nn.HiddenThreshold)

	prWeight := 0
	for i := uint32(0); i < nn.CInput; i++ {
		ari := input[i]
		if ari == 0.0 {
			prWeight += int(nn.CHidden)
			continue
		}
		for j := uint32(0); j < nn.CHidden; j++ {
			ar[j] += nn.HiddenWeight[prWeight] * ari
			prWeight++
		}
	}

	for i := uint32(0); i < nn.CHidden; i++ {
		ar[i] = sigmoid(-nn.RBetaHidden * ar[i])
	}

	prWeight = 0
	for i := uint32(0); i < nn.COutput; i++ {
		r := nn.OutputThreshold[i]
		for j := uint32(0); j < nn.CHidden; j++ {
			r += ar[j] * nn.OutputWeight[prWeight]
			prWeight++
		}
		output[i] = r
	}
}

// sigmoid computes 1 / (1 + e^x).
func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(x))))
}

func (nn *NeuralNet) validate() error {
	if nn.CInput < 1 || nn.CHidden < 1 || nn.COutput < 1 {
		return fmt.Errorf("invalid network dimensions: %d/%d/%d", nn.CInput, nn.CHidden, nn.COutput)
	}
	if nn.RBetaHidden <= 0 {
		return fmt.Errorf("invalid beta value: %f", nn.RBetaHidden)
	}
	return nil
}

func (nn *NeuralNet) allocate() {
	nn.HiddenWeight = make([]float32, nn.CInput*nn.CHidden)
	nn.OutputWeight = make([]float32, nn.CHidden*nn.COutput)
	nn.HiddenThreshold = make([]float32, nn.CHidden)
	nn.OutputThreshold = make([]float32, nn.COutput)
}

// sections returns the weight arrays in file order.
func (nn *NeuralNet) sections() []struct {
	name string
	data []float32
} {
	return []struct {
		name string
		data []float32
	}{
		{"hidden weights", nn.HiddenWeight},
		{"output weights", nn.OutputWeight},
		{"hidden thresholds", nn.HiddenThreshold},
		{"output thresholds", nn.OutputThreshold},
	}
}

// LoadBinary reads a network: three uint32 dimensions, the hidden beta
// and then every weight section as little-endian float32.
func LoadBinary(r io.Reader) (*NeuralNet, error) {
	nn := &NeuralNet{}

	for _, f := range []struct {
		name string
		dst  any
	}{
		{"cInput", &nn.CInput},
		{"cHidden", &nn.CHidden},
		{"cOutput", &nn.COutput},
		{"rBetaHidden", &nn.RBetaHidden},
	} {
		if err := binary.Read(r, binary.LittleEndian, f.dst); err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.name, err)
		}
	}
	if err := nn.validate(); err != nil {
		return nil, err
	}

	nn.allocate()
	for _, s := range nn.sections() {
		if err := binary.Read(r, binary.LittleEndian, s.data); err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.name, err)
		}
	}
	return nn, nil
}

// WriteBinary writes the network in the LoadBinary format.
func (nn *NeuralNet) WriteBinary(w io.Writer) error {
	for _, v := range []any{nn.CInput, nn.CHidden, nn.COutput, nn.RBetaHidden} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, s := range nn.sections() {
		if err := binary.Write(w, binary.LittleEndian, s.data); err != nil {
			return fmt.Errorf("writing %s: %w", s.name, err)
		}
	}
	return nil
}

// LoadText reads a network from text: a header line
// "cInput cHidden cOutput tag beta" followed by one value per line.
func LoadText(r io.Reader) (*NeuralNet, error) {
	nn := &NeuralNet{}

	var tag string
	_, err := fmt.Fscanf(r, "%d %d %d %s %f\n",
		&nn.CInput, &nn.CHidden, &nn.COutput, &tag, &nn.RBetaHidden)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := nn.validate(); err != nil {
		return nil, err
	}

	nn.allocate()
	for _, s := range nn.sections() {
		for i := range s.data {
			if _, err := fmt.Fscanf(r, "%f\n", &s.data[i]); err != nil {
				return nil, fmt.Errorf("reading %s %d: %w", s.name, i, err)
			}
		}
	}
	return nn, nil
}

// WriteText writes the network in the LoadText format.
func (nn *NeuralNet) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d %d %d qnet %g\n", nn.CInput, nn.CHidden, nn.COutput, nn.RBetaHidden); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range nn.sections() {
		for _, v := range s.data {
			if _, err := fmt.Fprintf(w, "%g\n", v); err != nil {
				return fmt.Errorf("writing %s: %w", s.name, err)
			}
		}
	}
	return nil
}
