package neuralnet

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// sigmoidTableSize is the number of entries in the sigmoid lookup table
const sigmoidTableSize = 8192

// sigmoidTableScale maps input range [-8, 8] to table indices
const sigmoidTableScale = float64(sigmoidTableSize) / 16.0

var (
	sigmoidTable     [sigmoidTableSize]float32
	sigmoidTableOnce sync.Once
)

func initSigmoidTable() {
	sigmoidTableOnce.Do(func() {
		for i := 0; i < sigmoidTableSize; i++ {
			x := float64(i)/sigmoidTableScale - 8.0
			sigmoidTable[i] = float32(1.0 / (1.0 + math.Exp(x)))
		}
	})
}

// sigmoidFast approximates sigmoid with a lookup table and linear
// interpolation.
func sigmoidFast(x float32) float32 {
	initSigmoidTable()

	if x <= -8.0 {
		return 1.0
	}
	if x >= 8.0 {
		return 0.0
	}

	idx := (float64(x) + 8.0) * sigmoidTableScale
	i := int(idx)
	if i >= sigmoidTableSize-1 {
		return sigmoidTable[sigmoidTableSize-1]
	}
	frac := float32(idx) - float32(i)
	return sigmoidTable[i]*(1-frac) + sigmoidTable[i+1]*frac
}

// EvaluateBuffer holds scratch space for EvaluateFast. The float64
// copies of the weights are built once per network.
type EvaluateBuffer struct {
	hidden  []float64
	outRows [][]float64
	hidRows [][]float64
	owner   *NeuralNet
}

// NewEvaluateBuffer creates a buffer for nn.
func NewEvaluateBuffer(nn *NeuralNet) *EvaluateBuffer {
	cHidden := int(nn.CHidden)
	buf := &EvaluateBuffer{
		hidden:  make([]float64, cHidden),
		outRows: make([][]float64, nn.COutput),
		hidRows: make([][]float64, nn.CInput),
		owner:   nn,
	}
	for i := range buf.hidRows {
		buf.hidRows[i] = toFloat64(nn.HiddenWeight[i*cHidden : (i+1)*cHidden])
	}
	for i := range buf.outRows {
		buf.outRows[i] = toFloat64(nn.OutputWeight[i*cHidden : (i+1)*cHidden])
	}
	return buf
}

// EvaluateFast computes the network output using gonum vector kernels and
// the sigmoid lookup table. buf may be nil or belong to another network,
// in which case a fresh one is built.
func (nn *NeuralNet) EvaluateFast(input []float32, output []float32, buf *EvaluateBuffer) {
	if buf == nil || buf.owner != nn {
		buf = NewEvaluateBuffer(nn)
	}

	for i := range buf.hidden {
		buf.hidden[i] = float64(nn.HiddenThreshold[i])
	}

	for i := 0; i < int(nn.CInput); i++ {
		if input[i] == 0 {
			continue
		}
		floats.AddScaled(buf.hidden, float64(input[i]), buf.hidRows[i])
	}

	beta := float64(-nn.RBetaHidden)
	for i := range buf.hidden {
		buf.hidden[i] = float64(sigmoidFast(float32(beta * buf.hidden[i])))
	}

	for i := 0; i < int(nn.COutput); i++ {
		output[i] = float32(float64(nn.OutputThreshold[i]) + floats.Dot(buf.hidden, buf.outRows[i]))
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Argmax returns the index of the largest value among the allowed
// indices, or -1 when none is allowed. A nil allowed list permits all.
func Argmax(values []float32, allowed []int) int {
	best := -1
	var bestVal float32
	consider := func(i int) {
		if i < 0 || i >= len(values) {
			return
		}
		if best == -1 || values[i] > bestVal {
			best, bestVal = i, values[i]
		}
	}
	if allowed == nil {
		for i := range values {
			consider(i)
		}
		return best
	}
	for _, i := range allowed {
		consider(i)
	}
	return best
}
