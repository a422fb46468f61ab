package neuralnet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Binary weights file constants
const (
	WeightsMagicBinary   = 601.0407 // Magic number for binary weights file
	WeightsVersionBinary = 1.0      // Expected version
)

// textHeader is the first line of a text weights file.
const textHeader = "lhbot qnet 1"

// LoadWeights loads a Q-network from path. Files ending in .bin are read
// as binary, everything else as text. The network must match NumInputs
// and NumOutputs.
func LoadWeights(path string) (*NeuralNet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening weights file: %w", err)
	}
	defer f.Close()

	var nn *NeuralNet
	if filepath.Ext(path) == ".bin" {
		nn, err = LoadWeightsBinaryFromReader(f)
	} else {
		nn, err = LoadWeightsTextFromReader(bufio.NewReader(f))
	}
	if err != nil {
		return nil, err
	}
	if err := ValidateQNet(nn); err != nil {
		return nil, err
	}
	return nn, nil
}

// LoadWeightsBinaryFromReader reads the magic header and one network.
func LoadWeightsBinaryFromReader(r io.Reader) (*NeuralNet, error) {
	var magic, version float32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if math.Abs(float64(magic)-WeightsMagicBinary) > 0.001 {
		return nil, fmt.Errorf("invalid magic number: %f (expected %f)", magic, WeightsMagicBinary)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version < 1.0 || version > 2.0 {
		return nil, fmt.Errorf("unsupported weights version: %f", version)
	}

	nn, err := LoadBinary(r)
	if err != nil {
		return nil, fmt.Errorf("loading q-net: %w", err)
	}
	return nn, nil
}

// LoadWeightsTextFromReader reads the header line and one network.
func LoadWeightsTextFromReader(r io.Reader) (*NeuralNet, error) {
	var h1, h2, h3 string
	if _, err := fmt.Fscanln(r, &h1, &h2, &h3); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if h1+" "+h2+" "+h3 != textHeader {
		return nil, fmt.Errorf("unexpected header %q", h1+" "+h2+" "+h3)
	}

	nn, err := LoadText(r)
	if err != nil {
		return nil, fmt.Errorf("loading q-net: %w", err)
	}
	return nn, nil
}

// SaveWeights writes nn to path, in binary when path ends in .bin.
func SaveWeights(path string, nn *NeuralNet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating weights file: %w", err)
	}

	w := bufio.NewWriter(f)
	if filepath.Ext(path) == ".bin" {
		err = writeBinaryFile(w, nn)
	} else {
		err = writeTextFile(w, nn)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeBinaryFile(w io.Writer, nn *NeuralNet) error {
	for _, v := range []float32{WeightsMagicBinary, WeightsVersionBinary} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	return nn.WriteBinary(w)
}

func writeTextFile(w io.Writer, nn *NeuralNet) error {
	if _, err := fmt.Fprintln(w, textHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nn.WriteText(w)
}

// ValidateQNet checks that nn has the dimensions of the action network.
func ValidateQNet(nn *NeuralNet) error {
	if nn.CInput != NumInputs {
		return fmt.Errorf("q-net has %d inputs, expected %d", nn.CInput, NumInputs)
	}
	if nn.COutput != NumOutputs {
		return fmt.Errorf("q-net has %d outputs, expected %d", nn.COutput, NumOutputs)
	}
	return nil
}

// String returns a one-line summary of the network shape.
func (nn *NeuralNet) String() string {
	return fmt.Sprintf("NeuralNet{%d -> %d -> %d}", nn.CInput, nn.CHidden, nn.COutput)
}
