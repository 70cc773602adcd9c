package nn

import (
	"errors"
	"fmt"
	"math"

	"github.com/mode89/go-trainer/internal/model"
)

var (
	ErrInputSize = errors.New("input size mismatch")
	ErrTopology  = errors.New("invalid topology")
)

type Neuron struct {
	Threshold float64
	Weights   []float64
}

// Layer is one non-input layer. The input layer has no neurons of its own and
// is described only by Network.Inputs.
type Layer []Neuron

// Network is a fully connected feed-forward perceptron. It carries no
// evaluation state, so a single value may be read by many goroutines.
type Network struct {
	inputs int
	layers []Layer
}

// New validates that every neuron has one weight per neuron of the previous
// layer and returns a network owning layers.
func New(inputs int, layers []Layer) (*Network, error) {
	n := &Network{inputs: inputs, layers: layers}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Zero allocates a network of the given shape with all values set to zero.
// shape[0] is the input count.
func Zero(shape []int) (*Network, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers, got %d", ErrTopology, len(shape))
	}
	layers := make([]Layer, len(shape)-1)
	for i := 1; i < len(shape); i++ {
		if shape[i] <= 0 {
			return nil, fmt.Errorf("%w: layer %d has %d neurons", ErrTopology, i, shape[i])
		}
		layer := make(Layer, shape[i])
		for j := range layer {
			layer[j].Weights = make([]float64, shape[i-1])
		}
		layers[i-1] = layer
	}
	return New(shape[0], layers)
}

func (n *Network) Validate() error {
	if n.inputs <= 0 {
		return fmt.Errorf("%w: input count must be > 0", ErrTopology)
	}
	if len(n.layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrTopology)
	}
	prev := n.inputs
	for i, layer := range n.layers {
		if len(layer) == 0 {
			return fmt.Errorf("%w: layer %d is empty", ErrTopology, i+1)
		}
		for j, neuron := range layer {
			if len(neuron.Weights) != prev {
				return fmt.Errorf("%w: layer %d neuron %d has %d weights, want %d",
					ErrTopology, i+1, j, len(neuron.Weights), prev)
			}
		}
		prev = len(layer)
	}
	return nil
}

func (n *Network) Inputs() int { return n.inputs }

func (n *Network) Outputs() int { return len(n.layers[len(n.layers)-1]) }

// Layers exposes the non-input layers. Callers must treat them as read-only.
func (n *Network) Layers() []Layer { return n.layers }

// Shape returns the neuron count of every layer, input layer first.
func (n *Network) Shape() []int {
	shape := make([]int, 0, len(n.layers)+1)
	shape = append(shape, n.inputs)
	for _, layer := range n.layers {
		shape = append(shape, len(layer))
	}
	return shape
}

func (n *Network) Clone() *Network {
	layers := make([]Layer, len(n.layers))
	for i, layer := range n.layers {
		cloned := make(Layer, len(layer))
		for j, neuron := range layer {
			cloned[j] = Neuron{
				Threshold: neuron.Threshold,
				Weights:   append([]float64(nil), neuron.Weights...),
			}
		}
		layers[i] = cloned
	}
	return &Network{inputs: n.inputs, layers: layers}
}

// Equal reports whether both networks have the same shape and bit-identical
// thresholds and weights.
func (n *Network) Equal(other *Network) bool {
	if n.inputs != other.inputs || len(n.layers) != len(other.layers) {
		return false
	}
	for i := range n.layers {
		if len(n.layers[i]) != len(other.layers[i]) {
			return false
		}
		for j := range n.layers[i] {
			a, b := n.layers[i][j], other.layers[i][j]
			if a.Threshold != b.Threshold || len(a.Weights) != len(b.Weights) {
				return false
			}
			for k := range a.Weights {
				if a.Weights[k] != b.Weights[k] {
					return false
				}
			}
		}
	}
	return true
}

// Evaluate runs a forward pass into freshly allocated buffers.
func (n *Network) Evaluate(input []float64) ([]float64, error) {
	out, err := NewEvaluator(n).Evaluate(input)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), out...), nil
}

func (n *Network) Record() model.NetworkRecord {
	rec := model.NetworkRecord{Inputs: n.inputs, Layers: make([][]model.NeuronRecord, len(n.layers))}
	for i, layer := range n.layers {
		neurons := make([]model.NeuronRecord, len(layer))
		for j, neuron := range layer {
			neurons[j] = model.NeuronRecord{
				Threshold: neuron.Threshold,
				Weights:   append([]float64(nil), neuron.Weights...),
			}
		}
		rec.Layers[i] = neurons
	}
	return rec
}

func FromRecord(rec model.NetworkRecord) (*Network, error) {
	layers := make([]Layer, len(rec.Layers))
	for i, neurons := range rec.Layers {
		layer := make(Layer, len(neurons))
		for j, neuron := range neurons {
			layer[j] = Neuron{
				Threshold: neuron.Threshold,
				Weights:   append([]float64(nil), neuron.Weights...),
			}
		}
		layers[i] = layer
	}
	return New(rec.Inputs, layers)
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
