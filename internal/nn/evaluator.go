package nn

import "fmt"

// Evaluator owns the per-layer output buffers used by a forward pass. It is
// not safe for concurrent use; give every goroutine its own Evaluator.
type Evaluator struct {
	net     *Network
	outputs [][]float64
}

func NewEvaluator(net *Network) *Evaluator {
	outputs := make([][]float64, len(net.layers)+1)
	outputs[0] = make([]float64, net.inputs)
	for i, layer := range net.layers {
		outputs[i+1] = make([]float64, len(layer))
	}
	return &Evaluator{net: net, outputs: outputs}
}

func (e *Evaluator) Network() *Network { return e.net }

// Evaluate returns a view of the last layer's buffer. The slice is
// overwritten by the next call on the same Evaluator.
func (e *Evaluator) Evaluate(input []float64) ([]float64, error) {
	if len(input) != e.net.inputs {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrInputSize, len(input), e.net.inputs)
	}
	copy(e.outputs[0], input)

	for i, layer := range e.net.layers {
		prev := e.outputs[i]
		out := e.outputs[i+1]
		for j, neuron := range layer {
			sum := 0.0
			for k, w := range neuron.Weights {
				sum += prev[k] * w
			}
			out[j] = Sigmoid(sum - neuron.Threshold)
		}
	}
	return e.outputs[len(e.outputs)-1], nil
}
