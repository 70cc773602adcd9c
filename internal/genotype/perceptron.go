package genotype

import (
	"fmt"
	"math/rand"

	"github.com/mode89/go-trainer/internal/nn"
)

// PerceptronShape is the fixed topology the operators build: the input
// layer, two hidden layers twice as wide as the input, and the output layer.
func PerceptronShape(inputs, outputs int) []int {
	return []int{inputs, 2 * inputs, 2 * inputs, outputs}
}

// GeneCount is the number of thresholds and weights in a network of shape.
func GeneCount(shape []int) int {
	total := 0
	for i := 1; i < len(shape); i++ {
		total += shape[i] * (shape[i-1] + 1)
	}
	return total
}

// DefaultMutationProbability mutates one gene per network on average.
func DefaultMutationProbability(inputs, outputs int) float64 {
	return 1.0 / float64(GeneCount(PerceptronShape(inputs, outputs)))
}

// PerceptronOperators creates, recombines and mutates networks of
// PerceptronShape. Build it with NewPerceptronOperators. It is not safe for
// concurrent use.
type PerceptronOperators struct {
	inputs              int
	outputs             int
	mutationProbability float64
	mutationSpeed       float64

	rng *rand.Rand
}

func NewPerceptronOperators(inputs, outputs int, mutationProbability, mutationSpeed float64, rng *rand.Rand) (*PerceptronOperators, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("inputs and outputs must be > 0: inputs=%d outputs=%d", inputs, outputs)
	}
	if mutationProbability < 0 || mutationProbability > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1], got %f", mutationProbability)
	}
	if mutationSpeed < 0 {
		return nil, fmt.Errorf("mutation speed must be >= 0, got %f", mutationSpeed)
	}
	return &PerceptronOperators{
		inputs:              inputs,
		outputs:             outputs,
		mutationProbability: mutationProbability,
		mutationSpeed:       mutationSpeed,
		rng:                 ensureRNG(rng),
	}, nil
}

// Shape is the topology of every network the operators create.
func (o *PerceptronOperators) Shape() []int {
	return PerceptronShape(o.inputs, o.outputs)
}

// CreateIndividual draws thresholds from [0, 1) and weights from [-1, 1).
func (o *PerceptronOperators) CreateIndividual() *nn.Network {
	net, err := nn.Zero(o.Shape())
	if err != nil {
		panic(err)
	}
	for _, layer := range net.Layers() {
		for j := range layer {
			layer[j].Threshold = o.rng.Float64()
			for k := range layer[j].Weights {
				layer[j].Weights[k] = randomWeight(o.rng)
			}
		}
	}
	return net
}

// Crossover inherits every gene from a or b with equal probability. The
// child has a's topology; b must have the same shape.
func (o *PerceptronOperators) Crossover(a, b *nn.Network) *nn.Network {
	child := a.Clone()
	other := b.Layers()
	for i, layer := range child.Layers() {
		for j := range layer {
			if o.rng.Float64() > 0.5 {
				layer[j].Threshold = other[i][j].Threshold
			}
			for k := range layer[j].Weights {
				if o.rng.Float64() > 0.5 {
					layer[j].Weights[k] = other[i][j].Weights[k]
				}
			}
		}
	}
	return child
}

// Mutation perturbs each gene with the mutation probability by a value drawn
// from [-speed/2, speed/2).
func (o *PerceptronOperators) Mutation(parent *nn.Network) *nn.Network {
	child := parent.Clone()
	for _, layer := range child.Layers() {
		for j := range layer {
			if o.mutates() {
				layer[j].Threshold += o.perturbation()
			}
			for k := range layer[j].Weights {
				if o.mutates() {
					layer[j].Weights[k] += o.perturbation()
				}
			}
		}
	}
	return child
}

func (o *PerceptronOperators) mutates() bool {
	return o.rng.Float64() < o.mutationProbability
}

func (o *PerceptronOperators) perturbation() float64 {
	return (o.rng.Float64() - 0.5) * o.mutationSpeed
}
