package nn

import (
	"errors"
	"math"
	"testing"
)

func xorNetwork(t *testing.T) *Network {
	t.Helper()
	net, err := New(2, []Layer{
		{
			{Threshold: 0.5, Weights: []float64{1, 1}},
			{Threshold: 1.5, Weights: []float64{1, 1}},
		},
		{
			{Threshold: 0.2, Weights: []float64{1, -1}},
		},
	})
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return net
}

func TestEvaluateXOR(t *testing.T) {
	net := xorNetwork(t)
	eval := NewEvaluator(net)

	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			out, err := eval.Evaluate([]float64{float64(a), float64(b)})
			if err != nil {
				t.Fatalf("evaluate(%d,%d): %v", a, b, err)
			}
			if len(out) != 1 {
				t.Fatalf("unexpected output size: got=%d want=1", len(out))
			}
			if a == b && out[0] >= 0.5 {
				t.Fatalf("xor(%d,%d)=%f, want < 0.5", a, b, out[0])
			}
			if a != b && out[0] <= 0.5 {
				t.Fatalf("xor(%d,%d)=%f, want > 0.5", a, b, out[0])
			}
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	net := xorNetwork(t)
	input := []float64{0.25, 0.75}

	first, err := net.Evaluate(input)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	eval := NewEvaluator(net)
	for i := 0; i < 10; i++ {
		out, err := eval.Evaluate(input)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if math.Float64bits(out[0]) != math.Float64bits(first[0]) {
			t.Fatalf("non-deterministic output: got=%v want=%v", out[0], first[0])
		}
	}
}

func TestEvaluateSingleNeuron(t *testing.T) {
	net, err := New(2, []Layer{{{Threshold: 0.5, Weights: []float64{2, -1}}}})
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	out, err := net.Evaluate([]float64{1, 0.25})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := Sigmoid(2 - 0.25 - 0.5)
	if math.Abs(out[0]-want) > 1e-12 {
		t.Fatalf("unexpected output: got=%f want=%f", out[0], want)
	}
}

func TestEvaluateInputSizeMismatch(t *testing.T) {
	net := xorNetwork(t)
	_, err := net.Evaluate([]float64{1})
	if !errors.Is(err, ErrInputSize) {
		t.Fatalf("expected ErrInputSize, got %v", err)
	}
}

func TestNewRejectsBadTopology(t *testing.T) {
	tests := []struct {
		name   string
		inputs int
		layers []Layer
	}{
		{name: "no-inputs", inputs: 0, layers: []Layer{{{Weights: nil}}}},
		{name: "no-layers", inputs: 2},
		{name: "empty-layer", inputs: 2, layers: []Layer{{}}},
		{name: "short-weights", inputs: 2, layers: []Layer{{{Weights: []float64{1}}}}},
		{name: "hidden-mismatch", inputs: 1, layers: []Layer{
			{{Weights: []float64{1}}, {Weights: []float64{1}}},
			{{Weights: []float64{1}}},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.inputs, tc.layers); !errors.Is(err, ErrTopology) {
				t.Fatalf("expected ErrTopology, got %v", err)
			}
		})
	}
}

func TestZeroShape(t *testing.T) {
	net, err := Zero([]int{3, 6, 6, 4})
	if err != nil {
		t.Fatalf("zero: %v", err)
	}
	shape := net.Shape()
	want := []int{3, 6, 6, 4}
	for i := range want {
		if shape[i] != want[i] {
			t.Fatalf("unexpected shape: got=%v want=%v", shape, want)
		}
	}
	if net.Inputs() != 3 || net.Outputs() != 4 {
		t.Fatalf("unexpected io: inputs=%d outputs=%d", net.Inputs(), net.Outputs())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	net := xorNetwork(t)
	clone := net.Clone()
	if !clone.Equal(net) {
		t.Fatal("expected clone to equal source")
	}
	clone.Layers()[0][0].Weights[0] = 42
	if net.Layers()[0][0].Weights[0] == 42 {
		t.Fatal("clone shares weight storage with source")
	}
	if clone.Equal(net) {
		t.Fatal("expected modified clone to differ")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	net := xorNetwork(t)
	restored, err := FromRecord(net.Record())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if !restored.Equal(net) {
		t.Fatal("restored network differs from source")
	}
}
