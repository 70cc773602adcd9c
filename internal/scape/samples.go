package scape

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/mode89/go-trainer/internal/nn"
)

var ErrSampleShape = errors.New("sample does not match network")

type Sample struct {
	Input  []float64
	Target []float64
}

// SampleSource scores a network on supervised samples. Episode i is sample
// i; its error is the Euclidean distance between output and target.
type SampleSource struct {
	name    string
	samples []Sample
}

func NewSampleSource(name string, samples []Sample) (*SampleSource, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("sample source %s has no samples", name)
	}
	in, out := len(samples[0].Input), len(samples[0].Target)
	if in == 0 || out == 0 {
		return nil, fmt.Errorf("%w: sample 0 has %d inputs and %d targets", ErrSampleShape, in, out)
	}
	for i, s := range samples {
		if len(s.Input) != in || len(s.Target) != out {
			return nil, fmt.Errorf("%w: sample %d is %d->%d, want %d->%d",
				ErrSampleShape, i, len(s.Input), len(s.Target), in, out)
		}
	}
	return &SampleSource{name: name, samples: samples}, nil
}

func XORSamples() []Sample {
	return []Sample{
		{Input: []float64{0, 0}, Target: []float64{0}},
		{Input: []float64{0, 1}, Target: []float64{1}},
		{Input: []float64{1, 0}, Target: []float64{1}},
		{Input: []float64{1, 1}, Target: []float64{0}},
	}
}

func (s *SampleSource) Name() string { return s.name }

func (s *SampleSource) Episodes() int { return len(s.samples) }

// Shape is the network input and output count the samples need.
func (s *SampleSource) Shape() (inputs, outputs int) {
	return len(s.samples[0].Input), len(s.samples[0].Target)
}

func (s *SampleSource) Run(ctx context.Context, net *nn.Network, episode int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if episode < 0 || episode >= len(s.samples) {
		return 0, fmt.Errorf("%w: sample %d out of range [0, %d)", ErrSampleShape, episode, len(s.samples))
	}
	sample := s.samples[episode]
	out, err := nn.NewEvaluator(net).Evaluate(sample.Input)
	if err != nil {
		return 0, err
	}
	if len(out) != len(sample.Target) {
		return 0, fmt.Errorf("%w: %d outputs, %d targets", ErrSampleShape, len(out), len(sample.Target))
	}
	return floats.Distance(out, sample.Target, 2), nil
}

// LoadSamplesCSV reads one sample per row: the first inputs columns are the
// input, the rest the target. Rows whose first field is not a number are
// skipped as headers.
func LoadSamplesCSV(r io.Reader, inputs int) ([]Sample, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("input column count must be > 0")
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	var samples []Sample
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read samples csv row %d: %w", row+1, err)
		}
		row++
		if len(record) <= inputs {
			return nil, fmt.Errorf("samples csv row %d has %d columns, need more than %d", row, len(record), inputs)
		}
		values := make([]float64, len(record))
		header := false
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if len(samples) == 0 && i == 0 {
					header = true
					break
				}
				return nil, fmt.Errorf("parse samples csv row %d column %d: %w", row, i+1, err)
			}
			values[i] = v
		}
		if header {
			continue
		}
		samples = append(samples, Sample{Input: values[:inputs], Target: values[inputs:]})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("samples csv has no data rows")
	}
	return samples, nil
}
