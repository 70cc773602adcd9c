package scape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mode89/go-trainer/internal/ga"
	"github.com/mode89/go-trainer/internal/game"
	"github.com/mode89/go-trainer/internal/nn"
)

type Fitness float64

type Trace map[string]any

// Source runs single episodes for a network. Run returns the episode's
// error value; lower is better. Run is called concurrently for distinct
// episode indices.
type Source interface {
	Name() string
	Run(ctx context.Context, net *nn.Network, episode int) (float64, error)
}

// CountedSource knows its natural number of episodes, such as the size of a
// sample set.
type CountedSource interface {
	Source
	Episodes() int
}

type Reduction int

const (
	ReduceMean Reduction = iota
	ReduceRMS
)

func (r Reduction) String() string {
	if r == ReduceRMS {
		return "rms"
	}
	return "mean"
}

func ParseReduction(s string) (Reduction, error) {
	switch s {
	case "", "mean":
		return ReduceMean, nil
	case "rms":
		return ReduceRMS, nil
	default:
		return ReduceMean, fmt.Errorf("unsupported reduction: %s", s)
	}
}

type EvaluatorConfig struct {
	Source    Source
	Reduction Reduction
	// Episodes per fitness call. Zero uses the source's own count.
	Episodes int
	// Workers bounds concurrent episodes of one fitness call.
	Workers int
	// Budget bounds one fitness call. An individual that runs out of budget
	// scores ga.WorstFitness.
	Budget time.Duration
	// FailurePenalty replaces the value of an episode that failed.
	FailurePenalty float64
	// Strict turns an episode failure into an error for the whole call.
	Strict bool
	Logger *slog.Logger
}

// Evaluator turns a batch of episodes into one fitness value with a fixed
// reduction. It is safe for concurrent use.
type Evaluator struct {
	cfg      EvaluatorConfig
	logger   *slog.Logger
	episodes atomic.Int64
	failures atomic.Int64
}

func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("episode source is required")
	}
	counted, isCounted := cfg.Source.(CountedSource)
	if cfg.Episodes <= 0 {
		if !isCounted {
			return nil, fmt.Errorf("episodes must be > 0 for source %s", cfg.Source.Name())
		}
		cfg.Episodes = counted.Episodes()
		if cfg.Episodes <= 0 {
			return nil, fmt.Errorf("source %s has no episodes", cfg.Source.Name())
		}
	}
	if isCounted && cfg.Episodes > counted.Episodes() {
		return nil, fmt.Errorf("%w: %d episodes requested, source %s has %d",
			ErrSampleShape, cfg.Episodes, cfg.Source.Name(), counted.Episodes())
	}
	if cfg.Reduction != ReduceMean && cfg.Reduction != ReduceRMS {
		return nil, fmt.Errorf("unsupported reduction: %d", cfg.Reduction)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Workers > cfg.Episodes {
		cfg.Workers = cfg.Episodes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Evaluator{
		cfg:    cfg,
		logger: logger.With("source", cfg.Source.Name()),
	}, nil
}

func (e *Evaluator) Name() string { return e.cfg.Source.Name() }

func (e *Evaluator) Episodes() int { return e.cfg.Episodes }

// TakeCounters returns the episodes run and failed since the last call and
// resets both.
func (e *Evaluator) TakeCounters() (episodes, failures int) {
	return int(e.episodes.Swap(0)), int(e.failures.Swap(0))
}

// Fitness adapts Evaluate to the solver's scoring signature.
func (e *Evaluator) Fitness(ctx context.Context, net *nn.Network) (float64, error) {
	fitness, _, err := e.Evaluate(ctx, net)
	return float64(fitness), err
}

func (e *Evaluator) Evaluate(ctx context.Context, net *nn.Network) (Fitness, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	runCtx := ctx
	if e.cfg.Budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Budget)
		defer cancel()
	}

	values := make([]float64, e.cfg.Episodes)
	var failed atomic.Int64
	p := pool.New().WithErrors().WithContext(runCtx).WithMaxGoroutines(e.cfg.Workers)
	for i := range values {
		episode := i
		p.Go(func(ctx context.Context) error {
			value, err := e.cfg.Source.Run(ctx, net, episode)
			e.episodes.Add(1)
			if err == nil {
				values[episode] = value
				return nil
			}
			if ctx.Err() != nil || e.cfg.Strict || isConfigError(err) {
				return fmt.Errorf("episode %d: %w", episode, err)
			}
			failed.Add(1)
			e.failures.Add(1)
			e.logger.Warn("episode failed", "episode", episode, "penalty", e.cfg.FailurePenalty, "error", err)
			values[episode] = e.cfg.FailurePenalty
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		if runCtx.Err() != nil {
			e.logger.Warn("fitness budget exceeded", "budget", e.cfg.Budget)
			return Fitness(ga.WorstFitness), Trace{"budget_exceeded": true, "episodes": len(values)}, nil
		}
		return 0, nil, err
	}

	fitness := reduce(e.cfg.Reduction, values)
	return Fitness(fitness), Trace{
		"episodes":  len(values),
		"failures":  int(failed.Load()),
		"reduction": e.cfg.Reduction.String(),
		"best":      floats.Min(values),
		"worst":     floats.Max(values),
	}, nil
}

func reduce(r Reduction, values []float64) float64 {
	if r == ReduceRMS {
		return math.Sqrt(floats.Dot(values, values) / float64(len(values)))
	}
	return stat.Mean(values, nil)
}

func isConfigError(err error) bool {
	return errors.Is(err, nn.ErrInputSize) ||
		errors.Is(err, game.ErrNetworkShape) ||
		errors.Is(err, ErrSampleShape)
}
