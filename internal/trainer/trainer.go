package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/mode89/go-trainer/internal/ga"
	"github.com/mode89/go-trainer/internal/genotype"
	"github.com/mode89/go-trainer/internal/model"
	"github.com/mode89/go-trainer/internal/nn"
	"github.com/mode89/go-trainer/internal/scape"
	"github.com/mode89/go-trainer/internal/storage"
)

type Config struct {
	Evaluator      *scape.Evaluator
	Operators      *genotype.PerceptronOperators
	PopulationSize int
	// Workers bounds how many individuals are scored at once.
	Workers int
	// StopFitness ends the run once the fittest score is <= this value.
	StopFitness float64
	// MaxGenerations bounds the run. Zero means unbounded.
	MaxGenerations int
	RunID          string
	// Store receives the run summary, the best snapshot and the history after
	// every generation. Nil disables persistence.
	Store  storage.Store
	Logger *slog.Logger
	// Resume continues a previous run: its best network seeds the population
	// and generation numbering carries on.
	Resume *Checkpoint
	// Now is a clock hook for tests.
	Now func() time.Time
}

// Checkpoint is what a stored run contributes to a resumed one.
type Checkpoint struct {
	RunID       string
	Generation  int
	Network     *nn.Network
	History     []float64
	Diagnostics []model.GenerationDiagnostics
	StartedAt   string
}

type Result struct {
	RunID       string
	Best        ga.Individual[*nn.Network]
	Generations int
	Reached     bool
	History     []float64
	Diagnostics []model.GenerationDiagnostics
}

// Trainer evolves perceptron weights against a fitness evaluator until the
// stop fitness or the generation limit is reached.
type Trainer struct {
	cfg    Config
	logger *slog.Logger
	solver *ga.Solver[*nn.Network]
}

func New(cfg Config) (*Trainer, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("fitness evaluator is required")
	}
	if cfg.Operators == nil {
		return nil, fmt.Errorf("genotype operators are required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.MaxGenerations < 0 {
		return nil, fmt.Errorf("max generations must be >= 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Resume != nil && cfg.RunID == "" {
		cfg.RunID = cfg.Resume.RunID
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	var initial []*nn.Network
	if cfg.Resume != nil {
		if cfg.Resume.Network == nil {
			return nil, fmt.Errorf("resume checkpoint has no network")
		}
		want := cfg.Operators.Shape()
		if got := cfg.Resume.Network.Shape(); !slices.Equal(got, want) {
			return nil, fmt.Errorf("resumed network shape mismatch: got=%v want=%v", got, want)
		}
		initial = []*nn.Network{cfg.Resume.Network}
	}

	ops := cfg.Operators
	solver, err := ga.NewSolver[*nn.Network](ga.Funcs[*nn.Network]{
		Create:    ops.CreateIndividual,
		Score:     cfg.Evaluator.Fitness,
		Recombine: ops.Crossover,
		Mutate:    ops.Mutation,
	}, ga.Config[*nn.Network]{
		PopulationSize: cfg.PopulationSize,
		Workers:        cfg.Workers,
		Initial:        initial,
	})
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Trainer{
		cfg:    cfg,
		logger: logger.With("run_id", cfg.RunID, "scape", cfg.Evaluator.Name()),
		solver: solver,
	}, nil
}

func (t *Trainer) RunID() string { return t.cfg.RunID }

// Run steps the solver until a stop condition holds. On cancellation the
// best individual found so far is returned together with the context error.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if t.cfg.Store != nil {
		if err := t.cfg.Store.Init(ctx); err != nil {
			return Result{}, fmt.Errorf("init store: %w", err)
		}
	}

	startedAt := t.cfg.Now().UTC().Format(time.RFC3339)
	offset := 0
	var history []float64
	var diagnostics []model.GenerationDiagnostics
	if r := t.cfg.Resume; r != nil {
		offset = r.Generation
		history = append(history, r.History...)
		diagnostics = append(diagnostics, r.Diagnostics...)
		if r.StartedAt != "" {
			startedAt = r.StartedAt
		}
		t.logger.Info("resuming run", "generation", offset)
	}
	// Drop stale counters from any evaluation done before the run.
	t.cfg.Evaluator.TakeCounters()

	result := Result{RunID: t.cfg.RunID}
	for step := 1; ; step++ {
		start := t.cfg.Now()
		fitness, err := t.solver.Step(ctx)
		if err != nil {
			result.Best = t.solver.Fittest()
			result.History = history
			result.Diagnostics = diagnostics
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				t.logger.Warn("training interrupted", "generations", result.Generations)
			}
			return result, fmt.Errorf("generation %d: %w", offset+step, err)
		}
		elapsed := t.cfg.Now().Sub(start)

		generation := offset + step
		last := t.solver.LastGeneration()
		episodes, failures := t.cfg.Evaluator.TakeCounters()
		history = append(history, fitness)
		diagnostics = append(diagnostics, model.GenerationDiagnostics{
			Generation:   generation,
			BestFitness:  last.Best,
			MeanFitness:  last.Mean,
			WorstFitness: last.Worst,
			Episodes:     episodes,
			Failures:     failures,
			DurationMS:   elapsed.Milliseconds(),
		})
		result.Generations = step

		t.logger.Info("generation complete",
			"generation", generation,
			"best", fmt.Sprintf("%3.3f", fitness),
			"mean", fmt.Sprintf("%3.3f", last.Mean),
			"episodes", humanize.Comma(int64(episodes)),
			"failures", failures,
			"elapsed", elapsed.Round(time.Millisecond).String(),
		)

		if err := t.persist(ctx, generation, startedAt, history, diagnostics); err != nil {
			return result, err
		}

		if fitness <= t.cfg.StopFitness {
			result.Reached = true
			break
		}
		if t.cfg.MaxGenerations > 0 && step >= t.cfg.MaxGenerations {
			break
		}
	}

	result.Best = t.solver.Fittest()
	result.History = history
	result.Diagnostics = diagnostics
	t.logger.Info("training finished",
		"generations", result.Generations,
		"best", fmt.Sprintf("%3.3f", result.Best.Fitness),
		"reached", result.Reached,
	)
	return result, nil
}

func (t *Trainer) persist(ctx context.Context, generation int, startedAt string, history []float64, diagnostics []model.GenerationDiagnostics) error {
	store := t.cfg.Store
	if store == nil {
		return nil
	}
	fittest := t.solver.Fittest()
	snapshot := model.Snapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           t.cfg.RunID,
		Generation:      generation,
		Fitness:         fittest.Fitness,
		Network:         fittest.Phenotype.Record(),
	}
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := store.SaveFitnessHistory(ctx, t.cfg.RunID, history); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := store.SaveGenerationDiagnostics(ctx, t.cfg.RunID, diagnostics); err != nil {
		return fmt.Errorf("save generation diagnostics: %w", err)
	}
	summary := model.RunSummary{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           t.cfg.RunID,
		Scape:           t.cfg.Evaluator.Name(),
		Population:      t.cfg.PopulationSize,
		Generations:     generation,
		BestFitness:     fittest.Fitness,
		StartedAt:       startedAt,
	}
	if err := store.SaveRunSummary(ctx, summary); err != nil {
		return fmt.Errorf("save run summary: %w", err)
	}
	return nil
}

// LoadCheckpoint reads everything needed to resume runID from store.
func LoadCheckpoint(ctx context.Context, store storage.Store, runID string) (*Checkpoint, error) {
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	snapshot, ok, err := store.GetSnapshot(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("run %s has no snapshot", runID)
	}
	net, err := nn.FromRecord(snapshot.Network)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot network: %w", err)
	}
	cp := &Checkpoint{RunID: runID, Generation: snapshot.Generation, Network: net}
	if cp.History, _, err = store.GetFitnessHistory(ctx, runID); err != nil {
		return nil, fmt.Errorf("load fitness history: %w", err)
	}
	if cp.Diagnostics, _, err = store.GetGenerationDiagnostics(ctx, runID); err != nil {
		return nil, fmt.Errorf("load generation diagnostics: %w", err)
	}
	summary, ok, err := store.GetRunSummary(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run summary: %w", err)
	}
	if ok {
		cp.StartedAt = summary.StartedAt
	}
	return cp, nil
}
