package ga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"
)

// WorstFitness marks an individual that has not been scored yet, or whose
// evaluation was abandoned. Lower fitness is better.
const WorstFitness = math.MaxFloat32

// Problem supplies the phenotype-specific half of the algorithm.
// CreateIndividual, Crossover and Mutation are called from a single goroutine.
// Fitness is called concurrently for distinct individuals.
type Problem[P any] interface {
	CreateIndividual() P
	Fitness(ctx context.Context, p P) (float64, error)
	Crossover(a, b P) P
	Mutation(p P) P
}

// Funcs adapts plain functions to Problem.
type Funcs[P any] struct {
	Create    func() P
	Score     func(ctx context.Context, p P) (float64, error)
	Recombine func(a, b P) P
	Mutate    func(p P) P
}

func (f Funcs[P]) CreateIndividual() P { return f.Create() }

func (f Funcs[P]) Fitness(ctx context.Context, p P) (float64, error) { return f.Score(ctx, p) }

func (f Funcs[P]) Crossover(a, b P) P { return f.Recombine(a, b) }

func (f Funcs[P]) Mutation(p P) P { return f.Mutate(p) }

type Individual[P any] struct {
	Phenotype P
	Fitness   float64
}

type Config[P any] struct {
	PopulationSize int
	// Workers bounds concurrent Fitness calls. Values <= 0 mean 1.
	Workers int
	// Initial seeds the first generation; the remainder is created randomly.
	Initial []P
}

// GenerationStats summarizes the scores of the most recently ranked
// generation. Mean covers scored individuals only and is WorstFitness when
// none were scored.
type GenerationStats struct {
	Best  float64
	Mean  float64
	Worst float64
}

// Solver owns a fixed-size population. Step and Solve must not be called
// concurrently on the same Solver.
type Solver[P any] struct {
	problem    Problem[P]
	cfg        Config[P]
	population []Individual[P]
	fittest    Individual[P]
	last       GenerationStats
}

func NewSolver[P any](problem Problem[P], cfg Config[P]) (*Solver[P], error) {
	if problem == nil {
		return nil, fmt.Errorf("problem is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if len(cfg.Initial) > cfg.PopulationSize {
		return nil, fmt.Errorf("initial population larger than population size: got=%d max=%d", len(cfg.Initial), cfg.PopulationSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Solver[P]{
		problem: problem,
		cfg:     cfg,
		fittest: Individual[P]{Fitness: WorstFitness},
		last:    GenerationStats{Best: WorstFitness, Mean: WorstFitness, Worst: WorstFitness},
	}, nil
}

// SelectionSize is the number of top-ranked individuals kept as breeding
// stock for a population of n.
func SelectionSize(n int) int {
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Step advances one generation and returns the fitness of its best member.
func (s *Solver[P]) Step(ctx context.Context) (float64, error) {
	if len(s.population) == 0 {
		s.populate()
	}

	if err := s.score(ctx); err != nil {
		return 0, err
	}
	s.rank()

	selection := make([]Individual[P], SelectionSize(s.cfg.PopulationSize))
	copy(selection, s.population)
	s.population = s.reproduce(selection, s.population)

	for i := range s.population {
		s.population[i] = Individual[P]{
			Phenotype: s.problem.Mutation(s.population[i].Phenotype),
			Fitness:   WorstFitness,
		}
	}
	return s.fittest.Fitness, nil
}

// Fittest returns the best individual of the last completed step.
func (s *Solver[P]) Fittest() Individual[P] { return s.fittest }

func (s *Solver[P]) LastGeneration() GenerationStats { return s.last }

func (s *Solver[P]) PopulationSize() int { return s.cfg.PopulationSize }

// Population returns a copy of the current, not yet scored, population.
func (s *Solver[P]) Population() []Individual[P] {
	return append([]Individual[P](nil), s.population...)
}

func (s *Solver[P]) populate() {
	s.population = make([]Individual[P], s.cfg.PopulationSize)
	for i := range s.population {
		var p P
		if i < len(s.cfg.Initial) {
			p = s.cfg.Initial[i]
		} else {
			p = s.problem.CreateIndividual()
		}
		s.population[i] = Individual[P]{Phenotype: p, Fitness: WorstFitness}
	}
}

func (s *Solver[P]) score(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	workers := s.cfg.Workers
	if workers > len(s.population) {
		workers = len(s.population)
	}

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(workers)
	for i := range s.population {
		idx := i
		p.Go(func(ctx context.Context) error {
			fitness, err := s.problem.Fitness(ctx, s.population[idx].Phenotype)
			if err != nil {
				return fmt.Errorf("individual %d: %w", idx, err)
			}
			s.population[idx].Fitness = fitness
			return nil
		})
	}
	return p.Wait()
}

func (s *Solver[P]) rank() {
	sort.SliceStable(s.population, func(i, j int) bool {
		return s.population[i].Fitness < s.population[j].Fitness
	})
	s.fittest = s.population[0]

	scores := make([]float64, len(s.population))
	for i, ind := range s.population {
		scores[i] = ind.Fitness
	}
	s.last = GenerationStats{
		Best:  scores[0],
		Mean:  WorstFitness,
		Worst: scores[len(scores)-1],
	}
	// Unscored individuals sort last.
	if scored := sort.SearchFloat64s(scores, WorstFitness); scored > 0 {
		s.last.Mean = stat.Mean(scores[:scored], nil)
	}
}

// reproduce fills a new population from the selection grid. Cell (i, i)
// carries selection[i] over, any other cell is a crossover of selection[i]
// and selection[j]. Missing slots are taken from ranked past the selection.
func (s *Solver[P]) reproduce(selection, ranked []Individual[P]) []Individual[P] {
	size := s.cfg.PopulationSize
	next := make([]Individual[P], 0, size)

	for i := 0; i < len(selection) && len(next) < size; i++ {
		for j := 0; j < len(selection) && len(next) < size; j++ {
			if i == j {
				next = append(next, selection[i])
				continue
			}
			child := s.problem.Crossover(selection[i].Phenotype, selection[j].Phenotype)
			next = append(next, Individual[P]{Phenotype: child, Fitness: WorstFitness})
		}
	}
	for k := len(selection); len(next) < size; k++ {
		next = append(next, ranked[k%len(ranked)])
	}
	return next
}

type SolveOptions struct {
	// TargetFitness stops the run once the fittest score is <= this value.
	TargetFitness float64
	// MaxSteps bounds the number of generations. Zero means unbounded.
	MaxSteps int
	// Deadline bounds wall-clock time. Zero means unbounded.
	Deadline time.Time
	// OnStep is called after every generation with its 1-based index.
	OnStep func(step int, fittest float64)
}

type SolveResult[P any] struct {
	Fittest Individual[P]
	Steps   int
	Reached bool
}

// Solve runs Step until the target fitness, the step limit or the deadline
// is reached. Running out of time after at least one generation is not an
// error; the best individual seen so far is returned.
func (s *Solver[P]) Solve(ctx context.Context, opts SolveOptions) (SolveResult[P], error) {
	stepCtx := ctx
	if !opts.Deadline.IsZero() {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithDeadline(ctx, opts.Deadline)
		defer cancel()
	}

	steps := 0
	for {
		fitness, err := s.Step(stepCtx)
		if err != nil {
			if steps > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return SolveResult[P]{Fittest: s.fittest, Steps: steps}, nil
			}
			return SolveResult[P]{Fittest: s.fittest, Steps: steps}, err
		}
		steps++
		if opts.OnStep != nil {
			opts.OnStep(steps, fitness)
		}
		if fitness <= opts.TargetFitness {
			return SolveResult[P]{Fittest: s.fittest, Steps: steps, Reached: true}, nil
		}
		if opts.MaxSteps > 0 && steps >= opts.MaxSteps {
			return SolveResult[P]{Fittest: s.fittest, Steps: steps}, nil
		}
		if stepCtx.Err() != nil && ctx.Err() == nil {
			return SolveResult[P]{Fittest: s.fittest, Steps: steps}, nil
		}
	}
}
