package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mode89/go-trainer/internal/game"
	"github.com/mode89/go-trainer/internal/genotype"
	"github.com/mode89/go-trainer/internal/nn"
	"github.com/mode89/go-trainer/internal/scape"
	"github.com/mode89/go-trainer/internal/stats"
	"github.com/mode89/go-trainer/internal/storage"
	"github.com/mode89/go-trainer/internal/trainer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:], stdout, stderr)
	case "xor":
		return runSamples(ctx, args[1:], stdout, stderr)
	case "runs":
		return runRuns(ctx, args[1:], stdout)
	case "history":
		return runHistory(ctx, args[1:], stdout)
	case "best":
		return runBest(ctx, args[1:], stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// runTrain evolves a Go player against the engine.
func runTrain(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := parseRunConfig(fs, goDefaults(), args)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	opponent, err := scape.ParseOpponent(cfg.Opponent)
	if err != nil {
		return err
	}

	source, err := scape.NewGoSource(scape.GoConfig{
		BoardSize:      cfg.BoardSize,
		Level:          cfg.Level,
		EnginePath:     cfg.EnginePath,
		Seed:           cfg.Seed,
		CommandTimeout: cfg.CommandTimeout,
		Opponent:       opponent,
		MaxMoves:       cfg.MaxMoves,
		TranscriptDir:  cfg.TranscriptDir,
	})
	if err != nil {
		return err
	}
	inputs, outputs := source.Shape()
	// A failed game counts as losing every point on the board.
	penalty := float64(inputs)
	return train(ctx, stdout, logger, cfg, source, inputs, outputs, penalty)
}

// runSamples evolves a network against a supervised sample set, XOR unless
// a CSV file is given.
func runSamples(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("xor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := parseRunConfig(fs, sampleDefaults(), args)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	name, samples := "xor", scape.XORSamples()
	if cfg.Samples != "" {
		f, err := os.Open(cfg.Samples)
		if err != nil {
			return err
		}
		samples, err = scape.LoadSamplesCSV(f, cfg.SampleInputs)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("load samples: %w", err)
		}
		name = "samples"
	}
	source, err := scape.NewSampleSource(name, samples)
	if err != nil {
		return err
	}
	inputs, outputs := source.Shape()
	return train(ctx, stdout, logger, cfg, source, inputs, outputs, 1)
}

func train(ctx context.Context, stdout io.Writer, logger *slog.Logger, cfg runConfig, source scape.Source, inputs, outputs int, defaultPenalty float64) error {
	reduction, err := scape.ParseReduction(cfg.Reduction)
	if err != nil {
		return err
	}
	if cfg.FailurePenalty < 0 {
		cfg.FailurePenalty = defaultPenalty
	}
	eval, err := scape.NewEvaluator(scape.EvaluatorConfig{
		Source:         source,
		Reduction:      reduction,
		Episodes:       cfg.Episodes,
		Workers:        cfg.EpisodeWorkers,
		Budget:         cfg.Budget,
		FailurePenalty: cfg.FailurePenalty,
		Strict:         cfg.Strict,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if cfg.MutationProbability < 0 {
		cfg.MutationProbability = genotype.DefaultMutationProbability(inputs, outputs)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ops, err := genotype.NewPerceptronOperators(inputs, outputs, cfg.MutationProbability, cfg.MutationSpeed, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.Store, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	var checkpoint *trainer.Checkpoint
	if cfg.Resume {
		if cfg.RunID == "" {
			return fmt.Errorf("resume requires -run-id")
		}
		checkpoint, err = trainer.LoadCheckpoint(ctx, store, cfg.RunID)
		if err != nil {
			return err
		}
	}

	tr, err := trainer.New(trainer.Config{
		Evaluator:      eval,
		Operators:      ops,
		PopulationSize: cfg.Population,
		Workers:        cfg.Workers,
		StopFitness:    cfg.StopFitness,
		MaxGenerations: cfg.MaxGenerations,
		RunID:          cfg.RunID,
		Store:          store,
		Logger:         logger,
		Resume:         checkpoint,
	})
	if err != nil {
		return err
	}
	logger.Info("training started",
		"run_id", tr.RunID(),
		"scape", source.Name(),
		"shape", fmt.Sprint(genotype.PerceptronShape(inputs, outputs)),
		"population", cfg.Population,
		"episodes", eval.Episodes(),
		"mutation_probability", cfg.MutationProbability,
		"mutation_speed", cfg.MutationSpeed,
		"seed", seed,
	)

	result, err := tr.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run_id=%s generations=%d best=%.3f reached=%t\n",
		result.RunID, result.Generations, result.Best.Fitness, result.Reached)
	return nil
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath := storage.DefaultStoreKind(), "trainer.db"
	bindStoreFlags(fs, &storeKind, &dbPath)
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := openStore(ctx, storeKind, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s scape=%s population=%d generations=%d best=%.3f started_at=%s\n",
			r.RunID, r.Scape, r.Population, r.Generations, r.BestFitness, r.StartedAt)
	}
	return nil
}

func runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	asCSV := fs.Bool("csv", false, "write CSV instead of a table")
	storeKind, dbPath := storage.DefaultStoreKind(), "trainer.db"
	bindStoreFlags(fs, &storeKind, &dbPath)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("history requires -run-id")
	}
	store, err := openStore(ctx, storeKind, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", *runID)
	}
	if *asCSV {
		return stats.WriteHistoryCSV(stdout, diagnostics)
	}
	fmt.Fprintln(stdout, stats.HistoryTable(diagnostics))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, stats.SummaryTable(stats.Summarize(diagnostics)))
	return nil
}

// runBest prints the stored best network of a run. With -board it also shows
// the move the network would open with on an empty board.
func runBest(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	board := fs.Bool("board", false, "show the opening move ranking on an empty board")
	storeKind, dbPath := storage.DefaultStoreKind(), "trainer.db"
	bindStoreFlags(fs, &storeKind, &dbPath)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("best requires -run-id")
	}
	store, err := openStore(ctx, storeKind, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	snapshot, ok, err := store.GetSnapshot(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", *runID)
	}
	net, err := nn.FromRecord(snapshot.Network)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run_id=%s generation=%d fitness=%.3f shape=%v\n",
		snapshot.RunID, snapshot.Generation, snapshot.Fitness, net.Shape())
	if !*board {
		return nil
	}
	return writeOpening(stdout, net)
}

// writeOpening lists the network's five strongest choices for the first move.
func writeOpening(w io.Writer, net *nn.Network) error {
	cells := net.Inputs()
	size := 0
	for size*size < cells {
		size++
	}
	if size*size != cells || net.Outputs() != cells+1 {
		return fmt.Errorf("network %v is not a board player", net.Shape())
	}
	out, err := net.Evaluate(make([]float64, cells))
	if err != nil {
		return err
	}
	order := make([]int, len(out))
	game.RankOutputs(out, order)
	for i := 0; i < len(order) && i < 5; i++ {
		fmt.Fprintf(w, "%d. %s %.4f\n", i+1, game.OutputMove(order[i], size), out[order[i]])
	}
	return nil
}

func openStore(ctx context.Context, kind, path string) (storage.Store, error) {
	store, err := storage.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	return store, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: trainerctl <train|xor|runs|history|best> [flags]", msg)
}
