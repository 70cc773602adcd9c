package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mode89/go-trainer/internal/storage"
)

// runConfig is everything a training command needs. Values come from flag
// defaults, then an optional config file, then flags set on the command
// line.
type runConfig struct {
	BoardSize           int           `ini:"board_size" yaml:"board_size"`
	Episodes            int           `ini:"episodes" yaml:"episodes"`
	Population          int           `ini:"population" yaml:"population"`
	MutationProbability float64       `ini:"mutation_probability" yaml:"mutation_probability"`
	MutationSpeed       float64       `ini:"mutation_speed" yaml:"mutation_speed"`
	StopFitness         float64       `ini:"stop_fitness" yaml:"stop_fitness"`
	MaxGenerations      int           `ini:"max_generations" yaml:"max_generations"`
	EnginePath          string        `ini:"engine_path" yaml:"engine_path"`
	Level               int           `ini:"level" yaml:"level"`
	Opponent            string        `ini:"opponent" yaml:"opponent"`
	MaxMoves            int           `ini:"max_moves" yaml:"max_moves"`
	Seed                int64         `ini:"seed" yaml:"seed"`
	Workers             int           `ini:"workers" yaml:"workers"`
	EpisodeWorkers      int           `ini:"episode_workers" yaml:"episode_workers"`
	CommandTimeout      time.Duration `ini:"command_timeout" yaml:"command_timeout"`
	Budget              time.Duration `ini:"budget" yaml:"budget"`
	Reduction           string        `ini:"reduction" yaml:"reduction"`
	FailurePenalty      float64       `ini:"failure_penalty" yaml:"failure_penalty"`
	Strict              bool          `ini:"strict" yaml:"strict"`
	TranscriptDir       string        `ini:"transcript_dir" yaml:"transcript_dir"`
	Samples             string        `ini:"samples" yaml:"samples"`
	SampleInputs        int           `ini:"sample_inputs" yaml:"sample_inputs"`
	Store               string        `ini:"store" yaml:"store"`
	DBPath              string        `ini:"db_path" yaml:"db_path"`
	RunID               string        `ini:"run_id" yaml:"run_id"`
	Resume              bool          `ini:"resume" yaml:"resume"`
	LogFormat           string        `ini:"log_format" yaml:"log_format"`
	LogLevel            string        `ini:"log_level" yaml:"log_level"`
}

// goDefaults mirror the original game trainer: a 9x9 board, 50 games per
// individual and a population of 10, stopping at an average margin of 70.
func goDefaults() runConfig {
	return runConfig{
		BoardSize:           9,
		Episodes:            50,
		Population:          10,
		MutationProbability: 0.001,
		MutationSpeed:       0.3,
		StopFitness:         -70,
		Level:               1,
		Opponent:            "engine",
		Workers:             1,
		EpisodeWorkers:      4,
		CommandTimeout:      30 * time.Second,
		Reduction:           "mean",
		FailurePenalty:      -1,
		Store:               storage.DefaultStoreKind(),
		DBPath:              "trainer.db",
		LogFormat:           "auto",
		LogLevel:            "info",
	}
}

// sampleDefaults train on XOR until the RMS error drops below 0.05.
// A negative mutation probability selects one gene per network on average.
func sampleDefaults() runConfig {
	cfg := goDefaults()
	cfg.Episodes = 0
	cfg.MutationProbability = -1
	cfg.StopFitness = 0.05
	cfg.MaxGenerations = 10000
	cfg.Workers = 4
	cfg.EpisodeWorkers = 1
	cfg.Reduction = "rms"
	cfg.SampleInputs = 2
	return cfg
}

func bindRunFlags(fs *flag.FlagSet, cfg *runConfig) {
	fs.IntVar(&cfg.BoardSize, "board-size", cfg.BoardSize, "board size")
	fs.IntVar(&cfg.Episodes, "episodes", cfg.Episodes, "episodes per fitness evaluation (0 uses every sample)")
	fs.IntVar(&cfg.Population, "pop", cfg.Population, "population size")
	fs.Float64Var(&cfg.MutationProbability, "mutation-probability", cfg.MutationProbability, "per-gene mutation probability (negative: one gene per network)")
	fs.Float64Var(&cfg.MutationSpeed, "mutation-speed", cfg.MutationSpeed, "mutation perturbation width")
	fs.Float64Var(&cfg.StopFitness, "stop-fitness", cfg.StopFitness, "stop once the best fitness is <= this value")
	fs.IntVar(&cfg.MaxGenerations, "gens", cfg.MaxGenerations, "generation limit (0 disables)")
	fs.StringVar(&cfg.EnginePath, "engine", cfg.EnginePath, "engine executable (default gnugo)")
	fs.IntVar(&cfg.Level, "level", cfg.Level, "engine strength level")
	fs.StringVar(&cfg.Opponent, "opponent", cfg.Opponent, "opponent: engine|random")
	fs.IntVar(&cfg.MaxMoves, "max-moves", cfg.MaxMoves, "move limit per game (0 derives one from the board size)")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "rng seed (0 seeds from the clock)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "individuals scored concurrently")
	fs.IntVar(&cfg.EpisodeWorkers, "episode-workers", cfg.EpisodeWorkers, "episodes played concurrently per individual")
	fs.DurationVar(&cfg.CommandTimeout, "command-timeout", cfg.CommandTimeout, "engine command timeout (0 disables)")
	fs.DurationVar(&cfg.Budget, "budget", cfg.Budget, "time budget per fitness evaluation (0 disables)")
	fs.StringVar(&cfg.Reduction, "reduction", cfg.Reduction, "episode reduction: mean|rms")
	fs.Float64Var(&cfg.FailurePenalty, "failure-penalty", cfg.FailurePenalty, "value of a failed episode (negative derives one from the scape)")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "abort the run on the first failed episode")
	fs.StringVar(&cfg.TranscriptDir, "transcripts", cfg.TranscriptDir, "directory for per-game protocol transcripts")
	fs.StringVar(&cfg.Samples, "samples", cfg.Samples, "CSV sample file (default XOR truth table)")
	fs.IntVar(&cfg.SampleInputs, "sample-inputs", cfg.SampleInputs, "input columns in the sample file")
	bindStoreFlags(fs, &cfg.Store, &cfg.DBPath)
	fs.StringVar(&cfg.RunID, "run-id", cfg.RunID, "explicit run id (optional)")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "continue run-id from its stored snapshot")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: auto|text|json")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
}

func bindStoreFlags(fs *flag.FlagSet, kind, path *string) {
	fs.StringVar(kind, "store", *kind, "store backend: memory|sqlite")
	fs.StringVar(path, "db-path", *path, "sqlite database path")
}

// parseRunConfig parses args over defaults. A -config file overrides the
// defaults but not the flags given explicitly.
func parseRunConfig(fs *flag.FlagSet, defaults runConfig, args []string) (runConfig, error) {
	cfg := defaults
	bindRunFlags(fs, &cfg)
	configPath := fs.String("config", "", "optional config file (.ini, .yaml or .yml)")
	if err := fs.Parse(args); err != nil {
		return runConfig{}, err
	}
	if fs.NArg() > 0 {
		return runConfig{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if *configPath == "" {
		return cfg, nil
	}

	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })
	if err := loadConfigFile(*configPath, &cfg); err != nil {
		return runConfig{}, fmt.Errorf("load config: %w", err)
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return runConfig{}, err
		}
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *runConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg", ".conf":
		return loadINI(path, cfg)
	case ".yaml", ".yml":
		return loadYAML(path, cfg)
	default:
		return fmt.Errorf("unsupported config format: %s", path)
	}
}

// loadINI reads top-level keys and the optional [trainer] section, which
// wins over the top level.
func loadINI(path string, cfg *runConfig) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return err
	}
	if err := file.Section(ini.DefaultSection).MapTo(cfg); err != nil {
		return fmt.Errorf("map top-level keys: %w", err)
	}
	if section, err := file.GetSection("trainer"); err == nil {
		if err := section.MapTo(cfg); err != nil {
			return fmt.Errorf("map [trainer] section: %w", err)
		}
	}
	return nil
}

func loadYAML(path string, cfg *runConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
