package scape

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mode89/go-trainer/internal/game"
	"github.com/mode89/go-trainer/internal/gtp"
	"github.com/mode89/go-trainer/internal/nn"
)

type Opponent string

const (
	OpponentEngine Opponent = "engine"
	OpponentRandom Opponent = "random"
)

func ParseOpponent(s string) (Opponent, error) {
	switch Opponent(s) {
	case "", OpponentEngine:
		return OpponentEngine, nil
	case OpponentRandom:
		return OpponentRandom, nil
	default:
		return "", fmt.Errorf("unsupported opponent: %s", s)
	}
}

// Session is one engine conversation for a single game.
type Session interface {
	game.Engine
	FinalScore(ctx context.Context) (gtp.Score, error)
	Close() error
}

// StartFunc opens a fresh session for an episode.
type StartFunc func(ctx context.Context, episode int, transcript io.Writer) (Session, error)

type GoConfig struct {
	BoardSize      int
	Level          int
	EnginePath     string
	Seed           int64
	CommandTimeout time.Duration
	Opponent       Opponent
	// MaxMoves ends runaway games. Zero picks a bound from the board size.
	MaxMoves int
	// TranscriptDir receives one protocol log per game when set.
	TranscriptDir string
	// Start overrides how sessions are opened. The default spawns the engine.
	Start StartFunc
}

// GoSource plays the network as black against a fresh engine process per
// episode. The episode value is the final score from white's side, so a
// network win is negative.
type GoSource struct {
	cfg   GoConfig
	games atomic.Int64
}

func NewGoSource(cfg GoConfig) (*GoSource, error) {
	if cfg.BoardSize <= 0 || cfg.BoardSize > gtp.MaxBoardSize {
		return nil, fmt.Errorf("board size must be in [1, %d], got %d", gtp.MaxBoardSize, cfg.BoardSize)
	}
	opponent, err := ParseOpponent(string(cfg.Opponent))
	if err != nil {
		return nil, err
	}
	cfg.Opponent = opponent
	if cfg.MaxMoves <= 0 {
		cfg.MaxMoves = 8 * cfg.BoardSize * cfg.BoardSize
	}
	if cfg.Start == nil {
		cfg.Start = engineStarter(cfg)
	}
	return &GoSource{cfg: cfg}, nil
}

func engineStarter(cfg GoConfig) StartFunc {
	return func(_ context.Context, episode int, transcript io.Writer) (Session, error) {
		seed := cfg.Seed
		if seed != 0 {
			seed += int64(episode)
		}
		return gtp.StartEngine(gtp.EngineConfig{
			Path:       cfg.EnginePath,
			Level:      cfg.Level,
			BoardSize:  cfg.BoardSize,
			Seed:       seed,
			Timeout:    cfg.CommandTimeout,
			Transcript: transcript,
		})
	}
}

func (s *GoSource) Name() string { return fmt.Sprintf("go%d", s.cfg.BoardSize) }

// Shape is the network input and output count for the board.
func (s *GoSource) Shape() (inputs, outputs int) {
	return game.NetworkShape(s.cfg.BoardSize)
}

func (s *GoSource) Run(ctx context.Context, net *nn.Network, episode int) (float64, error) {
	number := s.games.Add(1)
	transcript, closeTranscript, err := s.openTranscript(number)
	if err != nil {
		return 0, err
	}
	defer closeTranscript()

	session, err := s.cfg.Start(ctx, episode, transcript)
	if err != nil {
		return 0, fmt.Errorf("start engine: %w", err)
	}
	defer func() { _ = session.Close() }()

	var opponent game.Player = game.NewEnginePlayer(session)
	if s.cfg.Opponent == OpponentRandom {
		opponent = game.NewRandomPlayer(session, rand.New(rand.NewSource(s.cfg.Seed+number)))
	}
	g := game.New(s.cfg.BoardSize, session, game.NewNetworkPlayer(net, session), opponent)
	g.MaxMoves = s.cfg.MaxMoves
	if _, err := g.Play(ctx); err != nil {
		return 0, err
	}

	score, err := session.FinalScore(ctx)
	if err != nil {
		return 0, fmt.Errorf("final score: %w", err)
	}
	return score.For(gtp.White), nil
}

func (s *GoSource) openTranscript(number int64) (io.Writer, func(), error) {
	if s.cfg.TranscriptDir == "" {
		return nil, func() {}, nil
	}
	if err := os.MkdirAll(s.cfg.TranscriptDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create transcript dir: %w", err)
	}
	path := filepath.Join(s.cfg.TranscriptDir, fmt.Sprintf("game%06d.log", number))
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create transcript: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
