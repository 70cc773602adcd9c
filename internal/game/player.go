package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/mode89/go-trainer/internal/gtp"
	"github.com/mode89/go-trainer/internal/nn"
)

var ErrNetworkShape = errors.New("network does not match board")

// Engine is the part of a GTP session a game needs. *gtp.Client and
// *gtp.Engine satisfy it.
type Engine interface {
	ClearBoard(ctx context.Context) error
	Play(ctx context.Context, color gtp.Color, move gtp.Move) (bool, error)
	IsLegal(ctx context.Context, color gtp.Color, move gtp.Move) (bool, error)
	Genmove(ctx context.Context, color gtp.Color) (gtp.Move, error)
	ListStones(ctx context.Context, color gtp.Color) ([]gtp.Move, error)
}

// Player chooses a move and makes sure the engine has recorded it before
// returning.
type Player interface {
	Init(color gtp.Color, boardSize int) error
	MakeMove(ctx context.Context, board *Board) (gtp.Move, error)
}

// NetworkPlayer feeds the board to a network with one input per cell and
// one output per cell plus a final pass output.
type NetworkPlayer struct {
	engine Engine
	eval   *nn.Evaluator
	color  gtp.Color
	inputs []float64
	order  []int
}

func NewNetworkPlayer(net *nn.Network, engine Engine) *NetworkPlayer {
	return &NetworkPlayer{engine: engine, eval: nn.NewEvaluator(net)}
}

func NetworkShape(boardSize int) (inputs, outputs int) {
	cells := boardSize * boardSize
	return cells, cells + 1
}

func (p *NetworkPlayer) Init(color gtp.Color, boardSize int) error {
	inputs, outputs := NetworkShape(boardSize)
	net := p.eval.Network()
	if net.Inputs() != inputs || net.Outputs() != outputs {
		return fmt.Errorf("%w: network %d->%d, board %dx%d needs %d->%d",
			ErrNetworkShape, net.Inputs(), net.Outputs(), boardSize, boardSize, inputs, outputs)
	}
	p.color = color
	p.inputs = make([]float64, inputs)
	p.order = make([]int, outputs)
	return nil
}

// MakeMove offers candidates to the engine from the strongest output down.
// A refused candidate falls through to the next one; when every candidate
// is refused the player passes without consulting the engine again.
func (p *NetworkPlayer) MakeMove(ctx context.Context, board *Board) (gtp.Move, error) {
	own := CellOf(p.color)
	size := board.Size()
	for row := 0; row < size; row++ {
		for column := 0; column < size; column++ {
			input := &p.inputs[row*size+column]
			switch cell := board.At(row, column); {
			case cell == Empty:
				*input = 0
			case cell == own:
				*input = 1
			default:
				*input = -1
			}
		}
	}

	outputs, err := p.eval.Evaluate(p.inputs)
	if err != nil {
		return gtp.Move{}, err
	}
	RankOutputs(outputs, p.order)

	for _, index := range p.order {
		move := OutputMove(index, size)
		accepted, err := p.engine.Play(ctx, p.color, move)
		if err != nil {
			return gtp.Move{}, err
		}
		if accepted {
			return move, nil
		}
	}
	return gtp.PassMove(), nil
}

// RankOutputs fills order with output indices from the strongest output
// down, so the highest-ranked candidate is offered first. Ties keep index
// order.
func RankOutputs(outputs []float64, order []int) {
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return outputs[order[i]] > outputs[order[j]]
	})
}

// OutputMove maps a network output index to its move: row-major cells
// followed by pass.
func OutputMove(index, boardSize int) gtp.Move {
	if index >= boardSize*boardSize {
		return gtp.PassMove()
	}
	return gtp.Place(index/boardSize, index%boardSize)
}

// EnginePlayer lets the engine pick its own moves.
type EnginePlayer struct {
	engine Engine
	color  gtp.Color
}

func NewEnginePlayer(engine Engine) *EnginePlayer {
	return &EnginePlayer{engine: engine}
}

func (p *EnginePlayer) Init(color gtp.Color, _ int) error {
	p.color = color
	return nil
}

func (p *EnginePlayer) MakeMove(ctx context.Context, _ *Board) (gtp.Move, error) {
	return p.engine.Genmove(ctx, p.color)
}

// RandomPlayer places a stone on a uniformly drawn cell, or passes with
// weight 1/cells against 1 for placing, retrying until the engine calls the
// move legal.
type RandomPlayer struct {
	engine Engine
	rng    *rand.Rand
	color  gtp.Color
}

func NewRandomPlayer(engine Engine, rng *rand.Rand) *RandomPlayer {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &RandomPlayer{engine: engine, rng: rng}
}

func (p *RandomPlayer) Init(color gtp.Color, _ int) error {
	p.color = color
	return nil
}

func (p *RandomPlayer) MakeMove(ctx context.Context, board *Board) (gtp.Move, error) {
	size := board.Size()
	cells := float64(board.Cells())
	passWeight := 1 / cells
	maxAttempts := 100 * board.Cells()

	move := gtp.PassMove()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := gtp.PassMove()
		if p.rng.Float64()*(1+passWeight) < 1 {
			candidate = gtp.Place(p.rng.Intn(size), p.rng.Intn(size))
		}
		legal, err := p.engine.IsLegal(ctx, p.color, candidate)
		if err != nil {
			return gtp.Move{}, err
		}
		if legal {
			move = candidate
			break
		}
	}
	if _, err := p.engine.Play(ctx, p.color, move); err != nil {
		return gtp.Move{}, err
	}
	return move, nil
}
