package game

import (
	"context"
	"fmt"

	"github.com/mode89/go-trainer/internal/gtp"
)

type Game struct {
	Engine Engine
	Board  *Board
	Black  Player
	White  Player
	// MaxMoves ends the game early when positive.
	MaxMoves int
}

func New(boardSize int, engine Engine, black, white Player) *Game {
	return &Game{
		Engine: engine,
		Board:  NewBoard(boardSize),
		Black:  black,
		White:  white,
	}
}

type Result struct {
	Moves     int
	Passes    int
	Truncated bool
}

// Play runs one game from an empty board. Black moves first and the players
// alternate until two consecutive passes. The local board is rebuilt from
// the engine after every move that does not end the game.
func (g *Game) Play(ctx context.Context) (Result, error) {
	if err := g.Engine.ClearBoard(ctx); err != nil {
		return Result{}, fmt.Errorf("clear board: %w", err)
	}
	g.Board.Clear()

	players := [2]Player{g.Black, g.White}
	colors := [2]gtp.Color{gtp.Black, gtp.White}
	for i, player := range players {
		if err := player.Init(colors[i], g.Board.Size()); err != nil {
			return Result{}, fmt.Errorf("init %s player: %w", colors[i], err)
		}
	}

	var result Result
	previousPass := false
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if g.MaxMoves > 0 && result.Moves >= g.MaxMoves {
			result.Truncated = true
			return result, nil
		}

		turn := result.Moves & 1
		move, err := players[turn].MakeMove(ctx, g.Board)
		if err != nil {
			return result, fmt.Errorf("move %d (%s): %w", result.Moves+1, colors[turn], err)
		}
		result.Moves++
		if move.Pass {
			result.Passes++
		}
		if result.Moves > 1 && previousPass && move.Pass {
			return result, nil
		}
		previousPass = move.Pass

		if err := g.Board.Refresh(ctx, g.Engine); err != nil {
			return result, fmt.Errorf("refresh board: %w", err)
		}
	}
}
