package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/mode89/go-trainer/internal/gtp"
)

type Cell int8

const (
	Empty Cell = iota
	BlackStone
	WhiteStone
)

func CellOf(color gtp.Color) Cell {
	if color == gtp.White {
		return WhiteStone
	}
	return BlackStone
}

// Board is a local mirror of the engine's position. It is rebuilt from the
// engine after every move and never judges legality itself.
type Board struct {
	size  int
	cells []Cell
}

func NewBoard(size int) *Board {
	return &Board{size: size, cells: make([]Cell, size*size)}
}

func (b *Board) Size() int { return b.size }

func (b *Board) Cells() int { return len(b.cells) }

func (b *Board) At(row, column int) Cell { return b.cells[row*b.size+column] }

func (b *Board) Set(row, column int, cell Cell) { b.cells[row*b.size+column] = cell }

func (b *Board) Clear() {
	for i := range b.cells {
		b.cells[i] = Empty
	}
}

func (b *Board) Count(cell Cell) int {
	n := 0
	for _, c := range b.cells {
		if c == cell {
			n++
		}
	}
	return n
}

// Refresh replaces the position with the stones the engine reports.
func (b *Board) Refresh(ctx context.Context, engine Engine) error {
	b.Clear()
	for _, color := range []gtp.Color{gtp.Black, gtp.White} {
		stones, err := engine.ListStones(ctx, color)
		if err != nil {
			return fmt.Errorf("list %s stones: %w", color, err)
		}
		for _, stone := range stones {
			if stone.Row < 0 || stone.Row >= b.size || stone.Column < 0 || stone.Column >= b.size {
				return fmt.Errorf("%w: stone %s outside %dx%d board", gtp.ErrProtocol, stone, b.size, b.size)
			}
			b.Set(stone.Row, stone.Column, CellOf(color))
		}
	}
	return nil
}

func (b *Board) String() string {
	var sb strings.Builder
	for row := 0; row < b.size; row++ {
		for column := 0; column < b.size; column++ {
			switch b.At(row, column) {
			case BlackStone:
				sb.WriteByte('X')
			case WhiteStone:
				sb.WriteByte('O')
			default:
				sb.WriteByte('.')
			}
		}
		if row < b.size-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
