package gtp

import (
	"fmt"
	"strconv"
	"strings"
)

type Color int

const (
	Black Color = iota
	White
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "black":
		return Black, nil
	case "w", "white":
		return White, nil
	default:
		return Black, fmt.Errorf("%w: unknown color %q", ErrProtocol, s)
	}
}

// MaxBoardSize is bounded by the row letters: A through Z without I.
const MaxBoardSize = 25

// Move is either a pass or a placement at a zero-based row and column.
type Move struct {
	Pass   bool
	Row    int
	Column int
}

func PassMove() Move { return Move{Pass: true} }

func Place(row, column int) Move { return Move{Row: row, Column: column} }

// String encodes the move as a vertex: the row letter, skipping I, followed
// by the one-based column. Row 8 is "J".
func (m Move) String() string {
	if m.Pass {
		return "pass"
	}
	letter := byte('A' + m.Row)
	if letter >= 'I' {
		letter++
	}
	return string(letter) + strconv.Itoa(m.Column+1)
}

// ParseVertex decodes a vertex or "pass" in any letter case.
func ParseVertex(s string) (Move, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "PASS" {
		return PassMove(), nil
	}
	if len(s) < 2 {
		return Move{}, fmt.Errorf("%w: bad vertex %q", ErrProtocol, s)
	}
	letter := s[0]
	if letter < 'A' || letter > 'Z' || letter == 'I' {
		return Move{}, fmt.Errorf("%w: bad vertex row %q", ErrProtocol, s)
	}
	row := int(letter - 'A')
	if letter > 'I' {
		row--
	}
	column, err := strconv.Atoi(s[1:])
	if err != nil || column < 1 || column > MaxBoardSize {
		return Move{}, fmt.Errorf("%w: bad vertex column %q", ErrProtocol, s)
	}
	return Place(row, column-1), nil
}

// Score is a decoded final_score reply. Margin is zero for a draw.
type Score struct {
	Winner Color
	Margin float64
}

// For returns the score from color's point of view: positive when color
// won.
func (s Score) For(color Color) float64 {
	if s.Winner == color {
		return s.Margin
	}
	return -s.Margin
}

// ParseScore decodes "W+12.5", "B+3" or "0".
func ParseScore(s string) (Score, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "0" {
		return Score{}, nil
	}
	if len(s) < 3 || s[1] != '+' {
		return Score{}, fmt.Errorf("%w: bad score %q", ErrProtocol, s)
	}
	winner, err := ParseColor(s[:1])
	if err != nil {
		return Score{}, err
	}
	margin, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return Score{}, fmt.Errorf("%w: bad score margin %q", ErrProtocol, s)
	}
	return Score{Winner: winner, Margin: margin}, nil
}
