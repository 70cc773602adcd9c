package gtp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

func (c *Client) ClearBoard(ctx context.Context) error {
	_, err := c.Execute(ctx, "clear_board")
	return err
}

func (c *Client) BoardSize(ctx context.Context, size int) error {
	_, err := c.Execute(ctx, "boardsize "+strconv.Itoa(size))
	return err
}

// Play offers a move for color. A refusal is reported as false with a nil
// error; only transport failures are errors.
func (c *Client) Play(ctx context.Context, color Color, move Move) (bool, error) {
	_, err := c.Execute(ctx, fmt.Sprintf("play %s %s", color, move))
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) IsLegal(ctx context.Context, color Color, move Move) (bool, error) {
	text, err := c.Execute(ctx, fmt.Sprintf("is_legal %s %s", color, move))
	if err != nil {
		return false, err
	}
	return text == "1", nil
}

// Genmove asks the engine to pick and play a move for color.
func (c *Client) Genmove(ctx context.Context, color Color) (Move, error) {
	text, err := c.Execute(ctx, "genmove "+color.String())
	if err != nil {
		return Move{}, err
	}
	if strings.EqualFold(text, "resign") {
		return Move{}, fmt.Errorf("%w: engine resigned", ErrProtocol)
	}
	return ParseVertex(text)
}

// ListStones returns the placements of every stone of color on the board.
func (c *Client) ListStones(ctx context.Context, color Color) ([]Move, error) {
	text, err := c.Execute(ctx, "list_stones "+color.String())
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(text)
	stones := make([]Move, 0, len(fields))
	for _, field := range fields {
		move, err := ParseVertex(field)
		if err != nil {
			return nil, err
		}
		if move.Pass {
			return nil, fmt.Errorf("%w: pass in stone list", ErrProtocol)
		}
		stones = append(stones, move)
	}
	return stones, nil
}

func (c *Client) FinalScore(ctx context.Context) (Score, error) {
	text, err := c.Execute(ctx, "final_score")
	if err != nil {
		return Score{}, err
	}
	return ParseScore(text)
}

func (c *Client) ShowBoard(ctx context.Context) (string, error) {
	return c.Execute(ctx, "showboard")
}

func (c *Client) Quit(ctx context.Context) error {
	_, err := c.Execute(ctx, "quit")
	return err
}
