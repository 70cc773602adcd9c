package gtptest

import (
	"sort"
	"strings"
	"sync"

	"github.com/mode89/go-trainer/internal/gtp"
)

// Goban is a minimal rules-free engine: stones are never captured, a move is
// legal when its cell is empty, and genmove takes the first empty cell in
// row-major order or passes when the board is full.
type Goban struct {
	Size int
	// Score is the final_score payload. Empty means "0".
	Score string
	// Refuse makes play reject additional moves.
	Refuse func(color gtp.Color, move gtp.Move) bool

	mu     sync.Mutex
	stones map[gtp.Move]gtp.Color
}

func NewGoban(size int) *Goban {
	return &Goban{Size: size, stones: map[gtp.Move]gtp.Color{}}
}

func (g *Goban) Handle(command string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "? empty command"
	}
	switch fields[0] {
	case "clear_board":
		g.stones = map[gtp.Move]gtp.Color{}
		return "="
	case "boardsize", "quit":
		return "="
	case "play", "is_legal":
		if len(fields) != 3 {
			return "? syntax error"
		}
		color, err := gtp.ParseColor(fields[1])
		if err != nil {
			return "? invalid color"
		}
		move, err := gtp.ParseVertex(fields[2])
		if err != nil {
			return "? invalid coordinate"
		}
		legal := g.legal(color, move)
		if fields[0] == "is_legal" {
			if legal {
				return "= 1"
			}
			return "= 0"
		}
		if !legal {
			return "? illegal move"
		}
		if !move.Pass {
			g.stones[move] = color
		}
		return "="
	case "genmove":
		if len(fields) != 2 {
			return "? syntax error"
		}
		color, err := gtp.ParseColor(fields[1])
		if err != nil {
			return "? invalid color"
		}
		for row := 0; row < g.Size; row++ {
			for column := 0; column < g.Size; column++ {
				move := gtp.Place(row, column)
				if g.legal(color, move) {
					g.stones[move] = color
					return "= " + strings.ToUpper(move.String())
				}
			}
		}
		return "= PASS"
	case "list_stones":
		if len(fields) != 2 {
			return "? syntax error"
		}
		color, err := gtp.ParseColor(fields[1])
		if err != nil {
			return "? invalid color"
		}
		var vertices []string
		for move, owner := range g.stones {
			if owner == color {
				vertices = append(vertices, move.String())
			}
		}
		sort.Strings(vertices)
		return strings.TrimRight("= "+strings.Join(vertices, " "), " ")
	case "final_score":
		if g.Score == "" {
			return "= 0"
		}
		return "= " + g.Score
	case "showboard":
		return "=\n" + g.render()
	default:
		return "? unknown command"
	}
}

// Stones returns a copy of the occupied cells.
func (g *Goban) Stones() map[gtp.Move]gtp.Color {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[gtp.Move]gtp.Color, len(g.stones))
	for k, v := range g.stones {
		out[k] = v
	}
	return out
}

func (g *Goban) legal(color gtp.Color, move gtp.Move) bool {
	if move.Pass {
		return true
	}
	if move.Row < 0 || move.Row >= g.Size || move.Column < 0 || move.Column >= g.Size {
		return false
	}
	if _, taken := g.stones[move]; taken {
		return false
	}
	return g.Refuse == nil || !g.Refuse(color, move)
}

func (g *Goban) render() string {
	var b strings.Builder
	for row := 0; row < g.Size; row++ {
		for column := 0; column < g.Size; column++ {
			switch owner, ok := g.stones[gtp.Place(row, column)]; {
			case !ok:
				b.WriteByte('.')
			case owner == gtp.Black:
				b.WriteByte('X')
			default:
				b.WriteByte('O')
			}
		}
		if row < g.Size-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
