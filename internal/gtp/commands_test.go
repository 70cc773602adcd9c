package gtp_test

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/mode89/go-trainer/internal/gtp"
	"github.com/mode89/go-trainer/internal/gtp/gtptest"
)

func TestVertexEncoding(t *testing.T) {
	tests := []struct {
		move gtp.Move
		want string
	}{
		{gtp.Place(0, 0), "A1"},
		{gtp.Place(7, 4), "H5"},
		{gtp.Place(8, 0), "J1"},
		{gtp.Place(8, 8), "J9"},
		{gtp.Place(18, 18), "T19"},
		{gtp.PassMove(), "pass"},
	}
	for _, tc := range tests {
		if got := tc.move.String(); got != tc.want {
			t.Fatalf("encode %+v: got=%q want=%q", tc.move, got, tc.want)
		}
		back, err := gtp.ParseVertex(tc.want)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.want, err)
		}
		if back != tc.move {
			t.Fatalf("parse %q: got=%+v want=%+v", tc.want, back, tc.move)
		}
	}
}

func TestParseVertexRejects(t *testing.T) {
	for _, input := range []string{"", "A", "I3", "A0", "A99", "11", "resign"} {
		if _, err := gtp.ParseVertex(input); !errors.Is(err, gtp.ErrProtocol) {
			t.Fatalf("parse %q: expected ErrProtocol, got %v", input, err)
		}
	}
	if move, err := gtp.ParseVertex("PASS"); err != nil || !move.Pass {
		t.Fatalf("parse PASS: move=%+v err=%v", move, err)
	}
	if move, err := gtp.ParseVertex("j3"); err != nil || move != gtp.Place(8, 2) {
		t.Fatalf("parse lower case: move=%+v err=%v", move, err)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		input string
		white float64
		black float64
	}{
		{"W+12.5", 12.5, -12.5},
		{"B+3", -3, 3},
		{"0", 0, 0},
	}
	for _, tc := range tests {
		score, err := gtp.ParseScore(tc.input)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.input, err)
		}
		if got := score.For(gtp.White); got != tc.white {
			t.Fatalf("%q for white: got=%v want=%v", tc.input, got, tc.white)
		}
		if got := score.For(gtp.Black); got != tc.black {
			t.Fatalf("%q for black: got=%v want=%v", tc.input, got, tc.black)
		}
	}
	for _, bad := range []string{"", "X+1", "W+", "W12"} {
		if _, err := gtp.ParseScore(bad); !errors.Is(err, gtp.ErrProtocol) {
			t.Fatalf("parse %q: expected ErrProtocol, got %v", bad, err)
		}
	}
}

func TestTypedCommandsAgainstGoban(t *testing.T) {
	goban := gtptest.NewGoban(3)
	goban.Score = "W+7.5"
	server := gtptest.NewServer(goban.Handle, gtp.ClientOptions{})
	defer server.Close()
	client := server.Client
	ctx := context.Background()

	if err := client.BoardSize(ctx, 3); err != nil {
		t.Fatalf("boardsize: %v", err)
	}
	if err := client.ClearBoard(ctx); err != nil {
		t.Fatalf("clear board: %v", err)
	}
	ok, err := client.Play(ctx, gtp.Black, gtp.Place(1, 1))
	if err != nil || !ok {
		t.Fatalf("play: ok=%v err=%v", ok, err)
	}
	ok, err = client.Play(ctx, gtp.White, gtp.Place(1, 1))
	if err != nil {
		t.Fatalf("play occupied: %v", err)
	}
	if ok {
		t.Fatal("expected occupied cell to be refused")
	}
	legal, err := client.IsLegal(ctx, gtp.White, gtp.Place(1, 1))
	if err != nil || legal {
		t.Fatalf("is_legal occupied: legal=%v err=%v", legal, err)
	}

	move, err := client.Genmove(ctx, gtp.White)
	if err != nil {
		t.Fatalf("genmove: %v", err)
	}
	if move != gtp.Place(0, 0) {
		t.Fatalf("unexpected genmove: %+v", move)
	}

	black, err := client.ListStones(ctx, gtp.Black)
	if err != nil {
		t.Fatalf("list black: %v", err)
	}
	if len(black) != 1 || black[0] != gtp.Place(1, 1) {
		t.Fatalf("unexpected black stones: %+v", black)
	}
	white, err := client.ListStones(ctx, gtp.White)
	if err != nil {
		t.Fatalf("list white: %v", err)
	}
	if len(white) != 1 || white[0] != gtp.Place(0, 0) {
		t.Fatalf("unexpected white stones: %+v", white)
	}

	board, err := client.ShowBoard(ctx)
	if err != nil {
		t.Fatalf("showboard: %v", err)
	}
	if board != "O..\n.X.\n..." {
		t.Fatalf("unexpected board:\n%s", board)
	}

	score, err := client.FinalScore(ctx)
	if err != nil {
		t.Fatalf("final score: %v", err)
	}
	if score.For(gtp.White) != 7.5 {
		t.Fatalf("unexpected score: %+v", score)
	}
	if err := client.Quit(ctx); err != nil {
		t.Fatalf("quit: %v", err)
	}

	want := []string{"play black B2", "play white B2"}
	got := server.CommandsWithPrefix("play ")
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected play commands: got=%v want=%v", got, want)
	}
}

func TestEngineArgs(t *testing.T) {
	cfg := gtp.EngineConfig{Level: 1, BoardSize: 9}
	want := "--mode gtp --level 1 --boardsize 9 --never-resign"
	if got := strings.Join(cfg.Args(), " "); got != want {
		t.Fatalf("unexpected args: got=%q want=%q", got, want)
	}
	cfg.Seed = 42
	want = "--mode gtp --level 1 --boardsize 9 --seed 42 --never-resign"
	if got := strings.Join(cfg.Args(), " "); got != want {
		t.Fatalf("unexpected seeded args: got=%q want=%q", got, want)
	}
}

func TestStartEngineMissingBinary(t *testing.T) {
	_, err := gtp.StartEngine(gtp.EngineConfig{Path: "/nonexistent/gnugo", BoardSize: 9})
	if err == nil {
		t.Fatal("expected start error for missing binary")
	}
	if _, err := gtp.StartEngine(gtp.EngineConfig{BoardSize: 0}); err == nil {
		t.Fatal("expected board size error")
	}
}

func TestEngineCloseAfterExit(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	engine, err := gtp.StartEngine(gtp.EngineConfig{Path: path, BoardSize: 9, Timeout: time.Second})
	if err != nil {
		t.Fatalf("start engine: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-engine.ReaderDone():
	default:
		t.Fatal("close returned before the reader finished")
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
