package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/mode89/go-trainer/internal/nn"
)

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil, io.Discard, io.Discard); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"fly"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestRunXOR(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := []string{"xor", "-store", "memory", "-pop", "4", "-gens", "2", "-stop-fitness", "-1", "-seed", "9", "-log-format", "json"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run xor: %v\n%s", err, stderr.String())
	}
	if out := stdout.String(); !strings.Contains(out, "generations=2") || !strings.Contains(out, "reached=false") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(stderr.String(), `"msg":"generation complete"`) {
		t.Fatalf("expected generation logs, got %q", stderr.String())
	}
}

func TestRunXORSamplesFile(t *testing.T) {
	path := writeFile(t, "and.csv", "a,b,and\n0,0,0\n0,1,0\n1,0,0\n1,1,1\n")
	var stdout bytes.Buffer
	args := []string{"xor", "-store", "memory", "-samples", path, "-pop", "3", "-gens", "1", "-stop-fitness", "-1", "-log-level", "error"}
	if err := run(context.Background(), args, &stdout, io.Discard); err != nil {
		t.Fatalf("run samples: %v", err)
	}
	if !strings.Contains(stdout.String(), "generations=1") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestRunTrainValidation(t *testing.T) {
	if err := run(context.Background(), []string{"train", "-opponent", "human"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected opponent error")
	}
	if err := run(context.Background(), []string{"train", "-board-size", "0"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected board size error")
	}
	if err := run(context.Background(), []string{"xor", "-store", "memory", "-resume"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected resume without run id error")
	}
}

func TestRunHistoryUnknownRun(t *testing.T) {
	if err := run(context.Background(), []string{"history", "-store", "memory", "-run-id", "missing"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected run not found error")
	}
	if err := run(context.Background(), []string{"best", "-store", "memory"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestWriteOpening(t *testing.T) {
	// 2x2 board: output 3 (B2) is strongest, then pass.
	layer := nn.Layer{
		{Threshold: 3, Weights: make([]float64, 4)},
		{Threshold: 4, Weights: make([]float64, 4)},
		{Threshold: 2, Weights: make([]float64, 4)},
		{Threshold: -2, Weights: make([]float64, 4)},
		{Threshold: -1, Weights: make([]float64, 4)},
	}
	net, err := nn.New(4, []nn.Layer{layer})
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	var buf bytes.Buffer
	if err := writeOpening(&buf, net); err != nil {
		t.Fatalf("write opening: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 || !strings.HasPrefix(lines[0], "1. B2 ") || !strings.HasPrefix(lines[1], "2. pass ") {
		t.Fatalf("unexpected opening: %q", buf.String())
	}

	wide, err := nn.Zero([]int{3, 1})
	if err != nil {
		t.Fatalf("zero network: %v", err)
	}
	if err := writeOpening(&buf, wide); err == nil {
		t.Fatal("expected shape error")
	}
}
