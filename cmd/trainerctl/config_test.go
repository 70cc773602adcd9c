package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseRunConfigDefaults(t *testing.T) {
	cfg, err := parseRunConfig(newFlagSet(), goDefaults(), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BoardSize != 9 || cfg.Episodes != 50 || cfg.Population != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MutationProbability != 0.001 || cfg.MutationSpeed != 0.3 || cfg.StopFitness != -70 {
		t.Fatalf("unexpected GA defaults: %+v", cfg)
	}
}

func TestParseRunConfigFlags(t *testing.T) {
	cfg, err := parseRunConfig(newFlagSet(), goDefaults(), []string{
		"-board-size", "5", "-pop", "16", "-command-timeout", "2s", "-strict", "-opponent", "random",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BoardSize != 5 || cfg.Population != 16 || cfg.CommandTimeout != 2*time.Second || !cfg.Strict || cfg.Opponent != "random" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if _, err := parseRunConfig(newFlagSet(), goDefaults(), []string{"extra"}); err == nil {
		t.Fatal("expected unexpected argument error")
	}
}

func TestParseRunConfigYAMLWithFlagOverride(t *testing.T) {
	path := writeFile(t, "run.yaml", strings.Join([]string{
		"board_size: 7",
		"population: 20",
		"mutation_speed: 0.5",
		"budget: 90s",
		"opponent: random",
	}, "\n"))
	cfg, err := parseRunConfig(newFlagSet(), goDefaults(), []string{"-config", path, "-pop", "12"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BoardSize != 7 || cfg.MutationSpeed != 0.5 || cfg.Budget != 90*time.Second || cfg.Opponent != "random" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Population != 12 {
		t.Fatalf("explicit flag must win over the file: got=%d want=12", cfg.Population)
	}
	if cfg.Episodes != 50 {
		t.Fatalf("missing file keys must keep defaults: got=%d want=50", cfg.Episodes)
	}
}

func TestParseRunConfigYAMLUnknownKey(t *testing.T) {
	path := writeFile(t, "run.yml", "boardsize: 7\n")
	if _, err := parseRunConfig(newFlagSet(), goDefaults(), []string{"-config", path}); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestParseRunConfigINI(t *testing.T) {
	path := writeFile(t, "run.ini", strings.Join([]string{
		"episodes = 8",
		"level = 3",
		"",
		"[trainer]",
		"level = 5",
		"stop_fitness = -10.5",
		"command_timeout = 5s",
		"strict = true",
	}, "\n"))
	cfg, err := parseRunConfig(newFlagSet(), goDefaults(), []string{"-config", path})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Episodes != 8 || cfg.Level != 5 || cfg.StopFitness != -10.5 {
		t.Fatalf("ini values not applied: %+v", cfg)
	}
	if cfg.CommandTimeout != 5*time.Second || !cfg.Strict {
		t.Fatalf("ini duration/bool not applied: %+v", cfg)
	}
}

func TestParseRunConfigUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "run.toml", "")
	if _, err := parseRunConfig(newFlagSet(), goDefaults(), []string{"-config", path}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "auto", "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	if out := buf.String(); !strings.HasPrefix(out, "{") || !strings.Contains(out, `"msg":"shown"`) || strings.Contains(out, "hidden") {
		t.Fatalf("expected JSON output at warn level, got %q", out)
	}

	buf.Reset()
	logger, err = newLogger(&buf, "text", "info")
	if err != nil {
		t.Fatalf("new text logger: %v", err)
	}
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}

	if _, err := newLogger(&buf, "xml", "info"); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := newLogger(&buf, "json", "loud"); err == nil {
		t.Fatal("expected level error")
	}
}
