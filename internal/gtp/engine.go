package gtp

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultEnginePath = "gnugo"
	closeGrace        = 2 * time.Second
)

type EngineConfig struct {
	Path      string
	Level     int
	BoardSize int
	// Seed is passed to the engine when non-zero.
	Seed       int64
	Timeout    time.Duration
	Transcript io.Writer
	ExtraArgs  []string
}

// Args is the engine command line without the executable.
func (c EngineConfig) Args() []string {
	args := []string{
		"--mode", "gtp",
		"--level", strconv.Itoa(c.Level),
		"--boardsize", strconv.Itoa(c.BoardSize),
	}
	if c.Seed != 0 {
		args = append(args, "--seed", strconv.FormatInt(c.Seed, 10))
	}
	args = append(args, "--never-resign")
	return append(args, c.ExtraArgs...)
}

// Engine is a Client bound to a child process. Close must be called on every
// path once the engine has started.
type Engine struct {
	*Client

	cmd   *exec.Cmd
	stdin io.WriteCloser

	closeOnce sync.Once
	closeErr  error
}

func StartEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.BoardSize <= 0 || cfg.BoardSize > MaxBoardSize {
		return nil, fmt.Errorf("board size must be in [1, %d], got %d", MaxBoardSize, cfg.BoardSize)
	}
	path := cfg.Path
	if path == "" {
		path = DefaultEnginePath
	}

	cmd := exec.Command(path, cfg.Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start engine %s: %w", path, err)
	}

	return &Engine{
		Client: NewClient(stdin, stdout, ClientOptions{Timeout: cfg.Timeout, Transcript: cfg.Transcript}),
		cmd:    cmd,
		stdin:  stdin,
	}, nil
}

// Close asks the engine to quit, closes its input and waits for it to exit,
// killing it when it does not exit within a short grace period. The process
// is reaped only after the reader has drained its output.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
		_ = e.Client.Quit(ctx)
		cancel()
		e.Client.Close()
		_ = e.stdin.Close()

		deadline := time.NewTimer(closeGrace)
		defer deadline.Stop()
		killed := false
		kill := func() {
			_ = e.cmd.Process.Kill()
			killed = true
		}

		select {
		case <-e.Client.ReaderDone():
		case <-deadline.C:
			kill()
			<-e.Client.ReaderDone()
		}

		done := make(chan error, 1)
		go func() { done <- e.cmd.Wait() }()
		var err error
		if killed {
			err = <-done
		} else {
			select {
			case err = <-done:
			case <-deadline.C:
				kill()
				err = <-done
			}
		}
		switch {
		case killed:
			e.closeErr = fmt.Errorf("engine did not exit within %s and was killed", closeGrace)
		case err != nil:
			e.closeErr = fmt.Errorf("engine exit: %w", err)
		}
	})
	return e.closeErr
}
