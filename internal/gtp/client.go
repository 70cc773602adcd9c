package gtp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	ErrProtocol = errors.New("gtp protocol violation")
	ErrTimeout  = errors.New("gtp command timed out")
	ErrClosed   = errors.New("gtp client closed")
)

// CommandError is a '?' response: the engine understood the exchange but
// refused the command.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("gtp %q rejected: %s", e.Command, e.Message)
}

// Response is one decoded reply. Text is the payload after the status
// sentinel; multi-line payloads are joined with "\n".
type Response struct {
	Success bool
	Text    string
}

type ClientOptions struct {
	// Timeout bounds a single command round trip. Zero disables it.
	Timeout time.Duration
	// Transcript receives every command and reply line when set.
	Transcript io.Writer
}

// Client speaks the half-duplex GTP exchange over a pair of streams: one
// command is written, then lines are read until the terminating blank line.
// Commands are serialized; after a timeout or a framing error the stream is
// out of sync and every later command fails with the same error.
type Client struct {
	w          io.Writer
	transcript io.Writer
	timeout    time.Duration

	lines    chan string
	readErr  error
	done     chan struct{}
	readDone chan struct{}

	mu        sync.Mutex
	broken    error
	closeOnce sync.Once
}

func NewClient(w io.Writer, r io.Reader, opts ClientOptions) *Client {
	c := &Client{
		w:          w,
		transcript: opts.Transcript,
		timeout:    opts.Timeout,
		lines:      make(chan string),
		done:       make(chan struct{}),
		readDone:   make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	defer close(c.readDone)
	defer close(c.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case c.lines <- strings.TrimRight(scanner.Text(), "\r"):
		case <-c.done:
			return
		}
	}
	c.readErr = scanner.Err()
}

// Execute sends command and returns the payload of a successful reply. A
// refused command yields *CommandError.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	resp, err := c.Exchange(ctx, command)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &CommandError{Command: command, Message: resp.Text}
	}
	return resp.Text, nil
}

// Exchange sends command and decodes the raw reply without interpreting its
// status.
func (c *Client) Exchange(ctx context.Context, command string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return Response{}, c.broken
	}

	resp, err := c.roundTrip(ctx, command)
	if err != nil {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			c.broken = err
		}
		return Response{}, err
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, command string) (Response, error) {
	if strings.ContainsAny(command, "\r\n") {
		return Response{}, fmt.Errorf("%w: command contains a line break: %q", ErrProtocol, command)
	}
	c.log("> " + command)
	if _, err := io.WriteString(c.w, command+"\n"); err != nil {
		return Response{}, fmt.Errorf("%w: write %q: %v", ErrProtocol, command, err)
	}

	var timer <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timer = t.C
	}

	var payload []string
	for {
		line, err := c.readLine(ctx, timer, command)
		if err != nil {
			return Response{}, err
		}
		c.log("< " + line)
		if line == "" {
			if len(payload) == 0 {
				continue
			}
			break
		}
		payload = append(payload, line)
	}
	return decode(command, payload)
}

func (c *Client) readLine(ctx context.Context, timer <-chan time.Time, command string) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			if c.readErr != nil {
				return "", fmt.Errorf("%w: reading reply to %q: %v", ErrProtocol, command, c.readErr)
			}
			return "", fmt.Errorf("%w: stream ended while reading reply to %q", ErrProtocol, command)
		}
		return line, nil
	case <-timer:
		return "", fmt.Errorf("%w: %q after %s", ErrTimeout, command, c.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", ErrClosed
	}
}

// decode accepts only the two status characters GTP defines. Anything else
// means the stream is out of sync.
func decode(command string, payload []string) (Response, error) {
	first := payload[0]
	var success bool
	switch first[0] {
	case '=':
		success = true
	case '?':
		success = false
	default:
		return Response{}, fmt.Errorf("%w: reply to %q starts with %q", ErrProtocol, command, first[:1])
	}
	payload[0] = strings.TrimLeft(first[1:], " \t")
	return Response{
		Success: success,
		Text:    strings.TrimSpace(strings.Join(payload, "\n")),
	}, nil
}

func (c *Client) log(line string) {
	if c.transcript == nil {
		return
	}
	_, _ = io.WriteString(c.transcript, line+"\n")
}

// ReaderDone is closed once the reader goroutine has returned. After Close it
// returns on the next line or when the input stream ends.
func (c *Client) ReaderDone() <-chan struct{} { return c.readDone }

// Close stops the reader goroutine. It does not close the underlying
// streams; their owner does.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.broken == nil {
			c.broken = ErrClosed
		}
		c.mu.Unlock()
	})
}
