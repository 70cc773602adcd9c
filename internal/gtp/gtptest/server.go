// Package gtptest runs in-process GTP peers over pipes for tests.
package gtptest

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/mode89/go-trainer/internal/gtp"
)

// Handler returns the raw reply for one command line, including the status
// sentinel but without the terminating blank line.
type Handler func(command string) string

// Server answers commands written by Client. It records every command it
// received.
type Server struct {
	Client *gtp.Client

	cmdW  *io.PipeWriter
	respW *io.PipeWriter

	mu       sync.Mutex
	commands []string
	done     chan struct{}
}

func NewServer(handler Handler, opts gtp.ClientOptions) *Server {
	cmdR, cmdW := io.Pipe()
	respR, respW := io.Pipe()
	s := &Server{
		Client: gtp.NewClient(cmdW, respR, opts),
		cmdW:   cmdW,
		respW:  respW,
		done:   make(chan struct{}),
	}
	go s.serve(cmdR, handler)
	return s
}

func (s *Server) serve(r io.Reader, handler Handler) {
	defer close(s.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		command := scanner.Text()
		s.mu.Lock()
		s.commands = append(s.commands, command)
		s.mu.Unlock()
		reply := handler(command)
		if _, err := io.WriteString(s.respW, reply+"\n\n"); err != nil {
			return
		}
	}
}

func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// CommandsWithPrefix filters Commands by their first word.
func (s *Server) CommandsWithPrefix(prefix string) []string {
	var out []string
	for _, command := range s.Commands() {
		if strings.HasPrefix(command, prefix) {
			out = append(out, command)
		}
	}
	return out
}

// Close tears down both pipes and waits for the serving goroutine.
func (s *Server) Close() error {
	s.Client.Close()
	_ = s.cmdW.Close()
	_ = s.respW.Close()
	<-s.done
	return nil
}
