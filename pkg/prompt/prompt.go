// Package prompt provides interactive input for wait_user and prompt steps.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Input reads one line from the operator. ok is false when there is no
// interactive channel (stdin is not a terminal, input ended, or
// interaction is disabled), in which case callers apply their fallback.
type Input interface {
	Read(ctx context.Context, message string) (line string, ok bool)
}

// Terminal reads from a terminal on stdin.
type Terminal struct {
	in  io.Reader
	out io.Writer
	tty bool

	mu      sync.Mutex
	reader  *bufio.Reader
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewTerminal creates an Input over os.Stdin/os.Stdout. It reports no
// channel when stdin is not a terminal.
func NewTerminal() *Terminal {
	return &Terminal{
		in:  os.Stdin,
		out: os.Stdout,
		tty: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewReader creates an Input over arbitrary streams, treated as interactive.
func NewReader(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, tty: true}
}

// Interactive reports whether Read can block for input.
func (t *Terminal) Interactive() bool {
	return t.tty
}

// Read prints message and waits for a line. Cancellation of ctx abandons
// the read and reports no channel.
func (t *Terminal) Read(ctx context.Context, message string) (string, bool) {
	if !t.tty {
		return "", false
	}

	if message != "" {
		fmt.Fprintf(t.out, "%s ", message)
	}

	select {
	case <-ctx.Done():
		return "", false
	case r := <-t.next():
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()
		if r.err != nil && r.line == "" {
			return "", false
		}
		return strings.TrimRight(r.line, "\r\n"), true
	}
}

// next returns the channel of the outstanding line read, starting one if
// none is running. A read abandoned by a cancelled context stays pending
// and feeds the following call.
func (t *Terminal) next() <-chan readResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		return t.pending
	}
	if t.reader == nil {
		t.reader = bufio.NewReader(t.in)
	}

	ch := make(chan readResult, 1)
	reader := t.reader
	go func() {
		line, err := reader.ReadString('\n')
		ch <- readResult{line, err}
	}()
	t.pending = ch
	return ch
}

// None never has an interactive channel. Used with --no-interactive.
type None struct{}

// Read always reports no channel.
func (None) Read(context.Context, string) (string, bool) {
	return "", false
}

// Scripted answers from a fixed list, then reports no channel.
type Scripted struct {
	mu       sync.Mutex
	answers  []string
	messages []string
}

// NewScripted creates a Scripted input.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// Read returns the next answer.
func (s *Scripted) Read(_ context.Context, message string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	if len(s.answers) == 0 {
		return "", false
	}
	line := s.answers[0]
	s.answers = s.answers[1:]
	return line, true
}

// Messages returns the messages shown so far.
func (s *Scripted) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}
