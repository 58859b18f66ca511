// Package prompt asks the user yes/no questions on a terminal.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal asks questions on in/out. When in is not interactive every
// question resolves to its default without reading.
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New creates a Terminal over arbitrary streams.
func New(in io.Reader, out io.Writer, interactive bool) *Terminal {
	return &Terminal{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// NewStdio creates a Terminal on stdin/stderr, detecting whether stdin is a
// terminal.
func NewStdio() *Terminal {
	return New(os.Stdin, os.Stderr, term.IsTerminal(int(os.Stdin.Fd())))
}

// Confirm asks a yes/no question. An empty answer, an unrecognized answer,
// end of input, or a non-interactive terminal all select defaultYes.
// It blocks until answered or ctx is done.
func (t *Terminal) Confirm(ctx context.Context, message string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	fmt.Fprintf(t.out, "%s [%s] ", message, hint)

	if !t.interactive {
		fmt.Fprintf(t.out, "%s (non-interactive)\n", answerText(defaultYes))
		return defaultYes, nil
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil && r.err != io.EOF {
			return false, fmt.Errorf("read answer: %w", r.err)
		}
		return parseAnswer(r.line, defaultYes), nil
	}
}

func parseAnswer(line string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}

func answerText(yes bool) string {
	if yes {
		return "yes"
	}
	return "no"
}
