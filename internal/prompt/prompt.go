// Package prompt asks the operator for confirmation on a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when input is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("input needs a terminal")

// Terminal reads answers from In and writes questions to Out.
type Terminal struct {
	Out         io.Writer
	AssumeYes   bool // Answer yes to every confirmation
	Interactive bool // In is a terminal

	in *bufio.Reader
}

// New creates a Terminal on stdin and stderr.
func New(assumeYes bool) *Terminal {
	return &Terminal{
		Out:         os.Stderr,
		AssumeYes:   assumeYes,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		in:          bufio.NewReader(os.Stdin),
	}
}

// NewWith creates a Terminal on arbitrary streams, treated as interactive.
func NewWith(in io.Reader, out io.Writer, assumeYes bool) *Terminal {
	return &Terminal{Out: out, AssumeYes: assumeYes, Interactive: true, in: bufio.NewReader(in)}
}

// Confirm asks a yes/no question; only "y" or "yes" confirm. Without a
// terminal it refuses unless AssumeYes is set.
func (t *Terminal) Confirm(question string) bool {
	if t.AssumeYes {
		fmt.Fprintf(t.Out, "%s yes (--yes)\n", question)
		return true
	}
	if !t.Interactive {
		fmt.Fprintf(t.Out, "%s no (not a terminal; pass --yes to confirm)\n", question)
		return false
	}

	fmt.Fprintf(t.Out, "%s [y/N]: ", question)
	answer, err := t.readLine()
	if err != nil {
		fmt.Fprintln(t.Out)
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// Choose asks the operator to pick one option by number.
func (t *Terminal) Choose(title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("nothing to choose from")
	}
	if !t.Interactive {
		return "", fmt.Errorf("%s: %w", title, ErrNotInteractive)
	}

	fmt.Fprintln(t.Out, title)
	for i, o := range options {
		fmt.Fprintf(t.Out, "  %d) %s\n", i+1, o)
	}

	for {
		fmt.Fprintf(t.Out, "Choice [1-%d]: ", len(options))
		answer, err := t.readLine()
		if err != nil {
			return "", fmt.Errorf("%s: %w", title, err)
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		fmt.Fprintf(t.Out, "%q is not a valid choice\n", answer)
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
