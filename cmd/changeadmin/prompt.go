package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword
var readPassword = term.ReadPassword

// prompter reads answers from the operator
type prompter struct {
	reader *bufio.Reader
	out    io.Writer
	// fd is the terminal passwords are read from without echo
	fd int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{
		reader: bufio.NewReader(in),
		out:    out,
		fd:     int(os.Stdin.Fd()),
	}
}

// Line prints the prompt and reads one trimmed line.
// A final line without a newline is returned as is.
func (p *prompter) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a password without echo when attached to a terminal,
// and falls back to a plain line otherwise (piped input).
func (p *prompter) Password(prompt string) (string, error) {
	if !term.IsTerminal(p.fd) {
		return p.Line(prompt)
	}

	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pw)), nil
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes.
func (p *prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.Line(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
