package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"arkdrop/internal/dispatch"
)

var errNotTerminal = errors.New("stdin is not a terminal")

func newConfirmer(assumeYes bool) dispatch.Confirmer {
	if assumeYes {
		return dispatch.AlwaysConfirm{}
	}
	return termConfirmer{in: os.Stdin, out: os.Stderr}
}

// termConfirmer asks on the controlling terminal. Without one it
// refuses rather than guessing.
type termConfirmer struct {
	in  *os.File
	out io.Writer
}

func (c termConfirmer) Confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(c.in.Fd())) {
		return false, fmt.Errorf("cannot confirm %q: %w", prompt, errNotTerminal)
	}
	return askYesNo(c.in, c.out, prompt)
}

func askYesNo(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readPassword reads without echo on a terminal, or one line otherwise.
func readPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(out, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
