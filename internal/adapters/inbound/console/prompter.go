// Package console asks an operator to settle identity matches the
// automatic stages could not.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/core/identity"
)

type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

func (p *Prompter) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

// Sift lists candidates and reads a 1-based choice. Anything that is not a
// listed number is asked again; end of input answers "none".
func (p *Prompter) Sift(pr identity.SiftPrompt) identity.Selection {
	fmt.Fprintf(p.out, "\n(%d/%d) [%s] %s\n", pr.Position, pr.Total, pr.Pass, pr.Player.FullName())
	for i, c := range pr.Candidates {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, c)
	}
	fmt.Fprintln(p.out, "  0) none of these")
	for {
		fmt.Fprint(p.out, "> ")
		line, ok := p.readLine()
		if !ok {
			return identity.NoSelection
		}
		if line == "" {
			return identity.NoSelection
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 0 && n <= len(pr.Candidates) {
			return identity.Selection(n)
		}
		fmt.Fprintf(p.out, "enter a number between 0 and %d\n", len(pr.Candidates))
	}
}

// ProfileURL reads an FBRef profile link. A blank line skips the player and
// a malformed link is asked again.
func (p *Prompter) ProfileURL(pr identity.URLPrompt) string {
	fmt.Fprintf(p.out, "\n(%d/%d) FBRef profile URL for %s (blank to skip)\n", pr.Position, pr.Total, pr.Player.FullName())
	for {
		fmt.Fprint(p.out, "> ")
		line, ok := p.readLine()
		if !ok || line == "" {
			return ""
		}
		if _, _, valid := identity.ParseProfileURL(line); valid {
			return line
		}
		fmt.Fprintln(p.out, "expected https://fbref.com/en/players/{id}/{Name}")
	}
}
