// Package tui styles terminal output.
package tui

import (
	"io"
	"os"
	"strings"

	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styler colors status words and diffs. The zero profile (Ascii) prints plain text.
type Styler struct {
	profile termenv.Profile
}

// NewStyler detects the color support of w. Colors are off for anything but a
// terminal and when NO_COLOR is set.
func NewStyler(w io.Writer) *Styler {
	if !IsTerminal(w) || os.Getenv("NO_COLOR") != "" {
		return &Styler{profile: termenv.Ascii}
	}
	return &Styler{profile: termenv.NewOutput(w).EnvColorProfile()}
}

// NewStylerProfile uses a fixed profile.
func NewStylerProfile(p termenv.Profile) *Styler {
	return &Styler{profile: p}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *Styler) paint(text, color string, bold bool) string {
	if s.profile == termenv.Ascii {
		return text
	}
	out := termenv.String(text).Foreground(s.profile.Color(color))
	if bold {
		out = out.Bold()
	}
	return out.String()
}

// Status colors a matcher verdict.
func (s *Styler) Status(st domain.Status) string {
	switch st {
	case domain.StatusSatisfied:
		return s.paint(string(st), "#22c55e", false)
	case domain.StatusAbsent:
		return s.paint(string(st), "#94a3b8", false)
	case domain.StatusPartiallyPresent:
		return s.paint(string(st), "#f59e0b", false)
	default:
		return s.paint(string(st), "#ef4444", true)
	}
}

// Outcome colors a reconciliation outcome.
func (s *Styler) Outcome(o domain.Outcome) string {
	switch o {
	case domain.OutcomeApplied:
		return s.paint(string(o), "#22c55e", true)
	case domain.OutcomeUnchanged:
		return s.paint(string(o), "#94a3b8", false)
	case domain.OutcomeRollbackFailed:
		return s.paint(string(o), "#ef4444", true)
	default:
		return s.paint(string(o), "#f59e0b", true)
	}
}

// Diff colors the lines of a unified diff.
func (s *Styler) Diff(text string) string {
	if s.profile == termenv.Ascii || text == "" {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			lines[i] = s.paint(body, "#e2e8f0", true) + nl
		case strings.HasPrefix(body, "@@"):
			lines[i] = s.paint(body, "#818cf8", false) + nl
		case strings.HasPrefix(body, "+"):
			lines[i] = s.paint(body, "#22c55e", false) + nl
		case strings.HasPrefix(body, "-"):
			lines[i] = s.paint(body, "#ef4444", false) + nl
		}
	}
	return strings.Join(lines, "")
}
