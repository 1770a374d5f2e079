// Package presentation renders reconciliation results for people: unified diffs of
// the document before and after, and markdown summaries.
package presentation

import (
	"fmt"
	"strings"

	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff between before and after, or "" when they are equal.
func Diff(name, before, after string) string {
	if before == after {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: name + " (current)",
		ToFile:   name + " (desired)",
		Context:  3,
	})
	if err != nil {
		// Writing to a strings.Builder cannot fail.
		return ""
	}
	return text
}

// splitLines splits s after each newline. Unlike difflib.SplitLines it adds no
// empty line after a trailing newline, and a last line without one gets it.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	lines[len(lines)-1] += "\n"
	return lines
}

// KindsMarkdown lists kinds as a markdown table.
func KindsMarkdown(kinds []registry.Kind) string {
	var b strings.Builder
	b.WriteString("# Fragment kinds\n\n")
	b.WriteString("| Kind | Document | Params | Description |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, k := range kinds {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", k.Name, k.Doc, k.Usage, k.Description)
	}
	return b.String()
}
