package main

import (
	"fmt"
	"io"

	"github.com/aretw0/vmtune/internal/presentation"
	"github.com/aretw0/vmtune/internal/presentation/tui"
	"github.com/aretw0/vmtune/pkg/domain"
)

// printResult writes a transaction summary to out and its error, if any, to errOut.
func printResult(out, errOut io.Writer, s *tui.Styler, res *domain.Result) {
	fmt.Fprintf(out, "%s %s on %s: %s", res.Action, res.Kind, res.Target, s.Outcome(res.Outcome))
	if res.DryRun {
		fmt.Fprint(out, " (dry run)")
	}
	if res.Status != "" {
		fmt.Fprintf(out, " [was %s]", s.Status(res.Status))
	}
	fmt.Fprintln(out)
	printParts(out, s, res)

	if res.Outcome == domain.OutcomeApplied || res.DryRun {
		if diff := presentation.Diff(res.Target, res.Before, res.After); diff != "" {
			fmt.Fprint(out, s.Diff(diff))
		}
	}
	if res.BackupPath != "" {
		fmt.Fprintf(out, "  backup: %s\n", res.BackupPath)
	}
	if res.Err != nil {
		fmt.Fprintln(errOut, "Error:", res.Err)
	}
}

// printStatus writes one status line per kind plus its parts.
func printStatus(out, errOut io.Writer, s *tui.Styler, res *domain.Result) {
	if res.Err != nil {
		fmt.Fprintf(out, "%-22s %s\n", res.Kind, s.Outcome(domain.OutcomeFailed))
		fmt.Fprintln(errOut, "Error:", res.Err)
		return
	}
	fmt.Fprintf(out, "%-22s %s\n", res.Kind, s.Status(res.Status))
	if res.Status != domain.StatusSatisfied {
		printParts(out, s, res)
	}
}

func printParts(out io.Writer, s *tui.Styler, res *domain.Result) {
	if len(res.Parts) < 2 && (len(res.Parts) == 0 || res.Parts[0].Detail == "") {
		return
	}
	for _, p := range res.Parts {
		fmt.Fprintf(out, "  %-20s %s", p.Name, s.Status(p.Status))
		if p.Detail != "" {
			fmt.Fprintf(out, "  %s", p.Detail)
		}
		fmt.Fprintln(out)
	}
}
