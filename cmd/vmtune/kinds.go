package main

import (
	"fmt"
	"os"

	"github.com/aretw0/vmtune/internal/presentation"
	"github.com/aretw0/vmtune/internal/presentation/tui"
	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the fragment kinds and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			md := presentation.KindsMarkdown(registry.Default().Kinds())
			out := cmd.OutOrStdout()

			// Plain markdown when piped; rendered tables on a terminal.
			if f, ok := out.(*os.File); ok && tui.IsTerminal(f) {
				width := 100
				if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
					width = w
				}
				if rendered, err := tui.NewRenderer(width)(md); err == nil {
					md = rendered
				}
			}
			_, err := fmt.Fprint(out, md)
			return err
		},
	}
}
