package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/vmtune"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of vmtune",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vmtune version %s\n", strings.TrimSpace(vmtune.Version))
		},
	}
}
