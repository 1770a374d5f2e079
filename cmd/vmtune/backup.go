package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Inspect and restore backups",
		Long:  `Backups are taken before every mutation and kept whenever a transaction does not commit.`,
	}

	ls := &cobra.Command{
		Use:   "ls [target]",
		Short: "List backups, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			backups, err := a.engine.Backups(cmd.Context(), target)
			if err != nil {
				return &exitError{code: exitFailed, err: err}
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tTARGET\tKIND\tPATH")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.CreatedAt.Local().Format(time.DateTime), b.Target, b.Kind, b.Path)
			}
			return w.Flush()
		},
	}

	restore := &cobra.Command{
		Use:   "restore <path>",
		Short: "Put a backup back on its target",
		Long: `Defines the backup text on the target and checks it reads back byte for byte.
This is the manual recovery after RollbackFailed. Descriptor backups go to --domain, or to
the domain the backup was taken from; boot backups go to the configured boot file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			backup, err := a.engine.Backup(cmd.Context(), args[0])
			if err != nil {
				return &exitError{code: exitFailed, err: err}
			}
			kind, ok := a.engine.Kind(backup.Kind)
			if !ok {
				return &exitError{code: exitFailed, err: fmt.Errorf("%w: %s", domain.ErrUnknownKind, backup.Kind)}
			}
			if name, _ := cmd.Flags().GetString("domain"); name == "" {
				_ = cmd.Flags().Set("domain", backup.Target)
			}
			target, err := a.target(cmd, kind.Doc)
			if err != nil {
				return err
			}

			res, _ := a.engine.Restore(cmd.Context(), target, backup.Path)
			printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.styler, res)
			return exitFor(res)
		},
	}

	cmd.AddCommand(ls, restore)
	return cmd
}
