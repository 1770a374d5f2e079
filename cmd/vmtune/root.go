package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK             = 0
	exitFailed         = 1 // Failed or RolledBack
	exitUsage          = 2
	exitRollbackFailed = 3
	exitNotSatisfied   = 4
	exitConflicting    = 5
)

// exitError carries a process exit code out of a command. A nil err means the
// command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vmtune",
		Short: "vmtune reconciles boot parameters and VM domain descriptors",
		Long: `vmtune brings kernel boot parameters and libvirt domain descriptors into a declared state.
Every change is backed up, applied, verified by reading the target back, and rolled back on failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (YAML or TOML, default /etc/vmtune/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringP("domain", "d", "", "Domain name for descriptor kinds")
	cmd.PersistentFlags().String("boot-file", "", "Boot parameter file for boot kinds (default from config)")
	cmd.PersistentFlags().Bool("virsh", false, "Reach the daemon through the virsh binary instead of the RPC socket")

	cmd.AddCommand(
		newReconcileCmd("apply"),
		newReconcileCmd("remove"),
		newStatusCmd(),
		newKindsCmd(),
		newBackupCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return cmd
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if !errors.As(err, &exitErr) {
		// cobra's own errors: unknown command, bad flags, wrong arg count.
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}
	if exitErr.err != nil {
		fmt.Fprintln(stderr, "Error:", exitErr.err)
	}
	return exitErr.code
}
