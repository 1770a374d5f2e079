package main

import (
	"fmt"

	"github.com/aretw0/vmtune"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/spf13/cobra"
)

func newReconcileCmd(action string) *cobra.Command {
	short := "Bring a fragment into the target"
	if action == "remove" {
		short = "Take a fragment out of the target"
	}
	cmd := &cobra.Command{
		Use:   action + " <kind>",
		Short: short,
		Long: fmt.Sprintf(`Runs one %s transaction: query, back up, mutate, apply, verify, then commit or roll back.
Boot kinds edit the boot parameter file; descriptor kinds need --domain. See "vmtune kinds".`, action),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcile(cmd, args[0], domain.Action(action))
		},
	}
	addParamFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Plan and print the diff without touching the target")
	cmd.Flags().Bool("resolve-conflicts", false, "Remove duplicates of a singleton element before inserting")
	return cmd
}

func reconcile(cmd *cobra.Command, kindName string, action domain.Action) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	kind, ok := a.engine.Kind(kindName)
	if !ok {
		return &exitError{code: exitFailed, err: fmt.Errorf("%w: %s (see \"vmtune kinds\")", domain.ErrUnknownKind, kindName)}
	}
	target, err := a.target(cmd, kind.Doc)
	if err != nil {
		return err
	}
	params, err := a.params(cmd, kindName)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	resolve, _ := cmd.Flags().GetBool("resolve-conflicts")

	res, _ := a.engine.Reconcile(cmd.Context(), vmtune.Request{
		Target:           target,
		Kind:             kindName,
		Action:           action,
		Params:           params,
		ResolveConflicts: resolve,
		DryRun:           dryRun,
	})
	printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.styler, res)
	return exitFor(res)
}

// exitFor maps a transaction outcome to the process exit code.
func exitFor(res *domain.Result) error {
	switch res.Outcome {
	case domain.OutcomeRollbackFailed:
		return &exitError{code: exitRollbackFailed}
	case domain.OutcomeFailed, domain.OutcomeRolledBack:
		return &exitError{code: exitFailed}
	}
	return nil
}
