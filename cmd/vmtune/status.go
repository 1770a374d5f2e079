package main

import (
	"fmt"

	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [kind]",
		Short: "Compare the target with a fragment without changing anything",
		Long: `Reports Satisfied, Absent, PartiallyPresent or Conflicting.
Exits 4 when the fragment is not satisfied and 5 when the target is conflicting.
With --all every kind of the selected document type is checked with the params from the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}
	addParamFlags(cmd)
	cmd.Flags().Bool("all", false, "Check every kind (boot kinds, or descriptor kinds with --domain)")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 1) {
		return usageError("give either a kind or --all")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var results []*domain.Result
	if all {
		doc := document.KindParamLine
		if name, _ := cmd.Flags().GetString("domain"); name != "" {
			doc = document.KindTree
		}
		target, err := a.target(cmd, doc)
		if err != nil {
			return err
		}
		params := make(map[string]registry.Params, len(a.cfg.Params))
		for kind, p := range a.cfg.Params {
			params[kind] = p
		}
		for _, res := range a.engine.StatusAll(cmd.Context(), target, params) {
			// Kinds with required params are only checked once the config names them.
			if res.Code == domain.CodePrecondition && params[res.Kind] == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s skipped (no params in config)\n", res.Kind)
				continue
			}
			results = append(results, res)
		}
	} else {
		kind, ok := a.engine.Kind(args[0])
		if !ok {
			return &exitError{code: exitFailed, err: domain.Errorf(domain.CodePrecondition, "%w: %s", domain.ErrUnknownKind, args[0])}
		}
		target, err := a.target(cmd, kind.Doc)
		if err != nil {
			return err
		}
		params, err := a.params(cmd, args[0])
		if err != nil {
			return err
		}
		res, _ := a.engine.Status(cmd.Context(), target, args[0], params)
		results = append(results, res)
	}

	for _, res := range results {
		printStatus(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.styler, res)
	}
	return exitForStatus(results)
}

// exitForStatus reports the worst status: errors, then conflicts, then drift.
func exitForStatus(results []*domain.Result) error {
	code := exitOK
	for _, res := range results {
		switch {
		case res.Err != nil:
			return &exitError{code: exitFailed}
		case res.Status == domain.StatusConflicting:
			code = exitConflicting
		case res.Status != domain.StatusSatisfied && code == exitOK:
			code = exitNotSatisfied
		}
	}
	if code == exitOK {
		return nil
	}
	return &exitError{code: code}
}
