package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/engine"
	"github.com/groundwork-io/groundwork/internal/ir"
)

var (
	applyVars        map[string]string
	applyAutoApprove bool
	applyParallelism int
)

var applyCmd = &cobra.Command{
	Use:   "apply [dir]",
	Short: "Apply the changes needed to reach the desired state",
	Long: `Plans and then executes the changes needed for real infrastructure to
match the desired-state documents.

Every successful operation is recorded in state immediately, so a failed
apply keeps the work already done; rerunning continues from there.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringToStringVar(&applyVars, "var", nil, "Set input variables (format: name=value)")
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan")
	applyCmd.Flags().IntVar(&applyParallelism, "parallelism", 0, "Limit concurrent resource operations")
}

func runApply(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cfg, err := loadConfig(dir, applyVars)
	if err != nil {
		return err
	}

	mgr := stateManager(dir)
	if err := mgr.Lock(); err != nil {
		return err
	}
	defer mgr.Unlock()

	st, err := mgr.Read(ctx)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(newRegistry())
	if applyParallelism > 0 {
		eng.Parallelism = applyParallelism
	}

	plan, err := eng.Plan(ctx, cfg, st)
	if err != nil {
		return err
	}

	renderPlan(plan)
	if plan.Empty() {
		return nil
	}

	if !applyAutoApprove {
		if !confirm("\nDo you want to perform these actions?") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}
	fmt.Println()

	applyErr := eng.ApplyWithCallback(ctx, plan, st, printApplyEvent)

	// Persist whatever completed, even on failure.
	if err := mgr.Write(ctx, st); err != nil {
		if applyErr != nil {
			return fmt.Errorf("%w (additionally failed to save state: %v)", applyErr, err)
		}
		return err
	}

	if applyErr != nil {
		var partial *engine.PartialApplyError
		if errors.As(applyErr, &partial) {
			fmt.Printf("\nApply incomplete. Completed: %d, failed: %d, pending: %d.\n",
				len(partial.Completed), len(partial.Failed), len(partial.Pending))
			fmt.Println("Completed work is recorded; fix the errors and rerun apply.")
		}
		return applyErr
	}

	s := plan.Summary
	fmt.Printf("\nApply complete. Resources: %d created, %d updated, %d replaced, %d destroyed.\n",
		s.Create, s.Update, s.Replace, s.Destroy)

	if len(st.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		for _, k := range sortedOutputKeys(st.Outputs) {
			fmt.Printf("  %s = %s\n", k, formatValue(st.Outputs[k]))
		}
	}
	return nil
}

func printApplyEvent(ev engine.ApplyEvent) {
	switch ev.Status {
	case "started":
		fmt.Printf("%s: %s...\n", ev.Address, progressVerb(ev.Action))
	case "completed":
		fmt.Printf("%s: %s complete (%s)\n", ev.Address, string(ev.Action), ev.Duration.Round(timeRounding))
	case "failed":
		fmt.Printf("%s%s: %s failed: %v%s\n", colorize(colorRed), ev.Address, string(ev.Action), ev.Error, colorize(colorReset))
	}
}

func progressVerb(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "creating"
	case ir.ActionUpdate:
		return "updating"
	case ir.ActionReplace:
		return "replacing"
	case ir.ActionDestroy:
		return "destroying"
	}
	return string(action)
}
