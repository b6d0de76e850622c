package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/engine"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [dir]",
	Short: "Destroy all managed infrastructure",
	Long: `Removes every resource recorded in state, dependents before their
dependencies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	mgr := stateManager(dir)
	if err := mgr.Lock(); err != nil {
		return err
	}
	defer mgr.Unlock()

	st, err := mgr.Read(ctx)
	if err != nil {
		return err
	}
	if len(st.Resources) == 0 {
		fmt.Println("Nothing to destroy.")
		return nil
	}

	eng := engine.NewEngine(newRegistry())
	plan, err := eng.DestroyPlan(ctx, st)
	if err != nil {
		return err
	}

	renderPlan(plan)

	if !destroyAutoApprove {
		if !confirm(fmt.Sprintf("\nDo you really want to destroy all %d resources?", len(plan.Changes))) {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}
	fmt.Println()

	applyErr := eng.ApplyWithCallback(ctx, plan, st, printApplyEvent)

	if err := mgr.Write(ctx, st); err != nil {
		if applyErr != nil {
			return fmt.Errorf("%w (additionally failed to save state: %v)", applyErr, err)
		}
		return err
	}
	if applyErr != nil {
		return applyErr
	}

	fmt.Printf("\nDestroy complete. Resources: %d destroyed.\n", plan.Summary.Destroy)
	return nil
}
