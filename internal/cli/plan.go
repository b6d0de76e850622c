package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/engine"
)

var (
	planVars         map[string]string
	planOutFile      string
	planRefresh      bool
	planDetailedExit bool
)

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Show what changes would be applied",
	Long: `Computes the changes needed for real infrastructure to match the
desired-state documents, without applying anything.

Each resource gets one of: create, update, replace, destroy, or no
change. Attributes that cannot be known until a dependency exists show
as (known after apply).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringToStringVar(&planVars, "var", nil, "Set input variables (format: name=value)")
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write the plan as JSON to a file")
	planCmd.Flags().BoolVar(&planRefresh, "refresh", false, "Read live resource attributes into state before diffing")
	planCmd.Flags().BoolVar(&planDetailedExit, "detailed-exitcode", false, "Exit 2 when the plan contains changes")
}

func runPlan(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cfg, err := loadConfig(dir, planVars)
	if err != nil {
		return err
	}

	st, err := stateManager(dir).Read(ctx)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(newRegistry())
	if planRefresh {
		if _, err := eng.Refresh(ctx, cfg, st); err != nil {
			return fmt.Errorf("refresh before plan: %w", err)
		}
	}
	plan, err := eng.Plan(ctx, cfg, st)
	if err != nil {
		return err
	}

	renderPlan(plan)

	if planOutFile != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, data, 0600); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOutFile)
	}

	if planDetailedExit && !plan.Empty() {
		os.Exit(2)
	}
	return nil
}
