package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/engine"
	"github.com/groundwork-io/groundwork/internal/ir"
)

var refreshVars map[string]string

var refreshCmd = &cobra.Command{
	Use:   "refresh [dir]",
	Short: "Reconcile state with real infrastructure",
	Long: `Reads every recorded resource back from its provider and updates the
state to match what actually exists. Resources that have vanished are
dropped so the next plan recreates them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringToStringVar(&refreshVars, "var", nil, "Set input variables (format: name=value)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// Provider settings come from the documents when present.
	var cfg *ir.Config
	if loaded, err := loadConfig(dir, refreshVars); err == nil {
		cfg = loaded
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
	if len(st.Resources) == 0 {
		fmt.Println("State is empty; nothing to refresh.")
		return nil
	}

	eng := engine.NewEngine(newRegistry())
	result, err := eng.Refresh(ctx, cfg, st)
	if err != nil {
		return err
	}

	if err := mgr.Write(ctx, st); err != nil {
		return err
	}

	fmt.Printf("Refreshed %d resources.\n", result.Checked)
	for _, name := range result.Updated {
		fmt.Printf("  ~ %s: attributes changed\n", name)
	}
	for _, name := range result.Removed {
		fmt.Printf("  - %s: no longer exists, removed from state\n", name)
	}
	return nil
}
