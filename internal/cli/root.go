package cli

import (
	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/logging"
)

var (
	logLevel  string
	statePath string
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "groundwork",
	Short: "Declarative infrastructure reconciliation",
	Long: `Groundwork converges real infrastructure toward declarative desired-state
documents. It builds a dependency graph from your resources, computes the
minimal set of changes against recorded state, and applies them in order.

Documents live in *.gw.hcl files; state is recorded in .groundwork/state.json.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $GROUNDWORK_LOG, then info")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Path to the state file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(versionCmd)
}
