package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/engine"
)

var validateVars map[string]string

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check that the documents parse and form a valid graph",
	Long: `Parses the desired-state documents, resolves variables and references,
and verifies the dependency graph is acyclic. Nothing is contacted and
nothing changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringToStringVar(&validateVars, "var", nil, "Set input variables (format: name=value)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir, validateVars)
	if err != nil {
		return err
	}

	resources := engine.Expand(cfg.Resources)
	if _, err := engine.BuildGraph(resources); err != nil {
		return err
	}

	fmt.Printf("Success! %d resources, %d outputs.\n", len(resources), len(cfg.Outputs))
	return nil
}
