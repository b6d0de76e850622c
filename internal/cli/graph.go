package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/engine"
)

var graphVars map[string]string

var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Print the dependency graph in Graphviz format",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(dir, graphVars)
		if err != nil {
			return err
		}

		g, err := engine.BuildGraph(engine.Expand(cfg.Resources))
		if err != nil {
			return err
		}

		fmt.Print(g.Dot())
		return nil
	},
}

func init() {
	graphCmd.Flags().StringToStringVar(&graphVars, "var", nil, "Set input variables (format: name=value)")
}
