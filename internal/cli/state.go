package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and modify recorded state",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources recorded in state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(nil)
		if err != nil {
			return err
		}
		st, err := stateManager(dir).Read(cmd.Context())
		if err != nil {
			return err
		}
		for _, rec := range st.Resources {
			fmt.Printf("%s (%s)\n", rec.Name, rec.Kind)
		}
		return nil
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one resource's recorded attributes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(nil)
		if err != nil {
			return err
		}
		st, err := stateManager(dir).Read(cmd.Context())
		if err != nil {
			return err
		}

		rec := st.Record(args[0])
		if rec == nil {
			return fmt.Errorf("no resource named %q in state", args[0])
		}

		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Forget a resource without destroying it",
	Long: `Removes a resource from state without touching the real infrastructure.
The resource becomes unmanaged; a later plan will want to create it again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(nil)
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

		if st.Record(args[0]) == nil {
			return fmt.Errorf("no resource named %q in state", args[0])
		}
		st.RemoveRecord(args[0])

		if err := mgr.Write(ctx, st); err != nil {
			return err
		}
		fmt.Printf("Removed %s from state.\n", args[0])
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateRmCmd)
}
