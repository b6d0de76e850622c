package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var outputJSON bool

var outputCmd = &cobra.Command{
	Use:   "output [name]",
	Short: "Show output values from the last apply",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(nil)
		if err != nil {
			return err
		}
		st, err := stateManager(dir).Read(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			v, ok := st.Outputs[args[0]]
			if !ok {
				return fmt.Errorf("no output named %q", args[0])
			}
			if outputJSON {
				data, err := json.Marshal(v)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				fmt.Println(rawOutput(v))
			}
			return nil
		}

		if outputJSON {
			data, err := json.MarshalIndent(st.Outputs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, k := range sortedOutputKeys(st.Outputs) {
			fmt.Printf("%s = %s\n", k, formatValue(st.Outputs[k]))
		}
		return nil
	},
}

func init() {
	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Print outputs as JSON")
}

// rawOutput prints scalar outputs unquoted so they compose in shell scripts.
func rawOutput(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return formatValue(v)
}
