package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/groundwork-io/groundwork/internal/config"
	"github.com/groundwork-io/groundwork/internal/ir"
	"github.com/groundwork-io/groundwork/internal/provider"
	"github.com/groundwork-io/groundwork/internal/state"
	"github.com/groundwork-io/groundwork/providers/aws"
	"github.com/groundwork-io/groundwork/providers/null"
)

// resolveDir turns the optional positional argument into the document
// directory, defaulting to the working directory.
func resolveDir(args []string) (string, error) {
	if len(args) == 0 {
		return os.Getwd()
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", args[0])
	}
	return abs, nil
}

// newRegistry wires up every built-in provider.
func newRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("null", func() provider.Interface { return null.New() })
	reg.Register("aws", func() provider.Interface { return aws.New() })
	return reg
}

// stateManager picks the state location: the --state flag wins, otherwise
// the default path under the document directory.
func stateManager(dir string) *state.Manager {
	if statePath != "" {
		return state.NewManager(statePath)
	}
	return state.NewManager(filepath.Join(dir, state.DefaultPath))
}

func loadConfig(dir string, vars map[string]string) (*ir.Config, error) {
	cfg, err := config.NewLoader().LoadDir(dir, vars)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

const timeRounding = 10 * time.Millisecond

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

func actionColor(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return colorize(colorGreen)
	case ir.ActionDestroy:
		return colorize(colorRed)
	case ir.ActionUpdate, ir.ActionReplace:
		return colorize(colorYellow)
	}
	return ""
}

func actionSymbol(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "+"
	case ir.ActionDestroy:
		return "-"
	case ir.ActionReplace:
		return "-/+"
	case ir.ActionUpdate:
		return "~"
	}
	return " "
}

// renderPlan prints the plan summary and the per-resource change list.
func renderPlan(plan *ir.Plan) {
	if plan.Empty() {
		fmt.Println("No changes. Infrastructure matches the configuration.")
		return
	}

	for _, change := range plan.Changes {
		color := actionColor(change.Action)
		reset := colorize(colorReset)

		kind := ""
		if change.Desired != nil {
			kind = change.Desired.Kind
		} else if change.Prior != nil {
			kind = change.Prior.Kind
		}

		fmt.Printf("\n%s# %s (%s) will be %sd%s\n", color, change.Address, kind, change.Action, reset)
		fmt.Printf("%s%s resource %q {%s\n", color, actionSymbol(change.Action), change.Address, reset)
		renderDiff(change.Diff)
		fmt.Printf("%s}%s\n", color, reset)
	}

	s := plan.Summary
	fmt.Printf("\nPlan: %d to create, %d to update, %d to replace, %d to destroy.\n",
		s.Create, s.Update, s.Replace, s.Destroy)
}

func renderDiff(diff map[string]*ir.AttrDiff) {
	for _, key := range sortedDiffKeys(diff) {
		d := diff[key]
		suffix := ""
		if d.ForcesReplacement {
			suffix = " # forces replacement"
		}
		switch d.Action {
		case "create":
			fmt.Printf("%s    + %s = %s%s%s\n", colorize(colorGreen), key, formatValue(d.After), suffix, colorize(colorReset))
		case "delete":
			fmt.Printf("%s    - %s = %s%s%s\n", colorize(colorRed), key, formatValue(d.Before), suffix, colorize(colorReset))
		case "update":
			fmt.Printf("%s    ~ %s = %s -> %s%s%s\n", colorize(colorYellow), key, formatValue(d.Before), formatValue(d.After), suffix, colorize(colorReset))
		}
	}
}

func sortedDiffKeys(diff map[string]*ir.AttrDiff) []string {
	keys := make([]string, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedOutputKeys(outputs map[string]any) []string {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v any) string {
	if v == nil {
		return "(known after apply)"
	}
	if s, ok := v.(string); ok {
		if _, _, isRef := ir.ParseRef(s); isRef {
			return "(known after apply)"
		}
		return fmt.Sprintf("%q", s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// confirm asks the operator for a yes before destructive operations.
func confirm(prompt string) bool {
	fmt.Printf("%s\n  Only 'yes' will be accepted to approve.\n\nEnter a value: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
