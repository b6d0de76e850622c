package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-io/groundwork/internal/ir"
)

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"web"`, formatValue("web"))
	assert.Equal(t, "22", formatValue(int64(22)))
	assert.Equal(t, `["a","b"]`, formatValue([]any{"a", "b"}))
	assert.Equal(t, "(known after apply)", formatValue(nil))
	assert.Equal(t, "(known after apply)", formatValue(ir.MakeRef("sg", "id")))
}

func TestActionSymbol(t *testing.T) {
	assert.Equal(t, "+", actionSymbol(ir.ActionCreate))
	assert.Equal(t, "-", actionSymbol(ir.ActionDestroy))
	assert.Equal(t, "-/+", actionSymbol(ir.ActionReplace))
	assert.Equal(t, "~", actionSymbol(ir.ActionUpdate))
}

func TestColorize(t *testing.T) {
	noColor = false
	assert.Equal(t, colorRed, colorize(colorRed))

	noColor = true
	assert.Equal(t, "", colorize(colorRed))

	noColor = false
}

func TestSortedDiffKeys(t *testing.T) {
	diff := map[string]*ir.AttrDiff{
		"zone": {},
		"ami":  {},
		"tags": {},
	}
	assert.Equal(t, []string{"ami", "tags", "zone"}, sortedDiffKeys(diff))
}

func TestRawOutput(t *testing.T) {
	assert.Equal(t, "203.0.113.10", rawOutput("203.0.113.10"))
	assert.Equal(t, "42", rawOutput(int64(42)))
}

func TestBuildInventory(t *testing.T) {
	st := &ir.State{
		Resources: []*ir.Record{
			{Name: "web", Outputs: map[string]any{"public_ip": "203.0.113.10"}},
			{Name: "db", Outputs: map[string]any{"private_ip": "10.0.0.5"}},
		},
		Outputs: map[string]any{"ssh_user": "admin"},
	}

	inv := buildInventory(st, "web_servers", "ec2-user")

	group, ok := inv["web_servers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"203.0.113.10"}, group["hosts"])
	assert.Equal(t, map[string]any{"ansible_user": "admin"}, group["vars"])

	meta := inv["_meta"].(map[string]any)
	hostvars := meta["hostvars"].(map[string]any)
	hv := hostvars["203.0.113.10"].(map[string]any)
	assert.Equal(t, "203.0.113.10", hv["ansible_host"])
	assert.Equal(t, "admin", hv["ansible_user"])
}

func TestBuildInventoryDeduplicates(t *testing.T) {
	st := &ir.State{
		Resources: []*ir.Record{
			{Name: "a", Outputs: map[string]any{"public_ip": "198.51.100.1"}},
		},
		Outputs: map[string]any{"public_ip": "198.51.100.1"},
	}

	inv := buildInventory(st, "g", "ec2-user")
	group := inv["g"].(map[string]any)
	assert.Equal(t, []string{"198.51.100.1"}, group["hosts"])
}

func TestResolveDirRejectsFile(t *testing.T) {
	_, err := resolveDir([]string{"cli_test.go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
