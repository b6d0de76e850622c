package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-io/groundwork/internal/ir"
)

func stateWithSg() *ir.State {
	return &ir.State{
		Resources: []*ir.Record{
			{
				Name: "sg", Kind: "fake.SecurityGroup", Provider: "fake", ID: "sg-123",
				Inputs:  map[string]any{"description": "web"},
				Outputs: map[string]any{"id": "sg-123", "owner": map[string]any{"account": "42"}},
			},
		},
	}
}

func TestResolveRefsSubstitutes(t *testing.T) {
	st := stateWithSg()

	v := ResolveRefs(map[string]any{
		"groups": []any{ir.MakeRef("sg", "id")},
		"plain":  "untouched",
	}, st)

	m := v.(map[string]any)
	assert.Equal(t, []any{"sg-123"}, m["groups"])
	assert.Equal(t, "untouched", m["plain"])
}

func TestResolveRefsDottedPath(t *testing.T) {
	st := stateWithSg()

	v := ResolveRefs(ir.MakeRef("sg", "owner.account"), st)
	assert.Equal(t, "42", v)
}

func TestResolveRefsFallsBackToInputs(t *testing.T) {
	st := stateWithSg()

	v := ResolveRefs(ir.MakeRef("sg", "description"), st)
	assert.Equal(t, "web", v)
}

func TestResolveRefsUnknownStaysSymbolic(t *testing.T) {
	st := stateWithSg()

	marker := ir.MakeRef("db", "endpoint")
	v := ResolveRefs(marker, st)
	assert.Equal(t, marker, v, "unrealized reference is known after apply")
}

func TestResolveRefsStrictErrors(t *testing.T) {
	st := stateWithSg()

	_, err := ResolveRefsStrict(map[string]any{
		"endpoint": ir.MakeRef("db", "endpoint"),
	}, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved references")
	assert.Contains(t, err.Error(), "db")
}

func TestResolveRefsDoesNotMutateInput(t *testing.T) {
	st := stateWithSg()

	in := map[string]any{"groups": []any{ir.MakeRef("sg", "id")}}
	ResolveRefs(in, st)
	assert.Equal(t, ir.MakeRef("sg", "id"), in["groups"].([]any)[0])
}
