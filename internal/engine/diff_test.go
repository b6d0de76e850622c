package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-io/groundwork/internal/provider"
)

func TestDiffAttrsScalar(t *testing.T) {
	schema := &provider.ResourceSchema{Kind: "fake.Thing"}

	diff := diffAttrs(
		map[string]any{"a": "one", "b": int64(2)},
		map[string]any{"a": "one", "b": int64(3)},
		schema,
	)

	require.Len(t, diff, 1)
	assert.Equal(t, "update", diff["b"].Action)
	assert.Equal(t, int64(2), diff["b"].Before)
	assert.Equal(t, int64(3), diff["b"].After)
}

func TestDiffAttrsAddedAndRemoved(t *testing.T) {
	schema := &provider.ResourceSchema{Kind: "fake.Thing"}

	diff := diffAttrs(
		map[string]any{"gone": "x"},
		map[string]any{"new": "y"},
		schema,
	)

	require.Len(t, diff, 2)
	assert.Equal(t, "delete", diff["gone"].Action)
	assert.Equal(t, "create", diff["new"].Action)
}

func TestDiffAttrsSkipsComputed(t *testing.T) {
	schema := &provider.ResourceSchema{Kind: "fake.Thing", Computed: []string{"id", "arn"}}

	diff := diffAttrs(
		map[string]any{"id": "i-1", "arn": "arn:1", "name": "a"},
		map[string]any{"name": "a"},
		schema,
	)

	assert.Empty(t, diff)
}

func TestDiffAttrsForceNewMarksReplacement(t *testing.T) {
	schema := &provider.ResourceSchema{Kind: "fake.Thing", ForceNew: []string{"image_id"}}

	diff := diffAttrs(
		map[string]any{"image_id": "ami-1"},
		map[string]any{"image_id": "ami-2"},
		schema,
	)

	require.Contains(t, diff, "image_id")
	assert.True(t, diff["image_id"].ForcesReplacement)
}

func TestValueEqualNumericTypes(t *testing.T) {
	assert.True(t, valueEqual(int64(22), float64(22), false))
	assert.True(t, valueEqual(float64(22), int64(22), false))
	assert.False(t, valueEqual(int64(22), float64(23), false))
	assert.False(t, valueEqual(int64(22), "22", false))
}

func TestValueEqualNested(t *testing.T) {
	a := map[string]any{"rules": []any{map[string]any{"port": int64(80)}}}
	b := map[string]any{"rules": []any{map[string]any{"port": float64(80)}}}
	assert.True(t, valueEqual(a, b, false))

	b = map[string]any{"rules": []any{map[string]any{"port": float64(81)}}}
	assert.False(t, valueEqual(a, b, false))
}

func TestValueEqualSetSemantics(t *testing.T) {
	a := []any{"x", "y", "z"}
	b := []any{"z", "x", "y"}

	assert.False(t, valueEqual(a, b, false), "ordered comparison sees a change")
	assert.True(t, valueEqual(a, b, true), "set comparison does not")

	assert.False(t, valueEqual([]any{"x", "x"}, []any{"x", "y"}, true))
	assert.False(t, valueEqual([]any{"x"}, []any{"x", "x"}, true))
}
