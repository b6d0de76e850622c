package engine

import (
	"fmt"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// Expand flattens resources carrying a count into individual instances named
// name[i], substituting the count.index placeholder in their attributes. An
// explicit count of zero yields no instances. It must run before graph
// construction.
func Expand(resources []*ir.Resource) []*ir.Resource {
	var expanded []*ir.Resource

	countIndexRef := ir.MakeRef("count", "index")

	for _, res := range resources {
		if res.Count == nil {
			expanded = append(expanded, res)
			continue
		}
		for i := 0; i < *res.Count; i++ {
			clone := cloneResource(res)
			clone.Name = fmt.Sprintf("%s[%d]", res.Name, i)
			clone.Attrs = substitute(clone.Attrs, countIndexRef, int64(i)).(map[string]any)
			expanded = append(expanded, clone)
		}
	}

	for i, res := range expanded {
		res.DeclOrder = i
	}
	return expanded
}

func cloneResource(res *ir.Resource) *ir.Resource {
	clone := &ir.Resource{
		Kind:      res.Kind,
		Name:      res.Name,
		Provider:  res.Provider,
		Timeout:   res.Timeout,
		DeclOrder: res.DeclOrder,
	}
	if res.Lifecycle != nil {
		clone.Lifecycle = &ir.Lifecycle{
			CreateBeforeDestroy: res.Lifecycle.CreateBeforeDestroy,
			PreventDestroy:      res.Lifecycle.PreventDestroy,
			IgnoreChanges:       append([]string{}, res.Lifecycle.IgnoreChanges...),
		}
	}
	clone.DependsOn = append([]string{}, res.DependsOn...)
	clone.Attrs = deepCopyValue(res.Attrs).(map[string]any)
	return clone
}

// substitute replaces every occurrence of the placeholder value in a value
// tree with replacement.
func substitute(v any, placeholder string, replacement any) any {
	switch val := v.(type) {
	case string:
		if val == placeholder {
			return replacement
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = substitute(e, placeholder, replacement)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = substitute(e, placeholder, replacement)
		}
		return out
	default:
		return val
	}
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return val
	}
}
