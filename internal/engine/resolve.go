package engine

import (
	"fmt"
	"strings"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// ResolveRefs substitutes ref:// markers in a value tree with the referenced
// resource's recorded attribute. Markers whose target has no record yet stay
// symbolic, which makes the attribute "known after apply" at plan time.
func ResolveRefs(v any, st *ir.State) any {
	resolved, _ := resolveRefs(v, st)
	return resolved
}

// ResolveRefsStrict is ResolveRefs for execution time, where every reference
// must resolve: the plan guarantees dependencies are realized first, so a
// leftover marker is an error naming the resource and attribute.
func ResolveRefsStrict(v any, st *ir.State) (any, error) {
	resolved, missing := resolveRefs(v, st)
	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved references: %s", strings.Join(missing, ", "))
	}
	return resolved, nil
}

func resolveRefs(v any, st *ir.State) (any, []string) {
	switch val := v.(type) {
	case string:
		name, attr, ok := ir.ParseRef(val)
		if !ok {
			return val, nil
		}
		rec := st.Record(name)
		if rec == nil {
			return val, []string{val}
		}
		if resolved, ok := lookupAttr(rec, attr); ok {
			return resolved, nil
		}
		return val, []string{val}
	case map[string]any:
		var missing []string
		out := make(map[string]any, len(val))
		for k, e := range val {
			r, m := resolveRefs(e, st)
			out[k] = r
			missing = append(missing, m...)
		}
		return out, missing
	case []any:
		var missing []string
		out := make([]any, len(val))
		for i, e := range val {
			r, m := resolveRefs(e, st)
			out[i] = r
			missing = append(missing, m...)
		}
		return out, missing
	default:
		return val, nil
	}
}

// lookupAttr reads a dotted attribute path from a record, preferring
// provider-observed outputs over recorded inputs.
func lookupAttr(rec *ir.Record, path string) (any, bool) {
	if path == "" {
		return rec.ID, true
	}
	if v, ok := lookupPath(rec.Outputs, path); ok {
		return v, true
	}
	if path == "id" && rec.ID != "" {
		return rec.ID, true
	}
	return lookupPath(rec.Inputs, path)
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = m
	for _, part := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
