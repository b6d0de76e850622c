package engine

import (
	"github.com/groundwork-io/groundwork/internal/ir"
	"github.com/groundwork-io/groundwork/internal/provider"
)

// diffAttrs compares prior and desired attribute maps under a schema.
// Scalars compare exactly; attributes the schema marks as sets compare
// order-insensitively; computed attributes never diff.
func diffAttrs(prior, desired map[string]any, schema *provider.ResourceSchema) map[string]*ir.AttrDiff {
	diff := make(map[string]*ir.AttrDiff)

	allKeys := make(map[string]bool)
	for k := range prior {
		allKeys[k] = true
	}
	for k := range desired {
		allKeys[k] = true
	}

	for k := range allKeys {
		if schema.IsComputed(k) {
			continue
		}
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]

		switch {
		case !inPrior:
			diff[k] = &ir.AttrDiff{
				After:             desiredVal,
				Action:            "create",
				ForcesReplacement: schema.ForcesNew(k),
			}
		case !inDesired:
			diff[k] = &ir.AttrDiff{
				Before:            priorVal,
				Action:            "delete",
				ForcesReplacement: schema.ForcesNew(k),
			}
		case !valueEqual(priorVal, desiredVal, schema.IsSet(k)):
			diff[k] = &ir.AttrDiff{
				Before:            priorVal,
				After:             desiredVal,
				Action:            "update",
				ForcesReplacement: schema.ForcesNew(k),
			}
		}
	}

	return diff
}

func buildCreateDiff(attrs map[string]any, schema *provider.ResourceSchema) map[string]*ir.AttrDiff {
	diff := make(map[string]*ir.AttrDiff)
	for k, v := range attrs {
		if schema.IsComputed(k) {
			continue
		}
		diff[k] = &ir.AttrDiff{After: v, Action: "create"}
	}
	return diff
}

func buildDestroyDiff(attrs map[string]any) map[string]*ir.AttrDiff {
	diff := make(map[string]*ir.AttrDiff)
	for k, v := range attrs {
		diff[k] = &ir.AttrDiff{Before: v, Action: "delete"}
	}
	return diff
}

// valueEqual compares two decoded values. Numbers compare by value
// regardless of Go type, since state rides through JSON and documents decode
// to int64. asSet compares top-level slices as multisets.
func valueEqual(a, b any, asSet bool) bool {
	if asSet {
		as, aok := a.([]any)
		bs, bok := b.([]any)
		if aok && bok {
			return multisetEqual(as, bs)
		}
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !valueEqual(ae, be, false) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i], false) {
				return false
			}
		}
		return true
	}

	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func multisetEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
	for _, ae := range a {
		found := false
		for i, be := range b {
			if !matched[i] && valueEqual(ae, be, false) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
