package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// Marshal serializes a Config back into document text. Reference markers are
// rendered as the traversals they were parsed from, so a document survives a
// parse/serialize cycle without semantic loss.
func Marshal(cfg *ir.Config) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for _, v := range cfg.Variables {
		block := body.AppendNewBlock("variable", []string{v.Name})
		b := block.Body()
		if v.Type != "" {
			b.SetAttributeRaw("type", hclwrite.TokensForIdentifier(v.Type))
		}
		if v.Default != nil {
			b.SetAttributeValue("default", goToCty(v.Default))
		}
		if v.Description != "" {
			b.SetAttributeValue("description", cty.StringVal(v.Description))
		}
		if v.Sensitive {
			b.SetAttributeValue("sensitive", cty.True)
		}
		body.AppendNewline()
	}

	for _, p := range cfg.Providers {
		block := body.AppendNewBlock("provider", []string{p.Name})
		b := block.Body()
		if p.Version != "" {
			b.SetAttributeValue("version", cty.StringVal(p.Version))
		}
		for _, k := range sortedKeys(p.Settings) {
			b.SetAttributeValue(k, goToCty(p.Settings[k]))
		}
		body.AppendNewline()
	}

	for _, res := range cfg.Resources {
		block := body.AppendNewBlock("resource", []string{res.Kind, res.Name})
		b := block.Body()
		if res.Count != nil {
			b.SetAttributeValue("count", cty.NumberIntVal(int64(*res.Count)))
		}
		for _, k := range sortedKeys(res.Attrs) {
			b.SetAttributeRaw(k, tokensForValue(res.Attrs[k]))
		}
		if res.Timeout != "" {
			b.SetAttributeValue("timeout", cty.StringVal(res.Timeout))
		}
		if len(res.DependsOn) > 0 {
			elems := make([]hclwrite.Tokens, len(res.DependsOn))
			for i, dep := range res.DependsOn {
				elems[i] = hclwrite.TokensForIdentifier(dep)
			}
			b.SetAttributeRaw("depends_on", hclwrite.TokensForTuple(elems))
		}
		if lc := res.Lifecycle; lc != nil {
			lb := b.AppendNewBlock("lifecycle", nil).Body()
			if lc.CreateBeforeDestroy {
				lb.SetAttributeValue("create_before_destroy", cty.True)
			}
			if lc.PreventDestroy {
				lb.SetAttributeValue("prevent_destroy", cty.True)
			}
			if len(lc.IgnoreChanges) > 0 {
				elems := make([]cty.Value, len(lc.IgnoreChanges))
				for i, a := range lc.IgnoreChanges {
					elems[i] = cty.StringVal(a)
				}
				lb.SetAttributeValue("ignore_changes", cty.TupleVal(elems))
			}
		}
		body.AppendNewline()
	}

	for _, k := range sortedKeys(cfg.Outputs) {
		block := body.AppendNewBlock("output", []string{k})
		block.Body().SetAttributeRaw("value", tokensForValue(cfg.Outputs[k]))
		body.AppendNewline()
	}

	return f.Bytes()
}

// WriteFile serializes cfg to path.
func WriteFile(cfg *ir.Config, path string) error {
	if err := os.WriteFile(path, Marshal(cfg), 0644); err != nil {
		return fmt.Errorf("failed to write document %s: %w", path, err)
	}
	return nil
}

// tokensForValue renders a decoded attribute value, turning ref:// markers
// back into traversals.
func tokensForValue(v any) hclwrite.Tokens {
	switch val := v.(type) {
	case string:
		if name, attr, ok := ir.ParseRef(val); ok {
			return hclwrite.TokensForTraversal(refTraversal(name, attr))
		}
		return hclwrite.TokensForValue(cty.StringVal(val))
	case []any:
		elems := make([]hclwrite.Tokens, len(val))
		for i, e := range val {
			elems[i] = tokensForValue(e)
		}
		return hclwrite.TokensForTuple(elems)
	case map[string]any:
		attrs := make([]hclwrite.ObjectAttrTokens, 0, len(val))
		for _, k := range sortedKeys(val) {
			var key hclwrite.Tokens
			if hclsyntax.ValidIdentifier(k) {
				key = hclwrite.TokensForIdentifier(k)
			} else {
				key = hclwrite.TokensForValue(cty.StringVal(k))
			}
			attrs = append(attrs, hclwrite.ObjectAttrTokens{
				Name:  key,
				Value: tokensForValue(val[k]),
			})
		}
		return hclwrite.TokensForObject(attrs)
	default:
		return hclwrite.TokensForValue(goToCty(v))
	}
}

func refTraversal(name, attr string) hcl.Traversal {
	trav := hcl.Traversal{hcl.TraverseRoot{Name: name}}
	if attr != "" {
		for _, part := range splitPath(attr) {
			trav = append(trav, hcl.TraverseAttr{Name: part})
		}
	}
	return trav
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
