package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// FileExt is the extension of desired-state documents.
const FileExt = ".gw.hcl"

// Loader parses desired-state documents into ir types. Attribute values are
// decoded in two phases: variables are substituted immediately, while
// references to other resources become symbolic ref:// markers that the
// executor resolves only after the dependency order is fixed.
type Loader struct {
	parser *hclparse.Parser
}

func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// LoadDir parses every document in dir (lexical order) into one Config.
// overrides provide variable values on top of declared defaults.
func (l *Loader) LoadDir(dir string, overrides map[string]string) (*ir.Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), FileExt) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, &DocumentError{Msg: fmt.Sprintf("no %s documents found in %s", FileExt, dir)}
	}
	sort.Strings(paths)

	return l.LoadFiles(paths, overrides)
}

// LoadFiles parses the given documents, in order, into one Config.
func (l *Loader) LoadFiles(paths []string, overrides map[string]string) (*ir.Config, error) {
	var bodies []*hclsyntax.Body
	for _, path := range paths {
		file, diags := l.parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, &DocumentError{Filename: path, Diags: diags}
		}
		body, ok := file.Body.(*hclsyntax.Body)
		if !ok {
			return nil, &DocumentError{Filename: path, Msg: "not native HCL syntax"}
		}
		bodies = append(bodies, body)
	}

	cfg := &ir.Config{Outputs: map[string]any{}}

	// First pass: declarations only, so forward references work.
	var resourceBlocks, outputBlocks []*hclsyntax.Block
	names := make(map[string]bool)
	for _, body := range bodies {
		for _, block := range body.Blocks {
			switch block.Type {
			case "variable":
				v, err := decodeVariable(block)
				if err != nil {
					return nil, err
				}
				cfg.Variables = append(cfg.Variables, v)
			case "provider":
				p, err := decodeProvider(block)
				if err != nil {
					return nil, err
				}
				cfg.Providers = append(cfg.Providers, p)
			case "resource":
				if len(block.Labels) != 2 {
					return nil, &DocumentError{Msg: fmt.Sprintf("resource block at %s needs kind and name labels", block.DefRange().String())}
				}
				name := block.Labels[1]
				if names[name] {
					return nil, &DocumentError{Msg: fmt.Sprintf("duplicate resource name %q", name)}
				}
				names[name] = true
				resourceBlocks = append(resourceBlocks, block)
			case "output":
				if len(block.Labels) != 1 {
					return nil, &DocumentError{Msg: fmt.Sprintf("output block at %s needs a name label", block.DefRange().String())}
				}
				outputBlocks = append(outputBlocks, block)
			default:
				return nil, &DocumentError{Msg: fmt.Sprintf("unsupported block type %q at %s", block.Type, block.DefRange().String())}
			}
		}
	}

	evalCtx, err := buildEvalContext(cfg.Variables, overrides)
	if err != nil {
		return nil, err
	}

	// Second pass: resource bodies, with references left symbolic.
	for i, block := range resourceBlocks {
		res, err := l.decodeResource(block, evalCtx, names)
		if err != nil {
			return nil, err
		}
		res.DeclOrder = i
		cfg.Resources = append(cfg.Resources, res)
	}

	for _, block := range outputBlocks {
		name := block.Labels[0]
		attr, ok := block.Body.Attributes["value"]
		if !ok {
			return nil, &DocumentError{Msg: fmt.Sprintf("output %q has no value", name)}
		}
		val, err := evalExpr(attr.Expr, evalCtx, names, "output."+name)
		if err != nil {
			return nil, err
		}
		cfg.Outputs[name] = val
	}

	return cfg, nil
}

func decodeVariable(block *hclsyntax.Block) (*ir.Variable, error) {
	if len(block.Labels) != 1 {
		return nil, &DocumentError{Msg: fmt.Sprintf("variable block at %s needs a name label", block.DefRange().String())}
	}
	v := &ir.Variable{Name: block.Labels[0]}

	for name, attr := range block.Body.Attributes {
		switch name {
		case "type":
			// Accept both a bare keyword (string, number, ...) and a quoted string.
			if trav, ok := attr.Expr.(*hclsyntax.ScopeTraversalExpr); ok {
				v.Type = trav.Traversal.RootName()
				continue
			}
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() || val.Type() != cty.String {
				return nil, &DocumentError{Msg: fmt.Sprintf("variable %q: invalid type expression", v.Name)}
			}
			v.Type = val.AsString()
		case "default":
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, &DocumentError{Diags: diags}
			}
			v.Default = ctyToGo(val)
		case "description":
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() || val.Type() != cty.String {
				return nil, &DocumentError{Msg: fmt.Sprintf("variable %q: invalid description", v.Name)}
			}
			v.Description = val.AsString()
		case "sensitive":
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() || val.Type() != cty.Bool {
				return nil, &DocumentError{Msg: fmt.Sprintf("variable %q: invalid sensitive flag", v.Name)}
			}
			v.Sensitive = val.True()
		default:
			return nil, &DocumentError{Msg: fmt.Sprintf("variable %q: unsupported attribute %q", v.Name, name)}
		}
	}
	return v, nil
}

func decodeProvider(block *hclsyntax.Block) (*ir.ProviderConfig, error) {
	if len(block.Labels) != 1 {
		return nil, &DocumentError{Msg: fmt.Sprintf("provider block at %s needs a name label", block.DefRange().String())}
	}
	p := &ir.ProviderConfig{Name: block.Labels[0], Settings: map[string]any{}}

	for name, attr := range block.Body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, &DocumentError{Diags: diags}
		}
		if name == "version" {
			if val.Type() != cty.String {
				return nil, &DocumentError{Msg: fmt.Sprintf("provider %q: version must be a string", p.Name)}
			}
			p.Version = val.AsString()
			continue
		}
		p.Settings[name] = ctyToGo(val)
	}
	return p, nil
}

func (l *Loader) decodeResource(block *hclsyntax.Block, evalCtx *hcl.EvalContext, names map[string]bool) (*ir.Resource, error) {
	res := &ir.Resource{
		Kind:  block.Labels[0],
		Name:  block.Labels[1],
		Attrs: map[string]any{},
	}
	// Provider defaults to the kind prefix: "aws.ec2.Instance" -> "aws".
	if i := strings.Index(res.Kind, "."); i > 0 {
		res.Provider = res.Kind[:i]
	}

	for name, attr := range block.Body.Attributes {
		switch name {
		case "provider":
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() || val.Type() != cty.String {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: provider must be a string", res.Name)}
			}
			res.Provider = val.AsString()
		case "count":
			val, diags := attr.Expr.Value(evalCtx)
			if diags.HasErrors() || val.Type() != cty.Number {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: count must be a number", res.Name)}
			}
			n, _ := val.AsBigFloat().Int64()
			if n < 0 {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: count must not be negative", res.Name)}
			}
			c := int(n)
			res.Count = &c
		case "timeout":
			val, diags := attr.Expr.Value(evalCtx)
			if diags.HasErrors() || val.Type() != cty.String {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: timeout must be a duration string", res.Name)}
			}
			res.Timeout = val.AsString()
		case "depends_on":
			deps, err := decodeDependsOn(attr.Expr, res.Name, names)
			if err != nil {
				return nil, err
			}
			res.DependsOn = deps
		default:
			val, err := evalExpr(attr.Expr, evalCtx, names, res.Name)
			if err != nil {
				return nil, err
			}
			res.Attrs[name] = val
		}
	}

	for _, inner := range block.Body.Blocks {
		if inner.Type != "lifecycle" {
			return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: unsupported block %q", res.Name, inner.Type)}
		}
		lc, err := decodeLifecycle(inner, res.Name)
		if err != nil {
			return nil, err
		}
		res.Lifecycle = lc
	}

	return res, nil
}

func decodeLifecycle(block *hclsyntax.Block, resName string) (*ir.Lifecycle, error) {
	lc := &ir.Lifecycle{}
	for name, attr := range block.Body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, &DocumentError{Diags: diags}
		}
		switch name {
		case "create_before_destroy":
			if val.Type() != cty.Bool {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: create_before_destroy must be a bool", resName)}
			}
			lc.CreateBeforeDestroy = val.True()
		case "prevent_destroy":
			if val.Type() != cty.Bool {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: prevent_destroy must be a bool", resName)}
			}
			lc.PreventDestroy = val.True()
		case "ignore_changes":
			if !val.CanIterateElements() {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: ignore_changes must be a list of attribute names", resName)}
			}
			for it := val.ElementIterator(); it.Next(); {
				_, ev := it.Element()
				if ev.Type() != cty.String {
					return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: ignore_changes entries must be strings", resName)}
				}
				lc.IgnoreChanges = append(lc.IgnoreChanges, ev.AsString())
			}
		default:
			return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: unsupported lifecycle attribute %q", resName, name)}
		}
	}
	return lc, nil
}

// decodeDependsOn accepts a list of bare resource names: depends_on = [sg, key].
func decodeDependsOn(expr hclsyntax.Expression, resName string, names map[string]bool) ([]string, error) {
	tuple, ok := expr.(*hclsyntax.TupleConsExpr)
	if !ok {
		return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: depends_on must be a list of resource names", resName)}
	}
	var deps []string
	for _, el := range tuple.Exprs {
		trav, ok := el.(*hclsyntax.ScopeTraversalExpr)
		if !ok {
			return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: depends_on entries must be bare resource names", resName)}
		}
		target := trav.Traversal.RootName()
		if !names[target] {
			return nil, &UnknownReferenceError{Resource: resName, Attr: "depends_on", Target: target}
		}
		deps = append(deps, target)
	}
	return deps, nil
}

// evalExpr decodes an attribute expression. Variables are substituted from
// evalCtx; traversals rooted at a declared resource name become symbolic
// ref:// markers. References must be standalone expressions (optionally
// nested in lists and objects), never part of a larger computation.
func evalExpr(expr hclsyntax.Expression, evalCtx *hcl.EvalContext, names map[string]bool, owner string) (any, error) {
	switch e := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		root := e.Traversal.RootName()
		if root == "var" {
			val, diags := e.Value(evalCtx)
			if diags.HasErrors() {
				return nil, &DocumentError{Diags: diags}
			}
			return ctyToGo(val), nil
		}
		if root == "count" {
			return ir.MakeRef("count", "index"), nil
		}
		if names[root] {
			return ir.MakeRef(root, traversalAttrPath(e.Traversal)), nil
		}
		return nil, &UnknownReferenceError{Resource: owner, Attr: traversalString(e.Traversal), Target: root}

	case *hclsyntax.TupleConsExpr:
		out := make([]any, 0, len(e.Exprs))
		for _, el := range e.Exprs {
			v, err := evalExpr(el, evalCtx, names, owner)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *hclsyntax.ObjectConsExpr:
		out := make(map[string]any, len(e.Items))
		for _, item := range e.Items {
			keyVal, diags := item.KeyExpr.Value(evalCtx)
			if diags.HasErrors() {
				return nil, &DocumentError{Diags: diags}
			}
			if keyVal.Type() != cty.String {
				return nil, &DocumentError{Msg: fmt.Sprintf("resource %q: object key must be a string", owner)}
			}
			v, err := evalExpr(item.ValueExpr, evalCtx, names, owner)
			if err != nil {
				return nil, err
			}
			out[keyVal.AsString()] = v
		}
		return out, nil

	case *hclsyntax.TemplateExpr:
		// A template wrapping a single interpolation unwraps to its part,
		// so "${sg.id}" behaves like a bare reference.
		if len(e.Parts) == 1 {
			return evalExpr(e.Parts[0], evalCtx, names, owner)
		}
	}

	// Anything else must evaluate with variables alone. A resource name
	// buried inside a computed expression is rejected rather than silently
	// evaluated wrong.
	for _, trav := range expr.Variables() {
		root := trav.RootName()
		if root != "var" && names[root] {
			return nil, &DocumentError{Msg: fmt.Sprintf(
				"resource %q: reference to %q must be a standalone expression", owner, root)}
		}
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, &DocumentError{Diags: diags}
	}
	return ctyToGo(val), nil
}

func buildEvalContext(vars []*ir.Variable, overrides map[string]string) (*hcl.EvalContext, error) {
	values := make(map[string]cty.Value, len(vars))
	for _, v := range vars {
		if raw, ok := overrides[v.Name]; ok {
			val, err := coerceVariable(v, raw)
			if err != nil {
				return nil, err
			}
			values[v.Name] = val
			continue
		}
		if v.Default != nil {
			values[v.Name] = goToCty(v.Default)
			continue
		}
		return nil, &DocumentError{Msg: fmt.Sprintf("variable %q has no value; pass -var %s=...", v.Name, v.Name)}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": cty.ObjectVal(values),
		},
	}, nil
}

func coerceVariable(v *ir.Variable, raw string) (cty.Value, error) {
	switch v.Type {
	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cty.NilVal, &DocumentError{Msg: fmt.Sprintf("variable %q: %q is not a number", v.Name, raw)}
		}
		return cty.NumberFloatVal(f), nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return cty.NilVal, &DocumentError{Msg: fmt.Sprintf("variable %q: %q is not a bool", v.Name, raw)}
		}
		return cty.BoolVal(b), nil
	default:
		return cty.StringVal(raw), nil
	}
}

func traversalAttrPath(trav hcl.Traversal) string {
	var parts []string
	for _, step := range trav[1:] {
		if attr, ok := step.(hcl.TraverseAttr); ok {
			parts = append(parts, attr.Name)
		}
	}
	return strings.Join(parts, ".")
}

func traversalString(trav hcl.Traversal) string {
	s := trav.RootName()
	if rest := traversalAttrPath(trav); rest != "" {
		s += "." + rest
	}
	return s
}

// ctyToGo converts a cty value into plain Go values. Whole numbers decode as
// int64 so hashes stay stable across serialize/parse cycles.
func ctyToGo(val cty.Value) any {
	if val.IsNull() {
		return nil
	}
	t := val.Type()
	switch {
	case t == cty.String:
		return val.AsString()
	case t == cty.Number:
		bf := val.AsBigFloat()
		if i, acc := bf.Int64(); acc == 0 { // big.Exact
			return i
		}
		f, _ := bf.Float64()
		return f
	case t == cty.Bool:
		return val.True()
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, ctyToGo(ev))
		}
		return out
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			out[kv.AsString()] = ctyToGo(ev)
		}
		return out
	default:
		return nil
	}
}

// goToCty converts plain Go values back into cty values.
func goToCty(v any) cty.Value {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case string:
		return cty.StringVal(val)
	case bool:
		return cty.BoolVal(val)
	case int:
		return cty.NumberIntVal(int64(val))
	case int64:
		return cty.NumberIntVal(val)
	case float64:
		return cty.NumberFloatVal(val)
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal
		}
		elems := make([]cty.Value, len(val))
		for i, e := range val {
			elems[i] = goToCty(e)
		}
		return cty.TupleVal(elems)
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, e := range val {
			attrs[k] = goToCty(e)
		}
		return cty.ObjectVal(attrs)
	default:
		return cty.StringVal(fmt.Sprintf("%v", val))
	}
}
