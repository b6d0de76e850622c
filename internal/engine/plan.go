package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/groundwork-io/groundwork/internal/ir"
	"github.com/groundwork-io/groundwork/internal/logging"
	"github.com/groundwork-io/groundwork/internal/provider"
)

const defaultParallelism = 10

// Engine orchestrates planning and convergence of resources.
type Engine struct {
	registry *provider.Registry

	// Parallelism bounds how many independent resources apply at once.
	Parallelism int

	// Retry overrides the retry policy for provider calls.
	Retry *RetryPolicy
}

func NewEngine(registry *provider.Registry) *Engine {
	return &Engine{
		registry:    registry,
		Parallelism: defaultParallelism,
	}
}

// Plan computes what must change for real infrastructure to match cfg,
// consulting the state for what currently exists. Changes are ordered so
// dependencies of creates and updates come first; destroys follow in reverse
// dependency order.
func (e *Engine) Plan(ctx context.Context, cfg *ir.Config, st *ir.State) (*ir.Plan, error) {
	logging.Debug("creating plan", "resources", len(cfg.Resources), "state_resources", len(st.Resources))

	if err := e.loadProviders(ctx, cfg, st); err != nil {
		return nil, err
	}

	resources := Expand(cfg.Resources)

	graph, err := BuildGraph(resources)
	if err != nil {
		return nil, err
	}

	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			StateSerial: st.Serial,
		},
		Changes: []*ir.Change{},
		Summary: &ir.PlanSummary{},
		Outputs: cfg.Outputs,
	}

	byName := make(map[string]*ir.Resource, len(resources))
	for _, res := range resources {
		byName[res.Name] = res
	}

	for _, name := range graph.CreationOrder() {
		res := byName[name]

		prov, err := e.registry.Get(res.Provider)
		if err != nil {
			return nil, err
		}
		schema, err := prov.Schema(res.Kind)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", res.Name, err)
		}

		change, err := e.planResource(res, st, schema, graph)
		if err != nil {
			return nil, err
		}
		if change.Action == ir.ActionNoOp {
			plan.Summary.NoOp++
			continue
		}
		plan.Changes = append(plan.Changes, change)
		switch change.Action {
		case ir.ActionCreate:
			plan.Summary.Create++
		case ir.ActionUpdate:
			plan.Summary.Update++
		case ir.ActionReplace:
			plan.Summary.Replace++
		}
	}

	destroys, err := e.planDestroys(st, byName)
	if err != nil {
		return nil, err
	}
	plan.Changes = append(plan.Changes, destroys...)
	plan.Summary.Destroy += len(destroys)

	return plan, nil
}

// planResource decides the action for one desired resource.
func (e *Engine) planResource(res *ir.Resource, st *ir.State, schema *provider.ResourceSchema, graph *Graph) (*ir.Change, error) {
	change := &ir.Change{Address: res.Name, Desired: res}

	rec := st.Record(res.Name)
	if rec == nil {
		change.Action = ir.ActionCreate
		change.Diff = buildCreateDiff(res.Attrs, schema)
		return change, nil
	}
	change.Prior = rec

	// References resolve against current plan-time values; a reference to a
	// resource not yet realized stays symbolic and counts as a change.
	desired := ResolveRefs(res.Attrs, st).(map[string]any)

	if ir.HashAttrs(desired) == rec.InputsHash {
		change.Action = ir.ActionNoOp
		return change, nil
	}

	diff := diffAttrs(rec.Inputs, desired, schema)

	if res.Lifecycle != nil && len(res.Lifecycle.IgnoreChanges) > 0 {
		for _, attr := range res.Lifecycle.IgnoreChanges {
			delete(diff, attr)
		}
	}
	if len(diff) == 0 {
		change.Action = ir.ActionNoOp
		return change, nil
	}

	change.Diff = diff
	change.Action = ir.ActionUpdate
	for _, d := range diff {
		if d.ForcesReplacement {
			change.Action = ir.ActionReplace
			break
		}
	}

	if change.Action == ir.ActionReplace && res.Lifecycle != nil && res.Lifecycle.PreventDestroy {
		return nil, fmt.Errorf("resource %q must be replaced but has prevent_destroy set", res.Name)
	}

	return change, nil
}

// planDestroys finds records with no declared counterpart. They are appended
// in reverse dependency order so dependents go before their dependencies.
func (e *Engine) planDestroys(st *ir.State, byName map[string]*ir.Resource) ([]*ir.Change, error) {
	var orphans []*ir.Record
	for _, rec := range st.Resources {
		if _, ok := byName[rec.Name]; !ok {
			orphans = append(orphans, rec)
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	stateGraph, err := BuildGraphFromState(st.Resources)
	if err != nil {
		return nil, err
	}

	orphanSet := make(map[string]*ir.Record, len(orphans))
	for _, rec := range orphans {
		orphanSet[rec.Name] = rec
	}

	var changes []*ir.Change
	for _, name := range stateGraph.DestructionOrder() {
		rec, ok := orphanSet[name]
		if !ok {
			continue
		}
		changes = append(changes, &ir.Change{
			Address: name,
			Action:  ir.ActionDestroy,
			Prior:   rec,
			Diff:    buildDestroyDiff(rec.Inputs),
		})
	}
	return changes, nil
}

// DestroyPlan builds a plan that removes everything in the state, in reverse
// dependency order.
func (e *Engine) DestroyPlan(ctx context.Context, st *ir.State) (*ir.Plan, error) {
	if err := e.loadStateProviders(ctx, st); err != nil {
		return nil, err
	}

	graph, err := BuildGraphFromState(st.Resources)
	if err != nil {
		return nil, err
	}

	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			StateSerial: st.Serial,
		},
		Changes: []*ir.Change{},
		Summary: &ir.PlanSummary{},
	}

	for _, name := range graph.DestructionOrder() {
		rec := st.Record(name)
		if rec == nil {
			continue
		}
		plan.Changes = append(plan.Changes, &ir.Change{
			Address: name,
			Action:  ir.ActionDestroy,
			Prior:   rec,
			Diff:    buildDestroyDiff(rec.Inputs),
		})
		plan.Summary.Destroy++
	}

	return plan, nil
}

func (e *Engine) loadProviders(ctx context.Context, cfg *ir.Config, st *ir.State) error {
	settings := make(map[string]map[string]any)
	for _, pc := range cfg.Providers {
		settings[pc.Name] = pc.Settings
	}

	load := func(name string) error {
		if name == "" {
			return nil
		}
		if err := e.registry.Load(name); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", name, err)
		}
		prov, err := e.registry.Get(name)
		if err != nil {
			return err
		}
		if err := prov.Configure(ctx, settings[name]); err != nil {
			return fmt.Errorf("failed to configure provider %s: %w", name, err)
		}
		return nil
	}

	for _, res := range cfg.Resources {
		if err := load(res.Provider); err != nil {
			return err
		}
	}
	// Providers for records no longer declared are still needed for destroy.
	for _, rec := range st.Resources {
		if err := load(rec.Provider); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadStateProviders(ctx context.Context, st *ir.State) error {
	for _, rec := range st.Resources {
		if rec.Provider == "" {
			continue
		}
		if err := e.registry.Load(rec.Provider); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", rec.Provider, err)
		}
		prov, err := e.registry.Get(rec.Provider)
		if err != nil {
			return err
		}
		if err := prov.Configure(ctx, nil); err != nil {
			return fmt.Errorf("failed to configure provider %s: %w", rec.Provider, err)
		}
	}
	return nil
}
