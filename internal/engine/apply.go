package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/groundwork-io/groundwork/internal/ir"
	"github.com/groundwork-io/groundwork/internal/logging"
	"github.com/groundwork-io/groundwork/internal/provider"
)

// PartialApplyError reports an apply that stopped partway. Records for
// completed resources are already in the state; failed and pending resources
// are listed so the operator knows what to retry.
type PartialApplyError struct {
	Completed []string
	Failed    []string
	Pending   []string
	Errs      []error
}

func (e *PartialApplyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "apply incomplete: %d completed, %d failed, %d pending",
		len(e.Completed), len(e.Failed), len(e.Pending))
	for _, err := range e.Errs {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// ApplyEvent represents a progress event during apply.
type ApplyEvent struct {
	Address  string
	Action   ir.Action
	Status   string // "started", "completed", "failed"
	Duration time.Duration
	Error    error
}

// ApplyCallback is called for each apply event if set.
type ApplyCallback func(event ApplyEvent)

// Apply executes a plan, updating st in place. Each successful operation is
// recorded before the next begins, so a failure never loses earlier work;
// the caller must persist st even when an error comes back.
func (e *Engine) Apply(ctx context.Context, plan *ir.Plan, st *ir.State) error {
	return e.ApplyWithCallback(ctx, plan, st, nil)
}

// ApplyWithCallback executes a plan with progress callbacks. Creates and
// updates run first in dependency order, then destroys in reverse order.
// Independent resources run concurrently on a bounded pool; two resources
// with an edge between them never run at once. A failure stops new work only
// in the failed resource's dependent subtree; independent subgraphs and the
// destroy group still run to completion, and the skipped dependents come
// back as pending in the PartialApplyError.
func (e *Engine) ApplyWithCallback(ctx context.Context, plan *ir.Plan, st *ir.State, callback ApplyCallback) error {
	emit := func(event ApplyEvent) {
		if callback != nil {
			callback(event)
		}
	}

	var creates, destroys []*ir.Change
	for _, change := range plan.Changes {
		if change.Action == ir.ActionDestroy {
			destroys = append(destroys, change)
		} else {
			creates = append(creates, change)
		}
	}

	var mu sync.Mutex // guards st
	result := &applyResult{}

	e.runGroup(ctx, creates, forwardDeps(creates), st, &mu, emit, result)
	e.runGroup(ctx, destroys, reverseDeps(destroys), st, &mu, emit, result)

	if len(result.errs) == 0 && len(result.pending) > 0 {
		// Cancellation left work undispatched without any failure.
		if err := ctx.Err(); err != nil {
			result.errs = append(result.errs, err)
		}
	}

	if len(result.errs) > 0 {
		sort.Strings(result.completed)
		sort.Strings(result.failed)
		sort.Strings(result.pending)
		return &PartialApplyError{
			Completed: result.completed,
			Failed:    result.failed,
			Pending:   result.pending,
			Errs:      result.errs,
		}
	}

	st.Outputs = ResolveRefs(plan.Outputs, st).(map[string]any)
	return nil
}

type applyResult struct {
	completed []string
	failed    []string
	pending   []string
	errs      []error
}

// forwardDeps maps each change to the other group members it must wait for,
// following declared and implicit references.
func forwardDeps(changes []*ir.Change) map[string]map[string]bool {
	inGroup := make(map[string]bool, len(changes))
	for _, c := range changes {
		inGroup[c.Address] = true
	}

	deps := make(map[string]map[string]bool, len(changes))
	for _, c := range changes {
		deps[c.Address] = make(map[string]bool)
		if c.Desired == nil {
			continue
		}
		for _, d := range c.Desired.DependsOn {
			if inGroup[d] {
				deps[c.Address][d] = true
			}
		}
		for _, d := range ir.CollectRefs(c.Desired.Attrs) {
			if inGroup[d] {
				deps[c.Address][d] = true
			}
		}
	}
	return deps
}

// reverseDeps inverts recorded dependency edges: a resource's destroy waits
// for the destroys of everything that depended on it.
func reverseDeps(changes []*ir.Change) map[string]map[string]bool {
	inGroup := make(map[string]bool, len(changes))
	for _, c := range changes {
		inGroup[c.Address] = true
	}

	deps := make(map[string]map[string]bool, len(changes))
	for _, c := range changes {
		deps[c.Address] = make(map[string]bool)
	}
	for _, c := range changes {
		if c.Prior == nil {
			continue
		}
		for _, d := range c.Prior.Dependencies {
			if inGroup[d] {
				deps[d][c.Address] = true
			}
		}
	}
	return deps
}

// runGroup applies one group of changes concurrently, gated by deps. A
// failure cascades to transitive dependents, which end up pending; unrelated
// changes continue.
func (e *Engine) runGroup(ctx context.Context, changes []*ir.Change, deps map[string]map[string]bool, st *ir.State, mu *sync.Mutex, emit ApplyCallback, result *applyResult) {
	if len(changes) == 0 {
		return
	}

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var (
		gateMu   sync.Mutex
		gateCond = sync.NewCond(&gateMu)
		done     = make(map[string]bool, len(changes))
		failed   = make(map[string]bool, len(changes))
		skipped  = make(map[string]bool, len(changes))
		halted   bool
	)
	sem := make(chan struct{}, parallelism)

	var wg sync.WaitGroup
	for _, change := range changes {
		wg.Add(1)
		go func(c *ir.Change) {
			defer wg.Done()

			gateMu.Lock()
			for {
				if halted {
					skipped[c.Address] = true
					gateMu.Unlock()
					gateCond.Broadcast()
					return
				}
				ready := true
				depFailed := false
				for dep := range deps[c.Address] {
					if failed[dep] || skipped[dep] {
						depFailed = true
						break
					}
					if !done[dep] {
						ready = false
						break
					}
				}
				if depFailed {
					skipped[c.Address] = true
					gateMu.Unlock()
					gateCond.Broadcast()
					return
				}
				if ready {
					break
				}
				gateCond.Wait()
			}
			gateMu.Unlock()

			// Stop issuing new operations on cancellation; in-flight ones
			// below still run to a terminal state.
			if err := ctx.Err(); err != nil {
				gateMu.Lock()
				skipped[c.Address] = true
				halted = true
				gateMu.Unlock()
				gateCond.Broadcast()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "started"})

			err := e.applyChange(ctx, c, st, mu)

			gateMu.Lock()
			if err != nil {
				failed[c.Address] = true
				result.errs = append(result.errs, err)
			} else {
				done[c.Address] = true
			}
			gateMu.Unlock()
			gateCond.Broadcast()

			if err != nil {
				emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "failed", Duration: time.Since(start), Error: err})
			} else {
				emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "completed", Duration: time.Since(start)})
			}
		}(change)
	}
	wg.Wait()

	for addr := range done {
		result.completed = append(result.completed, addr)
	}
	for addr := range failed {
		result.failed = append(result.failed, addr)
	}
	for addr := range skipped {
		result.pending = append(result.pending, addr)
	}
}

// applyChange converges one resource and records the outcome in st.
func (e *Engine) applyChange(ctx context.Context, change *ir.Change, st *ir.State, mu *sync.Mutex) error {
	addr := change.Address
	logging.Debug("applying change", "address", addr, "action", change.Action)

	timeout := DefaultTimeout
	if change.Desired != nil && change.Desired.Timeout != "" {
		if d, err := time.ParseDuration(change.Desired.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	// Once dispatched, the operation is detached from the caller's
	// cancellation and bounded only by the per-resource timeout, so a
	// provider call always reaches a terminal state and its identity is
	// recorded before the interrupt takes effect.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	provName := ""
	if change.Desired != nil {
		provName = change.Desired.Provider
	} else if change.Prior != nil {
		provName = change.Prior.Provider
	}
	prov, err := e.registry.Get(provName)
	if err != nil {
		return fmt.Errorf("%s: provider not loaded: %s", addr, provName)
	}

	policy := e.Retry
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	switch change.Action {
	case ir.ActionCreate:
		return e.createResource(ctx, prov, change, st, mu, policy)

	case ir.ActionUpdate:
		return e.updateResource(ctx, prov, change, st, mu, policy)

	case ir.ActionReplace:
		res := change.Desired
		if res.Lifecycle != nil && res.Lifecycle.CreateBeforeDestroy {
			oldID, oldOutputs := priorIdentity(change, st, mu)
			if err := e.createResource(ctx, prov, change, st, mu, policy); err != nil {
				return err
			}
			if oldID == "" {
				return nil
			}
			return RetryWithBackoff(ctx, policy, func() error {
				return prov.Delete(ctx, res.Kind, oldID, oldOutputs)
			}, IsTransientError)
		}
		if err := e.destroyResource(ctx, prov, change, st, mu, policy); err != nil {
			return err
		}
		return e.createResource(ctx, prov, change, st, mu, policy)

	case ir.ActionDestroy:
		return e.destroyResource(ctx, prov, change, st, mu, policy)
	}

	return nil
}

func (e *Engine) createResource(ctx context.Context, prov provider.Interface, change *ir.Change, st *ir.State, mu *sync.Mutex, policy *RetryPolicy) error {
	res := change.Desired

	mu.Lock()
	resolved, err := ResolveRefsStrict(res.Attrs, st)
	mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", change.Address, err)
	}
	attrs := resolved.(map[string]any)

	var id string
	var outputs map[string]any
	err = RetryWithBackoff(ctx, policy, func() error {
		var createErr error
		id, outputs, createErr = prov.Create(ctx, res.Kind, res.Name, attrs)
		return createErr
	}, IsTransientError)
	if err != nil {
		return fmt.Errorf("create failed for %s: %w", change.Address, err)
	}

	deps := append([]string{}, res.DependsOn...)
	for _, d := range ir.CollectRefs(res.Attrs) {
		if d != "count" {
			deps = appendUnique(deps, d)
		}
	}

	mu.Lock()
	st.PutRecord(&ir.Record{
		Name:         res.Name,
		Kind:         res.Kind,
		Provider:     res.Provider,
		ID:           id,
		Inputs:       attrs,
		InputsHash:   ir.HashAttrs(attrs),
		Outputs:      outputs,
		Dependencies: deps,
	})
	mu.Unlock()
	return nil
}

func (e *Engine) updateResource(ctx context.Context, prov provider.Interface, change *ir.Change, st *ir.State, mu *sync.Mutex, policy *RetryPolicy) error {
	res := change.Desired

	mu.Lock()
	resolved, err := ResolveRefsStrict(res.Attrs, st)
	mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", change.Address, err)
	}
	attrs := resolved.(map[string]any)

	id, priorOutputs := priorIdentity(change, st, mu)
	if id == "" {
		return fmt.Errorf("update failed for %s: no recorded identity", change.Address)
	}

	var outputs map[string]any
	err = RetryWithBackoff(ctx, policy, func() error {
		var updateErr error
		outputs, updateErr = prov.Update(ctx, res.Kind, id, attrs, priorOutputs)
		return updateErr
	}, IsTransientError)
	if err != nil {
		return fmt.Errorf("update failed for %s: %w", change.Address, err)
	}

	mu.Lock()
	rec := st.Record(res.Name)
	if rec == nil {
		rec = &ir.Record{Name: res.Name}
		st.PutRecord(rec)
	}
	rec.Kind = res.Kind
	rec.Provider = res.Provider
	rec.ID = id
	rec.Inputs = attrs
	rec.InputsHash = ir.HashAttrs(attrs)
	rec.Outputs = outputs
	mu.Unlock()
	return nil
}

func (e *Engine) destroyResource(ctx context.Context, prov provider.Interface, change *ir.Change, st *ir.State, mu *sync.Mutex, policy *RetryPolicy) error {
	kind := ""
	if change.Prior != nil {
		kind = change.Prior.Kind
	} else if change.Desired != nil {
		kind = change.Desired.Kind
	}

	id, priorOutputs := priorIdentity(change, st, mu)
	if id == "" {
		// Nothing recorded; treat as already gone.
		mu.Lock()
		st.RemoveRecord(change.Address)
		mu.Unlock()
		return nil
	}

	err := RetryWithBackoff(ctx, policy, func() error {
		return prov.Delete(ctx, kind, id, priorOutputs)
	}, IsTransientError)
	if err != nil {
		return fmt.Errorf("destroy failed for %s: %w", change.Address, err)
	}

	mu.Lock()
	st.RemoveRecord(change.Address)
	mu.Unlock()
	return nil
}

func priorIdentity(change *ir.Change, st *ir.State, mu *sync.Mutex) (string, map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if rec := st.Record(change.Address); rec != nil {
		return rec.ID, rec.Outputs
	}
	if change.Prior != nil {
		return change.Prior.ID, change.Prior.Outputs
	}
	return "", nil
}
