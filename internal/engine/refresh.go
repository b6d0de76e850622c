package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/groundwork-io/groundwork/internal/ir"
	"github.com/groundwork-io/groundwork/internal/logging"
)

// RefreshResult summarizes what a refresh found in the real infrastructure.
type RefreshResult struct {
	Checked int
	Updated []string // outputs changed since last apply
	Removed []string // resource no longer exists, record dropped
}

// Refresh reads every recorded resource back from its provider and
// reconciles the state with what actually exists. Records whose resource
// has disappeared are removed so the next plan recreates them.
func (e *Engine) Refresh(ctx context.Context, cfg *ir.Config, st *ir.State) (*RefreshResult, error) {
	if cfg != nil {
		if err := e.loadProviders(ctx, cfg, st); err != nil {
			return nil, err
		}
	} else if err := e.loadStateProviders(ctx, st); err != nil {
		return nil, err
	}

	result := &RefreshResult{}
	var stale []string

	for _, rec := range st.Resources {
		prov, err := e.registry.Get(rec.Provider)
		if err != nil {
			return nil, fmt.Errorf("refresh %s: provider not loaded: %s", rec.Name, rec.Provider)
		}

		result.Checked++
		outputs, exists, err := prov.Read(ctx, rec.Kind, rec.ID, rec.Outputs)
		if err != nil {
			return nil, fmt.Errorf("refresh %s: %w", rec.Name, err)
		}
		if !exists {
			logging.Info("resource vanished, dropping record", "name", rec.Name, "id", rec.ID)
			stale = append(stale, rec.Name)
			continue
		}
		if !valueEqual(rec.Outputs, outputs, false) {
			rec.Outputs = outputs
			result.Updated = append(result.Updated, rec.Name)
		}
	}

	for _, name := range stale {
		st.RemoveRecord(name)
		result.Removed = append(result.Removed, name)
	}
	sort.Strings(result.Updated)
	sort.Strings(result.Removed)
	return result, nil
}
