package null

import (
	"context"
	"fmt"

	"github.com/groundwork-io/groundwork/internal/provider"
)

// KindResource is the single kind the null provider handles. It manages no
// real infrastructure; a change to its triggers forces replacement, which
// makes it useful for exercising the engine and for glue resources.
const KindResource = "null.Resource"

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string {
	return "null"
}

func (p *Provider) Schema(kind string) (*provider.ResourceSchema, error) {
	if kind != KindResource {
		return nil, fmt.Errorf("null provider does not handle kind %q", kind)
	}
	return &provider.ResourceSchema{
		Kind:     KindResource,
		ForceNew: []string{"triggers"},
		Computed: []string{"id"},
	}, nil
}

func (p *Provider) Configure(ctx context.Context, settings map[string]any) error {
	return nil
}

func (p *Provider) Create(ctx context.Context, kind, name string, attrs map[string]any) (string, map[string]any, error) {
	if kind != KindResource {
		return "", nil, fmt.Errorf("null provider does not handle kind %q", kind)
	}
	id := fmt.Sprintf("null-%s", name)
	outputs := map[string]any{"id": id}
	if triggers, ok := attrs["triggers"]; ok {
		outputs["triggers"] = triggers
	}
	return id, outputs, nil
}

func (p *Provider) Read(ctx context.Context, kind, id string, prior map[string]any) (map[string]any, bool, error) {
	// Null resources always "exist" as long as state says they do.
	return prior, true, nil
}

func (p *Provider) Update(ctx context.Context, kind, id string, attrs, prior map[string]any) (map[string]any, error) {
	outputs := map[string]any{"id": id}
	if triggers, ok := attrs["triggers"]; ok {
		outputs["triggers"] = triggers
	}
	return outputs, nil
}

func (p *Provider) Delete(ctx context.Context, kind, id string, prior map[string]any) error {
	return nil
}
