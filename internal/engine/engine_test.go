package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-io/groundwork/internal/ir"
	"github.com/groundwork-io/groundwork/internal/provider"
)

// fakeProvider records every call so tests can assert ordering and inputs.
// Failures are injected per resource name.
type fakeProvider struct {
	mu      sync.Mutex
	schemas map[string]*provider.ResourceSchema

	calls       []string // "create:name", "update:id", "delete:id"
	createErr   map[string]error
	createDelay map[string]time.Duration // name -> time Create takes to finish
	flaky       map[string]int           // name -> transient failures before success
	missing     map[string]bool
	nextSeq     int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		schemas:     map[string]*provider.ResourceSchema{},
		createErr:   map[string]error{},
		createDelay: map[string]time.Duration{},
		flaky:       map[string]int{},
		missing:     map[string]bool{},
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Schema(kind string) (*provider.ResourceSchema, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.schemas[kind]; ok {
		return s, nil
	}
	return &provider.ResourceSchema{Kind: kind, Computed: []string{"id"}}, nil
}

func (p *fakeProvider) Configure(ctx context.Context, settings map[string]any) error {
	return nil
}

func (p *fakeProvider) Create(ctx context.Context, kind, name string, attrs map[string]any) (string, map[string]any, error) {
	p.mu.Lock()
	delay := p.createDelay[name]
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.flaky[name]; n > 0 {
		p.flaky[name] = n - 1
		p.calls = append(p.calls, "flake:"+name)
		return "", nil, fmt.Errorf("throttled: slow down")
	}
	if err := p.createErr[name]; err != nil {
		p.calls = append(p.calls, "fail:"+name)
		return "", nil, err
	}
	p.nextSeq++
	id := fmt.Sprintf("fake-%s-%d", name, p.nextSeq)
	p.calls = append(p.calls, "create:"+name)
	outputs := map[string]any{"id": id}
	for k, v := range attrs {
		outputs[k] = v
	}
	return id, outputs, nil
}

func (p *fakeProvider) Read(ctx context.Context, kind, id string, prior map[string]any) (map[string]any, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "read:"+id)
	if p.missing[id] {
		return nil, false, nil
	}
	return prior, true, nil
}

func (p *fakeProvider) Update(ctx context.Context, kind, id string, attrs, prior map[string]any) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "update:"+id)
	outputs := map[string]any{"id": id}
	for k, v := range attrs {
		outputs[k] = v
	}
	return outputs, nil
}

func (p *fakeProvider) Delete(ctx context.Context, kind, id string, prior map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "delete:"+id)
	return nil
}

func (p *fakeProvider) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.calls...)
}

func newTestEngine(t *testing.T, fp *fakeProvider) *Engine {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register("fake", func() provider.Interface { return fp })
	eng := NewEngine(reg)
	eng.Retry = &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return eng
}

func webConfig() *ir.Config {
	return &ir.Config{
		Providers: []*ir.ProviderConfig{{Name: "fake"}},
		Resources: []*ir.Resource{
			{
				Kind:     "fake.SecurityGroup",
				Name:     "sg",
				Provider: "fake",
				Attrs: map[string]any{
					"description": "web traffic",
					"ingress": []any{
						map[string]any{"port": int64(80), "cidr": "0.0.0.0/0"},
					},
				},
				DeclOrder: 0,
			},
			{
				Kind:     "fake.Instance",
				Name:     "web-server",
				Provider: "fake",
				Attrs: map[string]any{
					"instance_type":      "t3.micro",
					"security_group_ids": []any{ir.MakeRef("sg", "id")},
				},
				DeclOrder: 1,
			},
		},
		Outputs: map[string]any{
			"server_id": ir.MakeRef("web-server", "id"),
		},
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestPlanFirstRun(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)

	plan, err := eng.Plan(context.Background(), webConfig(), &ir.State{})
	require.NoError(t, err)

	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "sg", plan.Changes[0].Address)
	assert.Equal(t, ir.ActionCreate, plan.Changes[0].Action)
	assert.Equal(t, "web-server", plan.Changes[1].Address)
	assert.Equal(t, ir.ActionCreate, plan.Changes[1].Action)
	assert.Equal(t, 2, plan.Summary.Create)

	assert.Contains(t, plan.Changes[1].Diff, "instance_type")
}

func TestPlanIdempotent(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)
	ctx := context.Background()
	cfg := webConfig()
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	replan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	assert.True(t, replan.Empty(), "second plan should contain no changes")
	assert.Equal(t, 2, replan.Summary.NoOp)
}

func TestPlanUpdate(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)
	ctx := context.Background()
	cfg := webConfig()
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	cfg.Resources[1].Attrs["instance_type"] = "t3.large"

	replan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.Len(t, replan.Changes, 1)
	assert.Equal(t, "web-server", replan.Changes[0].Address)
	assert.Equal(t, ir.ActionUpdate, replan.Changes[0].Action)

	d := replan.Changes[0].Diff["instance_type"]
	require.NotNil(t, d)
	assert.Equal(t, "t3.micro", d.Before)
	assert.Equal(t, "t3.large", d.After)
}

func TestPlanReplaceOnForceNew(t *testing.T) {
	fp := newFakeProvider()
	fp.schemas["fake.Instance"] = &provider.ResourceSchema{
		Kind:     "fake.Instance",
		ForceNew: []string{"image_id"},
		Computed: []string{"id"},
	}
	eng := newTestEngine(t, fp)
	ctx := context.Background()

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Kind:     "fake.Instance",
				Name:     "web",
				Provider: "fake",
				Attrs:    map[string]any{"image_id": "ami-1", "instance_type": "t3.micro"},
			},
		},
	}
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	cfg.Resources[0].Attrs["image_id"] = "ami-2"

	replan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.Len(t, replan.Changes, 1)
	assert.Equal(t, ir.ActionReplace, replan.Changes[0].Action)
	assert.True(t, replan.Changes[0].Diff["image_id"].ForcesReplacement)
}

func TestPlanDestroyOrphan(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)

	st := &ir.State{
		Resources: []*ir.Record{
			{Name: "old", Kind: "fake.Instance", Provider: "fake", ID: "fake-old-1",
				Inputs: map[string]any{"instance_type": "t3.micro"}},
		},
	}

	plan, err := eng.Plan(context.Background(), &ir.Config{}, st)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "old", plan.Changes[0].Address)
	assert.Equal(t, ir.ActionDestroy, plan.Changes[0].Action)
	assert.Equal(t, 1, plan.Summary.Destroy)
}

func TestPlanPreventDestroyBlocksReplace(t *testing.T) {
	fp := newFakeProvider()
	fp.schemas["fake.Instance"] = &provider.ResourceSchema{
		Kind:     "fake.Instance",
		ForceNew: []string{"image_id"},
		Computed: []string{"id"},
	}
	eng := newTestEngine(t, fp)
	ctx := context.Background()

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Kind:      "fake.Instance",
				Name:      "protected",
				Provider:  "fake",
				Lifecycle: &ir.Lifecycle{PreventDestroy: true},
				Attrs:     map[string]any{"image_id": "ami-1"},
			},
		},
	}
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	cfg.Resources[0].Attrs["image_id"] = "ami-2"

	_, err = eng.Plan(ctx, cfg, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prevent_destroy")
}

func TestPlanIgnoreChanges(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)
	ctx := context.Background()

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Kind:      "fake.Instance",
				Name:      "web",
				Provider:  "fake",
				Lifecycle: &ir.Lifecycle{IgnoreChanges: []string{"tags"}},
				Attrs:     map[string]any{"instance_type": "t3.micro", "tags": map[string]any{"env": "dev"}},
			},
		},
	}
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	cfg.Resources[0].Attrs["tags"] = map[string]any{"env": "prod"}

	replan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	assert.True(t, replan.Empty())
}

func TestPlanSetAttrOrderInsensitive(t *testing.T) {
	fp := newFakeProvider()
	fp.schemas["fake.SecurityGroup"] = &provider.ResourceSchema{
		Kind:     "fake.SecurityGroup",
		SetAttrs: []string{"ingress"},
		Computed: []string{"id"},
	}
	eng := newTestEngine(t, fp)
	ctx := context.Background()

	rule80 := map[string]any{"port": int64(80), "cidr": "0.0.0.0/0"}
	rule443 := map[string]any{"port": int64(443), "cidr": "0.0.0.0/0"}

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Kind:     "fake.SecurityGroup",
				Name:     "sg",
				Provider: "fake",
				Attrs:    map[string]any{"ingress": []any{rule80, rule443}},
			},
		},
	}
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	cfg.Resources[0].Attrs["ingress"] = []any{rule443, rule80}

	replan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	assert.True(t, replan.Empty(), "reordered set members should not diff")
}

func TestPlanNumbersSurviveJSONRoundTrip(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)
	ctx := context.Background()

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Kind:     "fake.Instance",
				Name:     "web",
				Provider: "fake",
				Attrs:    map[string]any{"port": int64(8080)},
			},
		},
	}
	st := &ir.State{}

	plan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, plan, st))

	// A reloaded state carries float64 where the document decodes int64.
	st.Record("web").Inputs["port"] = float64(8080)

	replan, err := eng.Plan(ctx, cfg, st)
	require.NoError(t, err)
	assert.True(t, replan.Empty())
}

func TestPlanCountExpansion(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)

	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Kind:     "fake.Instance",
				Name:     "worker",
				Provider: "fake",
				Count:    countOf(3),
				Attrs:    map[string]any{"index": ir.MakeRef("count", "index")},
			},
		},
	}

	plan, err := eng.Plan(context.Background(), cfg, &ir.State{})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 3)
	assert.Equal(t, "worker[0]", plan.Changes[0].Address)
	assert.Equal(t, "worker[2]", plan.Changes[2].Address)
	assert.Equal(t, int64(1), plan.Changes[1].Desired.Attrs["index"])
}

func TestDestroyPlanReverseOrder(t *testing.T) {
	fp := newFakeProvider()
	eng := newTestEngine(t, fp)

	st := &ir.State{
		Resources: []*ir.Record{
			{Name: "sg", Kind: "fake.SecurityGroup", Provider: "fake", ID: "fake-sg-1"},
			{Name: "web", Kind: "fake.Instance", Provider: "fake", ID: "fake-web-2",
				Dependencies: []string{"sg"}},
		},
	}

	plan, err := eng.DestroyPlan(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "web", plan.Changes[0].Address)
	assert.Equal(t, "sg", plan.Changes[1].Address)
	for _, c := range plan.Changes {
		assert.Equal(t, ir.ActionDestroy, c.Action)
	}
}

func TestRefreshDropsVanishedResource(t *testing.T) {
	fp := newFakeProvider()
	fp.missing["fake-web-1"] = true
	eng := newTestEngine(t, fp)

	st := &ir.State{
		Resources: []*ir.Record{
			{Name: "web", Kind: "fake.Instance", Provider: "fake", ID: "fake-web-1"},
			{Name: "sg", Kind: "fake.SecurityGroup", Provider: "fake", ID: "fake-sg-2",
				Outputs: map[string]any{"id": "fake-sg-2"}},
		},
	}

	result, err := eng.Refresh(context.Background(), nil, st)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, []string{"web"}, result.Removed)
	assert.Nil(t, st.Record("web"))
	assert.NotNil(t, st.Record("sg"))
}
