package ir

// Action describes what the executor will do for a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionReplace Action = "replace"
	ActionDestroy Action = "destroy"
	ActionNoOp    Action = "noop"
)

// Plan represents a calculated execution plan.
type Plan struct {
	Metadata *PlanMetadata  `json:"metadata"`
	Changes  []*Change      `json:"changes"`
	Summary  *PlanSummary   `json:"summary"`
	Outputs  map[string]any `json:"outputs,omitempty"`
}

type PlanMetadata struct {
	Timestamp  string `json:"timestamp"`
	ConfigHash string `json:"configHash,omitempty"`
	StateSerial int   `json:"stateSerial"`
}

// Change is one (resource, action) pair in the plan. Changes are ordered so
// that for create/update every dependency appears earlier, and destroys run
// after all creates in reverse dependency order.
type Change struct {
	Address string               `json:"address"` // logical resource name
	Action  Action               `json:"action"`
	Desired *Resource            `json:"resource,omitempty"`
	Prior   *Record              `json:"prior,omitempty"`
	Diff    map[string]*AttrDiff `json:"diff,omitempty"`
}

type AttrDiff struct {
	Before            any    `json:"before,omitempty"`
	After             any    `json:"after,omitempty"`
	Action            string `json:"action"` // "create", "update", "delete"
	ForcesReplacement bool   `json:"forcesReplacement,omitempty"`
	Sensitive         bool   `json:"sensitive,omitempty"`
}

type PlanSummary struct {
	Create  int `json:"create"`
	Update  int `json:"update"`
	Replace int `json:"replace"`
	Destroy int `json:"destroy"`
	NoOp    int `json:"noop"`
}

// Empty reports whether the plan contains no actionable changes.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0
}
