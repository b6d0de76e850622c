package ir

// Resource represents a single declared resource in the desired-state document.
type Resource struct {
	Kind      string         `json:"kind"` // e.g., "aws.ec2.Instance"
	Name      string         `json:"name"` // logical name, unique within the graph
	Provider  string         `json:"provider"`
	Count     *int           `json:"count,omitempty"` // nil when no count was declared; 0 means zero instances
	Timeout   string         `json:"timeout,omitempty"`
	Lifecycle *Lifecycle     `json:"lifecycle,omitempty"`
	DependsOn []string       `json:"dependsOn,omitempty"`
	Attrs     map[string]any `json:"attrs"` // literal values plus ref:// markers
	DeclOrder int            `json:"-"`     // position in the document, for deterministic ordering
}

type Lifecycle struct {
	CreateBeforeDestroy bool     `json:"createBeforeDestroy,omitempty"`
	PreventDestroy      bool     `json:"preventDestroy,omitempty"`
	IgnoreChanges       []string `json:"ignoreChanges,omitempty"`
}
