package ir

// Config represents the top-level desired-state document.
type Config struct {
	Variables []*Variable       `json:"variables,omitempty"`
	Providers []*ProviderConfig `json:"providers,omitempty"`
	Resources []*Resource       `json:"resources"`
	Outputs   map[string]any    `json:"outputs,omitempty"`
}

// Variable is a declared input variable.
type Variable struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"` // "string", "number", "bool", "list", "map"
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// ProviderConfig pins and configures a provider.
type ProviderConfig struct {
	Name     string         `json:"name"`
	Version  string         `json:"version,omitempty"` // version constraint, e.g. ">= 1.0"
	Settings map[string]any `json:"settings,omitempty"`
}

// Resource returns the resource with the given logical name, or nil.
func (c *Config) Resource(name string) *Resource {
	for _, res := range c.Resources {
		if res.Name == name {
			return res
		}
	}
	return nil
}
