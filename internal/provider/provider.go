package provider

import "context"

// Interface is the capability set the engine needs from a provider. The core
// treats attribute maps as opaque JSON-style values; only the schema informs
// how the diff engine compares them.
type Interface interface {
	// Name returns the provider name, e.g. "aws".
	Name() string

	// Schema returns the schema for a resource kind handled by this provider.
	Schema(kind string) (*ResourceSchema, error)

	// Configure applies provider-level settings (region, credentials profile).
	// It must be idempotent.
	Configure(ctx context.Context, settings map[string]any) error

	// Create realizes a new resource and returns its provider-assigned
	// identity plus observed attributes.
	Create(ctx context.Context, kind, name string, attrs map[string]any) (string, map[string]any, error)

	// Read fetches the live attributes of an existing resource. exists is
	// false when the resource is gone on the provider side.
	Read(ctx context.Context, kind, id string, prior map[string]any) (outputs map[string]any, exists bool, err error)

	// Update changes a resource in place and returns the new observed
	// attributes.
	Update(ctx context.Context, kind, id string, attrs, prior map[string]any) (map[string]any, error)

	// Delete destroys the resource. Deleting an already-gone resource is not
	// an error.
	Delete(ctx context.Context, kind, id string, prior map[string]any) error
}

// ResourceSchema describes how the diff engine must treat a kind's attributes.
type ResourceSchema struct {
	Kind string

	// ForceNew lists identity-defining attributes. A change to any of them
	// requires destroy and recreate.
	ForceNew []string

	// SetAttrs lists attributes holding unordered collections, compared as
	// sets rather than ordered lists.
	SetAttrs []string

	// Computed lists attributes assigned by the provider, never diffed
	// against desired config.
	Computed []string
}

// ForcesNew reports whether a change to attr requires replacement.
func (s *ResourceSchema) ForcesNew(attr string) bool {
	for _, a := range s.ForceNew {
		if a == attr {
			return true
		}
	}
	return false
}

// IsSet reports whether attr holds an unordered collection.
func (s *ResourceSchema) IsSet(attr string) bool {
	for _, a := range s.SetAttrs {
		if a == attr {
			return true
		}
	}
	return false
}

// IsComputed reports whether attr is provider-assigned.
func (s *ResourceSchema) IsComputed(attr string) bool {
	for _, a := range s.Computed {
		if a == attr {
			return true
		}
	}
	return false
}
