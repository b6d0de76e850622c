package state

import (
	"context"
	"fmt"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// Backend abstracts where state lives. The local Manager and the S3 backend
// both satisfy it.
type Backend interface {
	// Read loads the state from the backend.
	Read(ctx context.Context) (*ir.State, error)

	// Write saves the state to the backend.
	Write(ctx context.Context, st *ir.State) error

	// Lock acquires an exclusive lock on the state.
	Lock() error

	// Unlock releases the lock on the state.
	Unlock() error
}

// BackendConfig selects and configures a state backend.
type BackendConfig struct {
	Type   string            `json:"type"` // "local", "s3"
	Config map[string]string `json:"config"`
}

// NewBackend creates a state backend from configuration.
func NewBackend(cfg *BackendConfig) (Backend, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "local" {
		path := ""
		if cfg != nil {
			path = cfg.Config["path"]
		}
		return NewManager(path), nil
	}

	switch cfg.Type {
	case "s3":
		return newS3Backend(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
