package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// DefaultPath is where state lives relative to the working directory.
const DefaultPath = ".groundwork/state.json"

// CurrentVersion is the state file format version this build writes.
const CurrentVersion = 1

// ErrStateCorrupt means the file's checksum does not match its content.
var ErrStateCorrupt = errors.New("state file is corrupt: checksum mismatch")

// Manager handles reading and writing of local state.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	if path == "" {
		path = DefaultPath
	}
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

// Read loads the state from the configured path. A missing file yields a
// fresh empty state with a new lineage. Encrypted files are transparently
// decrypted.
func (m *Manager) Read(ctx context.Context) (*ir.State, error) {
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", m.path, err)
	}

	if IsEncrypted(raw) {
		raw, err = Decrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt state: %w", err)
		}
	}

	st, err := Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load state from %s: %w", m.path, err)
	}
	return st, nil
}

// Write persists the state, bumping its serial. The file is written to a
// temporary name and renamed into place so readers never see a torn write.
// If GROUNDWORK_STATE_KEY is set, the file is transparently encrypted.
func (m *Manager) Write(ctx context.Context, st *ir.State) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	st.Serial++
	content, err := Marshal(st)
	if err != nil {
		return err
	}

	encrypted, err := Encrypt(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file %s: %w", m.path, err)
	}
	return nil
}

// NewState returns an empty state with a fresh lineage.
func NewState() *ir.State {
	return &ir.State{
		Version: CurrentVersion,
		Serial:  0,
		Lineage: uuid.NewString(),
	}
}

// stateFile is the on-disk envelope. The checksum covers the document with
// the checksum field itself empty.
type stateFile struct {
	Version   int            `json:"version"`
	Serial    int            `json:"serial"`
	Lineage   string         `json:"lineage"`
	Checksum  string         `json:"checksum"`
	Resources []*ir.Record   `json:"resources"`
	Outputs   map[string]any `json:"outputs,omitempty"`
}

// Marshal renders a state to its JSON file form with an integrity checksum.
func Marshal(st *ir.State) ([]byte, error) {
	f := &stateFile{
		Version:   st.Version,
		Serial:    st.Serial,
		Lineage:   st.Lineage,
		Resources: st.Resources,
		Outputs:   st.Outputs,
	}
	if f.Version == 0 {
		f.Version = CurrentVersion
	}
	if f.Resources == nil {
		f.Resources = []*ir.Record{}
	}

	sum, err := checksum(f)
	if err != nil {
		return nil, err
	}
	f.Checksum = sum

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a state file and verifies its checksum.
func Unmarshal(data []byte) (*ir.State, error) {
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	if f.Checksum != "" {
		want := f.Checksum
		f.Checksum = ""
		got, err := checksum(&f)
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, ErrStateCorrupt
		}
	}

	if f.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than this build supports", f.Version)
	}

	return &ir.State{
		Version:   f.Version,
		Serial:    f.Serial,
		Lineage:   f.Lineage,
		Resources: f.Resources,
		Outputs:   f.Outputs,
	}, nil
}

func checksum(f *stateFile) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to checksum state: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SameLineage reports whether two states descend from the same init.
// Applying against a state from another lineage is almost always a mistake.
func SameLineage(a, b *ir.State) bool {
	if a.Lineage == "" || b.Lineage == "" {
		return true
	}
	return a.Lineage == b.Lineage
}
