package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// State is the persistent record of everything the engine manages.
type State struct {
	Version   int            `json:"version"`
	Serial    int            `json:"serial"`
	Lineage   string         `json:"lineage"`
	Resources []*Record      `json:"resources"`
	Outputs   map[string]any `json:"outputs,omitempty"`
}

// Record maps one logical resource name to its provider-assigned identity
// and the attributes observed at the last successful apply.
type Record struct {
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Provider     string         `json:"provider"`
	ID           string         `json:"id"`
	Inputs       map[string]any `json:"inputs,omitempty"` // user provided, references resolved
	InputsHash   string         `json:"inputsHash"`
	Outputs      map[string]any `json:"outputs,omitempty"` // provider returned
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Record returns the record for the given logical name, or nil.
func (s *State) Record(name string) *Record {
	for _, r := range s.Resources {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// PutRecord inserts or replaces the record for rec.Name.
func (s *State) PutRecord(rec *Record) {
	for i, r := range s.Resources {
		if r.Name == rec.Name {
			s.Resources[i] = rec
			return
		}
	}
	s.Resources = append(s.Resources, rec)
}

// RemoveRecord deletes the record for the given logical name, if present.
func (s *State) RemoveRecord(name string) {
	for i, r := range s.Resources {
		if r.Name == name {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return
		}
	}
}

// HashAttrs returns a stable content hash of an attribute map. encoding/json
// sorts map keys, so equal maps always hash equal.
func HashAttrs(attrs map[string]any) string {
	data, err := json.Marshal(attrs)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
