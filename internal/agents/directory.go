// Package agents derives the owning agent for a contact and tracks
// last-known ownership so reassignments can be detected.
package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// UnassignedKey is the terminal fallback when no directory rule matches.
// Contacts are never dropped for lacking an owner.
const UnassignedKey = "UNASSIGNED"

// DirectoryEntry describes one agent and the identifiers that resolve to it.
type DirectoryEntry struct {
	AgentKey    string   `json:"agentKey"`
	OwnerIDs    []string `json:"ownerIds"`
	AgentNames  []string `json:"agentNames"`
	TagPatterns []string `json:"tagPatterns"`
}

// Directory is the static agent roster loaded at startup.
type Directory struct {
	entries []DirectoryEntry

	byOwnerID map[string]string
	byName    map[string]string
}

// LoadDirectory reads the agent roster from a JSON file.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent directory: %w", err)
	}
	var file struct {
		Agents []DirectoryEntry `json:"agents"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agent directory %s: %w", path, err)
	}
	return NewDirectory(file.Agents)
}

// NewDirectory builds a directory from entries, validating agent keys.
func NewDirectory(entries []DirectoryEntry) (*Directory, error) {
	d := &Directory{
		entries:   entries,
		byOwnerID: make(map[string]string),
		byName:    make(map[string]string),
	}
	for _, e := range entries {
		if e.AgentKey == "" {
			return nil, fmt.Errorf("agent directory entry missing agentKey")
		}
		for _, id := range e.OwnerIDs {
			d.byOwnerID[id] = e.AgentKey
		}
		for _, name := range e.AgentNames {
			d.byName[strings.ToLower(strings.TrimSpace(name))] = e.AgentKey
		}
	}
	return d, nil
}

// AgentKeys returns every known agent key, in file order.
func (d *Directory) AgentKeys() []string {
	keys := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		keys = append(keys, e.AgentKey)
	}
	return keys
}
