// Package resolver derives a dev command and a framework label from a
// project's package.json.
package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFile is the project manifest probed in the working directory.
const ManifestFile = "package.json"

var (
	// ErrNoManifest is returned when package.json is missing or unparsable.
	ErrNoManifest = errors.New("no readable package.json")
	// ErrNoCommand is returned when no dev command could be derived.
	ErrNoCommand = errors.New("No dev command configured and none detected")
)

// Manifest is the subset of package.json the resolver reads.
type Manifest struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// ReadManifest loads <dir>/package.json.
func ReadManifest(dir string) (*Manifest, error) {
	// #nosec G304
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoManifest, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoManifest, err)
	}
	return &m, nil
}

// HasDependency reports whether name appears in dependencies or devDependencies.
func (m *Manifest) HasDependency(name string) bool {
	if _, ok := m.Dependencies[name]; ok {
		return true
	}
	_, ok := m.DevDependencies[name]
	return ok
}

func (m *Manifest) hasScript(name string) bool {
	s, ok := m.Scripts[name]
	return ok && s != ""
}
