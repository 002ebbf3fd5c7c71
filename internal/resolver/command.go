package resolver

import (
	"fmt"
	"os"
	"path/filepath"
)

// PackageManager names a Node package manager binary.
type PackageManager string

const (
	Bun  PackageManager = "bun"
	PNPM PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	NPM  PackageManager = "npm"
)

// lockfiles in probe priority.
var lockfiles = []struct {
	file string
	pm   PackageManager
}{
	{"bun.lockb", Bun},
	{"pnpm-lock.yaml", PNPM},
	{"yarn.lock", Yarn},
}

// DetectPackageManager probes dir for lockfiles. It falls back to npm.
func DetectPackageManager(dir string) PackageManager {
	for _, l := range lockfiles {
		if _, err := os.Stat(filepath.Join(dir, l.file)); err == nil {
			return l.pm
		}
	}
	return NPM
}

// ResolveCommand picks the dev command for the project in dir: the dev,
// start or serve script, run through the detected package manager.
// Failures wrap ErrNoCommand; a missing manifest also wraps ErrNoManifest.
func ResolveCommand(dir string) (string, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCommand, err)
	}
	pm := DetectPackageManager(dir)
	switch {
	case m.hasScript("dev"):
		return fmt.Sprintf("%s run dev", pm), nil
	case m.hasScript("start"):
		return fmt.Sprintf("%s start", pm), nil
	case m.hasScript("serve"):
		return fmt.Sprintf("%s run serve", pm), nil
	}
	return "", ErrNoCommand
}
