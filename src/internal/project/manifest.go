// Package project locates and reads Noir package manifests.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const ManifestName = "Nargo.toml"

// ErrNoPackageRoot indicates no ancestor directory contains a Nargo.toml.
var ErrNoPackageRoot = errors.New("no Nargo.toml found in any ancestor directory")

// Manifest is the subset of Nargo.toml the bridge cares about.
type Manifest struct {
	Package   PackageSection   `toml:"package"`
	Workspace WorkspaceSection `toml:"workspace"`
}

type PackageSection struct {
	Name            string `toml:"name"`
	Type            string `toml:"type"`
	CompilerVersion string `toml:"compiler_version"`
}

type WorkspaceSection struct {
	Members       []string `toml:"members"`
	DefaultMember string   `toml:"default-member"`
}

// IsNoirSource reports whether path names a Noir source file.
func IsNoirSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".nr")
}

// FindPackageRoot returns the nearest ancestor directory of path that
// contains a Nargo.toml. path may name a file or a directory.
func FindPackageRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		candidate := filepath.Join(dir, ManifestName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (searched from %s)", ErrNoPackageRoot, abs)
		}
		dir = parent
	}
}

// LoadManifest reads and parses the Nargo.toml in dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// PackageName returns the manifest's package name, falling back to the
// directory basename for workspace-root manifests without a [package]
// section.
func PackageName(dir string) string {
	if m, err := LoadManifest(dir); err == nil && m.Package.Name != "" {
		return m.Package.Name
	}
	return filepath.Base(dir)
}
