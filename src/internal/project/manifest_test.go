package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(content), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestIsNoirSource(t *testing.T) {
	if !IsNoirSource("/proj/src/main.nr") {
		t.Error("main.nr should be a Noir source")
	}
	if !IsNoirSource("MAIN.NR") {
		t.Error("extension match should be case-insensitive")
	}
	if IsNoirSource("/proj/src/main.rs") {
		t.Error("main.rs is not a Noir source")
	}
	if IsNoirSource("/proj/nr") {
		t.Error("bare 'nr' basename is not a Noir source")
	}
}

func TestFindPackageRootNearestAncestor(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "workspace")
	inner := filepath.Join(outer, "crates", "mypkg")
	writeManifest(t, outer, "[workspace]\nmembers = [\"crates/mypkg\"]\n")
	writeManifest(t, inner, "[package]\nname = \"mypkg\"\n")

	srcDir := filepath.Join(inner, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(srcDir, "main.nr")
	if err := os.WriteFile(file, []byte("fn main() {}"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FindPackageRoot(file)
	if err != nil {
		t.Fatalf("FindPackageRoot: %v", err)
	}
	// Nearest manifest wins, not the workspace root above it.
	if got != inner {
		t.Fatalf("FindPackageRoot = %s, want %s", got, inner)
	}
}

func TestFindPackageRootFromDirectory(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"p\"\n")
	got, err := FindPackageRoot(root)
	if err != nil {
		t.Fatalf("FindPackageRoot: %v", err)
	}
	if got != root {
		t.Fatalf("FindPackageRoot = %s, want %s", got, root)
	}
}

func TestFindPackageRootMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := FindPackageRoot(filepath.Join(dir, "main.nr"))
	if !errors.Is(err, ErrNoPackageRoot) {
		t.Fatalf("expected ErrNoPackageRoot, got %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "circuits"
type = "bin"
compiler_version = ">=0.30.0"
`)
	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Package.Name != "circuits" || m.Package.Type != "bin" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Package.CompilerVersion != ">=0.30.0" {
		t.Fatalf("compiler_version = %q", m.Package.CompilerVersion)
	}
}

func TestLoadManifestInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package\nname = broken")
	if _, err := LoadManifest(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPackageNameFallback(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[workspace]\nmembers = []\n")
	if got := PackageName(dir); got != filepath.Base(dir) {
		t.Fatalf("PackageName = %q, want directory basename %q", got, filepath.Base(dir))
	}

	writeManifest(t, dir, "[package]\nname = \"named\"\n")
	if got := PackageName(dir); got != "named" {
		t.Fatalf("PackageName = %q, want named", got)
	}
}
