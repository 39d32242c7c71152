package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nargo-bridge/src/internal/project"
)

func TestPreflightArgsMinimal(t *testing.T) {
	cfg := &LaunchConfig{
		ProjectFolder: "/proj",
		ProverName:    "Prover",
	}
	want := []string{
		"dap",
		"--preflight-check",
		"--preflight-project-folder", "/proj",
		"--preflight-prover-name", "Prover",
	}
	assert.Equal(t, want, PreflightArgs(cfg))
}

func TestPreflightArgsAllFlags(t *testing.T) {
	cfg := &LaunchConfig{
		ProjectFolder:       "/proj",
		Package:             "circuits",
		ProverName:          "Prover.custom",
		GenerateACIR:        true,
		SkipInstrumentation: true,
	}
	want := []string{
		"dap",
		"--preflight-check",
		"--preflight-project-folder", "/proj",
		"--preflight-package", "circuits",
		"--preflight-prover-name", "Prover.custom",
		"--preflight-generate-acir",
		"--preflight-skip-instrumentation",
	}
	assert.Equal(t, want, PreflightArgs(cfg))
}

// fakeNargo writes a shell script standing in for the nargo binary and
// returns its path.
func fakeNargo(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary helper is a shell script")
	}
	path := filepath.Join(t.TempDir(), "nargo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func noirPackage(t *testing.T) (root, mainFile string) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Nargo.toml"),
		[]byte("[package]\nname = \"demo\"\n"), 0644))
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	mainFile = filepath.Join(srcDir, "main.nr")
	require.NoError(t, os.WriteFile(mainFile, []byte("fn main() {}"), 0644))
	return root, mainFile
}

func TestResolveSuccessReturnsConfig(t *testing.T) {
	root, mainFile := noirPackage(t)
	bin := fakeNargo(t, "echo compiling\nexit 0\n")

	var sink bytes.Buffer
	v := NewValidator(bin)
	cfg, err := v.Resolve(context.Background(), mainFile, Overrides{}, &sink)
	require.NoError(t, err)

	assert.Equal(t, mainFile, cfg.Program)
	assert.Equal(t, root, cfg.ProjectFolder)
	assert.Equal(t, "noir", cfg.Type)
	assert.Equal(t, "launch", cfg.Request)
	assert.Equal(t, "Prover", cfg.ProverName)
	assert.Equal(t, "Debug main.nr", cfg.Name)
	assert.Contains(t, sink.String(), "compiling")
}

func TestResolveOverridesWin(t *testing.T) {
	_, mainFile := noirPackage(t)
	bin := fakeNargo(t, "exit 0\n")

	explicit := t.TempDir()
	var sink bytes.Buffer
	v := NewValidator(bin)
	cfg, err := v.Resolve(context.Background(), mainFile, Overrides{
		Name:          "custom session",
		ProjectFolder: explicit,
		Package:       "demo",
		ProverName:    "Verifier",
	}, &sink)
	require.NoError(t, err)

	assert.Equal(t, explicit, cfg.ProjectFolder)
	assert.Equal(t, "custom session", cfg.Name)
	assert.Equal(t, "demo", cfg.Package)
	assert.Equal(t, "Verifier", cfg.ProverName)
}

func TestResolveNonzeroExitNeverReturnsConfig(t *testing.T) {
	_, mainFile := noirPackage(t)

	for _, script := range []string{"exit 1\n", "echo boom >&2\nexit 42\n"} {
		bin := fakeNargo(t, script)
		var sink bytes.Buffer
		v := NewValidator(bin)
		cfg, err := v.Resolve(context.Background(), mainFile, Overrides{}, &sink)
		require.ErrorIs(t, err, ErrPreflightFailed)
		assert.Nil(t, cfg)
	}
}

func TestResolveStreamsSanitizedOutput(t *testing.T) {
	_, mainFile := noirPackage(t)
	bin := fakeNargo(t, `printf '\033[1;31merror\033[0m: assertion failed\n' >&2`+"\nexit 3\n")

	var sink bytes.Buffer
	v := NewValidator(bin)
	_, err := v.Resolve(context.Background(), mainFile, Overrides{}, &sink)
	require.ErrorIs(t, err, ErrPreflightFailed)

	out := sink.String()
	assert.Contains(t, out, "error: assertion failed")
	assert.NotContains(t, out, "\x1b", "escape sequences must be stripped")
}

func TestResolveRejectsNonNoirFile(t *testing.T) {
	var sink bytes.Buffer
	v := NewValidator("")
	_, err := v.Resolve(context.Background(), "/tmp/main.rs", Overrides{}, &sink)
	require.ErrorIs(t, err, ErrNotNoirSource)
}

func TestResolveMissingPackageRoot(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "main.nr")
	require.NoError(t, os.WriteFile(mainFile, []byte("fn main() {}"), 0644))
	bin := fakeNargo(t, "exit 0\n")

	var sink bytes.Buffer
	v := NewValidator(bin)
	_, err := v.Resolve(context.Background(), mainFile, Overrides{}, &sink)
	require.ErrorIs(t, err, project.ErrNoPackageRoot)
}

func TestResolveContextCancellation(t *testing.T) {
	_, mainFile := noirPackage(t)
	bin := fakeNargo(t, "sleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	var sink bytes.Buffer
	v := NewValidator(bin)
	go func() {
		_, err := v.Resolve(ctx, mainFile, Overrides{}, &sink)
		errCh <- err
	}()
	cancel()

	err := <-errCh
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPreflightFailed, "cancellation is not a preflight verdict")
}
