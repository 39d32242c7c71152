// Package launcher resolves debug launch configurations for Noir programs.
//
// Before the host debugger spawns `nargo dap` for real, the launcher runs
// the adapter binary once in preflight mode so that compile errors surface
// in the log sink instead of killing the debug session mid-attach.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"nargo-bridge/src/internal/common"
	"nargo-bridge/src/internal/nargo"
	"nargo-bridge/src/internal/project"
	"nargo-bridge/src/internal/sanitize"
)

const (
	debugType      = "noir"
	debugRequest   = "launch"
	defaultProver  = "Prover"
	preflightSub   = "dap"
	flagCheck      = "--preflight-check"
	flagProjectDir = "--preflight-project-folder"
	flagPackage    = "--preflight-package"
	flagProver     = "--preflight-prover-name"
	flagACIR       = "--preflight-generate-acir"
	flagSkipInstr  = "--preflight-skip-instrumentation"
)

// ErrPreflightFailed is returned when the validation subprocess exits
// nonzero. The subprocess output has already been streamed to the sink;
// the error itself carries no diagnostics.
var ErrPreflightFailed = errors.New("preflight check failed")

// ErrNotNoirSource is returned for files the toolchain cannot debug.
var ErrNotNoirSource = errors.New("not a Noir source file")

// LaunchConfig is the fully resolved configuration handed back to the
// host debugger. Immutable once returned.
type LaunchConfig struct {
	Type                string
	Name                string
	Request             string
	Program             string
	ProjectFolder       string
	Package             string
	ProverName          string
	GenerateACIR        bool
	SkipInstrumentation bool
}

// Overrides are the user-supplied configuration fields merged over the
// computed defaults. Zero values mean "compute it".
type Overrides struct {
	Name                string
	ProjectFolder       string
	Package             string
	ProverName          string
	GenerateACIR        bool
	SkipInstrumentation bool
}

// Validator runs preflight checks and produces launch configurations.
type Validator struct {
	// NargoPath overrides binary discovery when set.
	NargoPath string
	logger    *common.SafeLogger
}

func NewValidator(nargoPath string) *Validator {
	return &Validator{
		NargoPath: nargoPath,
		logger:    common.LauncherLogger,
	}
}

// PreflightArgs builds the exact argument vector for the validation
// invocation. Optional string flags are emitted only when non-empty,
// boolean flags only when true.
func PreflightArgs(cfg *LaunchConfig) []string {
	args := []string{preflightSub, flagCheck, flagProjectDir, cfg.ProjectFolder}
	if cfg.Package != "" {
		args = append(args, flagPackage, cfg.Package)
	}
	args = append(args, flagProver, cfg.ProverName)
	if cfg.GenerateACIR {
		args = append(args, flagACIR)
	}
	if cfg.SkipInstrumentation {
		args = append(args, flagSkipInstr)
	}
	return args
}

// Resolve validates the project containing file and returns the launch
// configuration the host should execute. Combined subprocess output is
// sanitized and streamed to sink as it arrives. A single attempt is made;
// the call blocks until the subprocess exits or ctx is cancelled.
func (v *Validator) Resolve(ctx context.Context, file string, o Overrides, sink io.Writer) (*LaunchConfig, error) {
	if !project.IsNoirSource(file) {
		return nil, fmt.Errorf("%w: %s", ErrNotNoirSource, file)
	}

	program, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve program path: %w", err)
	}

	bin, err := nargo.Resolve(v.NargoPath)
	if err != nil {
		return nil, err
	}

	projectFolder := o.ProjectFolder
	if projectFolder == "" {
		projectFolder, err = project.FindPackageRoot(program)
		if err != nil {
			return nil, err
		}
	}

	cfg := &LaunchConfig{
		Type:                debugType,
		Name:                o.Name,
		Request:             debugRequest,
		Program:             program,
		ProjectFolder:       projectFolder,
		Package:             o.Package,
		ProverName:          o.ProverName,
		GenerateACIR:        o.GenerateACIR,
		SkipInstrumentation: o.SkipInstrumentation,
	}
	if cfg.Name == "" {
		cfg.Name = "Debug " + filepath.Base(program)
	}
	if cfg.ProverName == "" {
		cfg.ProverName = defaultProver
	}

	if err := v.runPreflight(ctx, bin, cfg, sink); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (v *Validator) runPreflight(ctx context.Context, bin string, cfg *LaunchConfig, sink io.Writer) error {
	args := PreflightArgs(cfg)
	v.logger.Info("Running preflight check: %s %s", bin, strings.Join(args, " "))

	streamer := sanitize.NewLineStreamer(sink)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = cfg.ProjectFolder
	cmd.Stdout = streamer
	cmd.Stderr = streamer

	err := cmd.Run()
	streamer.Flush()

	if err == nil {
		v.logger.Debug("Preflight check passed for %s", cfg.Program)
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("preflight check interrupted: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The exit code is logged for troubleshooting but not classified;
		// the sanitized output already on the sink is the diagnostic.
		v.logger.Error("Preflight check exited with code %d", exitErr.ExitCode())
		return ErrPreflightFailed
	}
	return fmt.Errorf("failed to run preflight check: %w", err)
}
