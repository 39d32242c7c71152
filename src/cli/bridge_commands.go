package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"nargo-bridge/src/client"
	"nargo-bridge/src/client/testtree"
	"nargo-bridge/src/config"
	"nargo-bridge/src/internal/common"
	"nargo-bridge/src/internal/nargo"
	"nargo-bridge/src/internal/project"
	"nargo-bridge/src/launcher"
)

func loadSettings(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyLogLevel()
	if verbose {
		common.SetGlobalLevel(common.LogDebug)
	}
	return cfg, nil
}

// RunPreflight validates a debug launch for file and prints the resolved
// configuration on success. The subprocess output streams to stdout as
// it arrives.
func RunPreflight(configPath, file string) error {
	cfg, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	v := launcher.NewValidator(cfg.NargoPath)
	launch, err := v.Resolve(context.Background(), file, launcher.Overrides{
		Name:                launchName,
		ProjectFolder:       projectFolder,
		Package:             packageName,
		ProverName:          proverName,
		GenerateACIR:        generateACIR,
		SkipInstrumentation: skipInstr,
	}, os.Stdout)
	if err != nil {
		return err
	}

	printLaunchConfig(launch)
	return nil
}

// RunTests connects to the language server, fetches the test tree, and
// runs the selected tests sequentially.
func RunTests(configPath, pkg string, skip []string) error {
	cfg, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	cl, tree, err := startClient(cfg)
	if err != nil {
		return err
	}
	defer cl.Stop()

	if !cl.Capabilities().SupportsTests() {
		return fmt.Errorf("this nargo version does not support the test protocol")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Fetch(ctx); err != nil {
		return err
	}

	var include []string
	if pkg != "" {
		include = []string{pkg}
	}

	reporter := newCLIReporter()
	if err := tree.Run(ctx, include, skip, reporter); err != nil {
		return err
	}

	reporter.printSummary()
	if reporter.failureCount() > 0 {
		return fmt.Errorf("%d test(s) failed", reporter.failureCount())
	}
	return nil
}

// RunProfile profiles one package and prints its opcode counts.
func RunProfile(configPath, pkg string) error {
	cfg, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	cl, _, err := startClient(cfg)
	if err != nil {
		return err
	}
	defer cl.Stop()

	result, err := cl.RunProfile(context.Background(), pkg)
	if err != nil {
		return err
	}

	printProfile(pkg, result)
	return nil
}

// RunLSP keeps the language client alive until the server exits or the
// process is interrupted.
func RunLSP(configPath string) error {
	cfg, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	cl, _, err := startClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		cl.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		common.CLILogger.Info("Interrupted, shutting down language client")
	case <-done:
	}
	cl.Stop()
	return nil
}

// ShowConfig prints the effective configuration as YAML.
func ShowConfig(configPath string) error {
	cfg, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

// startClient resolves the binary and workspace, starts the client, and
// attaches the test-tree extension.
func startClient(cfg *config.Config) (*client.Client, *testtree.Tree, error) {
	if !cfg.EnableLSP {
		return nil, nil, fmt.Errorf("language client is disabled (enable_lsp: false)")
	}

	bin, err := nargo.Resolve(cfg.NargoPath)
	if err != nil {
		return nil, nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	root := cwd
	if found, err := project.FindPackageRoot(cwd); err == nil {
		root = found
	}

	cl := client.NewClient(client.Options{
		NargoPath:      bin,
		ExtraFlags:     cfg.NargoFlags,
		WorkspaceRoot:  root,
		EnableCodeLens: cfg.EnableCodeLens,
	})
	tree := testtree.Attach(cl)

	if err := cl.Start(context.Background()); err != nil {
		return nil, nil, err
	}
	return cl, tree, nil
}
