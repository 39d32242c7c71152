package cli

import (
	"github.com/spf13/cobra"

	"nargo-bridge/src/internal/common"
	versionpkg "nargo-bridge/src/internal/version"
)

// CLI Constants
const (
	CmdPreflight = "preflight"
	CmdTest      = "test"
	CmdProfile   = "profile"
	CmdLSP       = "lsp"
	CmdConfig    = "config"
	CmdVersion   = "version"
	FlagConfig   = "config"
	FlagName     = "name"
	FlagFolder   = "project-folder"
	FlagPackage  = "package"
	FlagProver   = "prover-name"
	FlagACIR     = "generate-acir"
	FlagSkipInst = "skip-instrumentation"
	FlagSkip     = "skip"
	FlagVerbose  = "verbose"
)

// CLI Variables
var (
	configPath    string
	launchName    string
	projectFolder string
	packageName   string
	proverName    string
	generateACIR  bool
	skipInstr     bool
	skipTests     []string
	verbose       bool
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "nargo-bridge",
	Short: "nargo-bridge - editor-integration glue for the Noir toolchain",
	Long: `nargo-bridge connects editor hosts to the nargo toolchain: it validates
debug launches before the debug adapter attaches, and relays test
discovery, test runs, and profiling over an extended language-server
connection.

QUICK START:
  nargo-bridge preflight src/main.nr       # Validate a debug launch
  nargo-bridge test                        # Discover and run package tests
  nargo-bridge lsp                         # Run the language client bridge

AVAILABLE COMMANDS:
  nargo-bridge preflight <file.nr>         # Preflight check + resolved launch config
  nargo-bridge test [--package P]          # Run tests via the language server
  nargo-bridge profile --package P         # Per-span opcode counts
  nargo-bridge lsp                         # Language client until server exit
  nargo-bridge config                      # Show effective configuration
  nargo-bridge version                     # Version information

nargo itself is resolved from the configured nargo_path, the PATH, or the
noirup install root, in that order.`,
	SilenceUsage: true,
}

var preflightCmd = &cobra.Command{
	Use:   CmdPreflight + " <file.nr>",
	Short: "Validate a debug launch and print the resolved configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreflightCmd,
}

var testCmd = &cobra.Command{
	Use:   CmdTest,
	Short: "Discover and run Noir tests through the language server",
	Args:  cobra.NoArgs,
	RunE:  runTestCmd,
}

var profileCmd = &cobra.Command{
	Use:   CmdProfile,
	Short: "Profile a package and print per-span opcode counts",
	Args:  cobra.NoArgs,
	RunE:  runProfileCmd,
}

var lspCmd = &cobra.Command{
	Use:   CmdLSP,
	Short: "Run the language client until the server exits",
	Args:  cobra.NoArgs,
	RunE:  runLSPCmd,
}

var configCmd = &cobra.Command{
	Use:   CmdConfig,
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigCmd,
}

var versionCmd = &cobra.Command{
	Use:   CmdVersion,
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersionCmd,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, FlagConfig, "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, FlagVerbose, false, "Enable verbose logging")

	preflightCmd.Flags().StringVar(&launchName, FlagName, "", "Launch configuration name")
	preflightCmd.Flags().StringVar(&projectFolder, FlagFolder, "", "Project folder override (default: nearest Nargo.toml ancestor)")
	preflightCmd.Flags().StringVar(&packageName, FlagPackage, "", "Package to validate")
	preflightCmd.Flags().StringVar(&proverName, FlagProver, "", "Prover file name")
	preflightCmd.Flags().BoolVar(&generateACIR, FlagACIR, false, "Generate ACIR during validation")
	preflightCmd.Flags().BoolVar(&skipInstr, FlagSkipInst, false, "Skip debug instrumentation")

	testCmd.Flags().StringVar(&packageName, FlagPackage, "", "Run only this package")
	testCmd.Flags().StringArrayVar(&skipTests, FlagSkip, nil, "Package or test IDs to exclude (repeatable)")

	profileCmd.Flags().StringVar(&packageName, FlagPackage, "", "Package to profile")
	profileCmd.MarkFlagRequired(FlagPackage)

	rootCmd.AddCommand(preflightCmd, testCmd, profileCmd, lspCmd, configCmd, versionCmd)
}

func runPreflightCmd(cmd *cobra.Command, args []string) error {
	return RunPreflight(configPath, args[0])
}

func runTestCmd(cmd *cobra.Command, args []string) error {
	return RunTests(configPath, packageName, skipTests)
}

func runProfileCmd(cmd *cobra.Command, args []string) error {
	return RunProfile(configPath, packageName)
}

func runLSPCmd(cmd *cobra.Command, args []string) error {
	return RunLSP(configPath)
}

func runConfigCmd(cmd *cobra.Command, args []string) error {
	return ShowConfig(configPath)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if verbose {
		common.CLILogger.Info("%s", versionpkg.GetFullVersionInfo())
		return nil
	}
	common.CLILogger.Info("nargo-bridge %s", versionpkg.GetVersion())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
