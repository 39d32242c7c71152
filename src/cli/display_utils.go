package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"nargo-bridge/src/client"
	"nargo-bridge/src/launcher"
)

// cliReporter renders per-test verdicts as they arrive and keeps totals
// for the summary line. Satisfies testtree.Reporter and
// testtree.Invalidator.
type cliReporter struct {
	passed  int
	failed  int
	errored int
}

func newCLIReporter() *cliReporter {
	return &cliReporter{}
}

func (r *cliReporter) Passed(id, message string) {
	r.passed++
	fmt.Printf("%s %s\n", color.GreenString("PASS"), id)
}

func (r *cliReporter) Failed(id, message string) {
	r.failed++
	fmt.Printf("%s %s\n", color.RedString("FAIL"), id)
	if message != "" {
		fmt.Printf("     %s\n", message)
	}
}

func (r *cliReporter) Errored(id, message string) {
	r.errored++
	fmt.Printf("%s %s\n", color.YellowString("ERROR"), id)
	if message != "" {
		fmt.Printf("     %s\n", message)
	}
}

// InvalidateResults is a no-op for the one-shot CLI run; live hosts use
// it to drop stale results when a package snapshot is replaced.
func (r *cliReporter) InvalidateResults(pkg string) {}

func (r *cliReporter) failureCount() int {
	return r.failed + r.errored
}

func (r *cliReporter) printSummary() {
	fmt.Printf("\n%s | %s | %s\n",
		color.GreenString("passed: %d", r.passed),
		color.RedString("failed: %d", r.failed),
		color.YellowString("errors: %d", r.errored))
}

func printLaunchConfig(cfg *launcher.LaunchConfig) {
	color.Green("Preflight check passed")
	fmt.Printf("  type:            %s\n", cfg.Type)
	fmt.Printf("  name:            %s\n", cfg.Name)
	fmt.Printf("  request:         %s\n", cfg.Request)
	fmt.Printf("  program:         %s\n", cfg.Program)
	fmt.Printf("  project folder:  %s\n", cfg.ProjectFolder)
	if cfg.Package != "" {
		fmt.Printf("  package:         %s\n", cfg.Package)
	}
	fmt.Printf("  prover name:     %s\n", cfg.ProverName)
	fmt.Printf("  generate ACIR:   %v\n", cfg.GenerateACIR)
	fmt.Printf("  skip instrument: %v\n", cfg.SkipInstrumentation)
}

func printProfile(pkg string, result *client.ProfileResult) {
	color.Cyan("Opcode profile for %s", pkg)

	counts := make([]client.OpcodeCount, len(result.OpcodeCounts))
	copy(counts, result.OpcodeCounts)
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	for _, c := range counts {
		path := c.Span.FileID
		if f, ok := result.FileMap[c.Span.FileID]; ok {
			path = f.Path
		}
		fmt.Printf("  %6d  %s [%d..%d]\n", c.Count, path, c.Span.Start, c.Span.End)
	}
	fmt.Printf("  %d spans across %d files\n", len(counts), len(result.FileMap))
}
