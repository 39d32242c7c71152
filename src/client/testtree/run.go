package testtree

import (
	"context"
	"fmt"

	"nargo-bridge/src/client"
	"nargo-bridge/src/internal/common"
)

type runParams struct {
	ID string `json:"id"`
}

// runNode is one entry on the traversal stack: either a package header
// or a leaf test.
type runNode struct {
	pkg  *PackageTests
	leaf *TestNode
}

// Run executes the selected tests and reports each verdict.
//
// include holds package names and/or test IDs; empty means every
// package. exclude removes packages or individual tests from the
// traversal. Nodes are processed with an explicit stack, so leaves run
// in last-pushed-first order: a package whose children arrived as
// [T1, T2] runs them as [T2, T1]. Package headers expand into their
// children and are never executed themselves.
//
// Round trips are strictly sequential, one in flight at a time. ctx is a
// cooperative cancellation signal checked once per stack pop; the
// in-flight round trip is never aborted. A failed round trip aborts the
// whole run with its error.
func (t *Tree) Run(ctx context.Context, include, exclude []string, reporter Reporter) error {
	excluded := map[string]bool{}
	for _, id := range exclude {
		excluded[id] = true
	}

	stack, err := t.seedStack(include)
	if err != nil {
		return err
	}

	// The round trip deliberately outlives ctx: cancellation stops
	// dequeuing, not the request already at the server.
	callCtx := context.WithoutCancel(ctx)

	for len(stack) > 0 {
		if ctx.Err() != nil {
			common.ClientLogger.Info("Test run cancelled with %d nodes pending", len(stack))
			return ctx.Err()
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.pkg != nil {
			if excluded[node.pkg.Package] {
				continue
			}
			for i := range node.pkg.Tests {
				stack = append(stack, runNode{leaf: &node.pkg.Tests[i]})
			}
			continue
		}

		if excluded[node.leaf.ID] {
			continue
		}
		if err := t.runOne(callCtx, node.leaf.ID, reporter); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) runOne(ctx context.Context, id string, reporter Reporter) error {
	var result RunResult
	if err := t.caller.Call(ctx, client.MethodTestsRun, runParams{ID: id}, &result); err != nil {
		return fmt.Errorf("test run failed for %s: %w", id, err)
	}

	switch result.Result {
	case VerdictPass:
		reporter.Passed(result.ID, result.Message)
	case VerdictFail:
		reporter.Failed(result.ID, result.Message)
	default:
		reporter.Errored(result.ID, result.Message)
	}
	return nil
}

// seedStack resolves the include selection into initial stack entries.
func (t *Tree) seedStack(include []string) ([]runNode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(include) == 0 {
		stack := make([]runNode, 0, len(t.order))
		for _, name := range t.order {
			stack = append(stack, runNode{pkg: t.packages[name]})
		}
		return stack, nil
	}

	stack := make([]runNode, 0, len(include))
	for _, id := range include {
		if pkg, ok := t.packages[id]; ok {
			stack = append(stack, runNode{pkg: pkg})
			continue
		}
		leaf := t.findTest(id)
		if leaf == nil {
			return nil, fmt.Errorf("unknown test node: %s", id)
		}
		stack = append(stack, runNode{leaf: leaf})
	}
	return stack, nil
}

// findTest scans packages in order for a test ID. Caller holds t.mu.
func (t *Tree) findTest(id string) *TestNode {
	for _, name := range t.order {
		pkg := t.packages[name]
		for i := range pkg.Tests {
			if pkg.Tests[i].ID == id {
				return &pkg.Tests[i]
			}
		}
	}
	return nil
}
