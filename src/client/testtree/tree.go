// Package testtree mirrors the language server's notion of packages
// containing tests and proxies test execution requests.
package testtree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	lsp "go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"nargo-bridge/src/client"
	"nargo-bridge/src/internal/common"
)

// TestNode is one runnable test. IDs are server-assigned and unique
// within their package.
type TestNode struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	URI   uri.URI   `json:"uri"`
	Range lsp.Range `json:"range"`
}

// PackageTests is one package's test snapshot as pushed by the server.
type PackageTests struct {
	Package string     `json:"package"`
	URI     uri.URI    `json:"uri"`
	Tests   []TestNode `json:"tests,omitempty"`
}

// Verdict is a per-test run outcome.
type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictFail  Verdict = "fail"
	VerdictError Verdict = "error"
)

// RunResult is the response of one tests/run round trip.
type RunResult struct {
	ID      string  `json:"id"`
	Result  Verdict `json:"result"`
	Message string  `json:"message,omitempty"`
}

// Reporter receives run verdicts as they arrive.
type Reporter interface {
	Passed(id, message string)
	Failed(id, message string)
	Errored(id, message string)
}

// Invalidator discards previously reported results for a package. Hosts
// without result invalidation simply don't provide one.
type Invalidator interface {
	InvalidateResults(pkg string)
}

// Caller performs request round trips against the server.
type Caller interface {
	Call(ctx context.Context, method string, params interface{}, out interface{}) error
}

// State tracks the synchronizer lifecycle.
type State int

const (
	// Uninitialized: test support not (yet) advertised by the server.
	Uninitialized State = iota
	// Idle: handlers registered, tree stable.
	Idle
	// Fetching: a full-tree request is in flight.
	Fetching
)

// ErrNotSupported is returned when the server never advertised test
// support.
var ErrNotSupported = errors.New("server does not support the test protocol")

// Tree is the synchronized package → test hierarchy.
type Tree struct {
	caller      Caller
	invalidator Invalidator

	mu       sync.Mutex
	state    State
	order    []string
	packages map[string]*PackageTests
}

func NewTree(caller Caller) *Tree {
	return &Tree{
		caller:   caller,
		packages: map[string]*PackageTests{},
	}
}

// SetInvalidator provides the optional result-invalidation hook.
func (t *Tree) SetInvalidator(inv Invalidator) {
	t.invalidator = inv
}

// Attach builds a Tree wired into c as a capability-gated extension:
// the tree activates only if the negotiated capabilities advertise test
// support, and update notifications rebuild package subtrees as they
// arrive.
func Attach(c *client.Client) *Tree {
	t := NewTree(c)
	c.RegisterExtension(client.Extension{
		Name: "testtree",
		OnCapabilitiesNegotiated: func(caps client.ServerCapabilities) error {
			if !caps.SupportsTests() {
				return ErrNotSupported
			}
			t.Enable()
			if caps.Tests.Update {
				c.OnNotification(client.MethodTestsUpdate, t.handleUpdate)
			}
			return nil
		},
		OnDispose: func() { t.Reset() },
	})
	return t
}

// Enable moves the tree out of Uninitialized once test support has been
// negotiated.
func (t *Tree) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Uninitialized {
		t.state = Idle
	}
}

// State returns the current lifecycle state.
func (t *Tree) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset drops all packages and returns to Uninitialized.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Uninitialized
	t.order = nil
	t.packages = map[string]*PackageTests{}
}

// Fetch populates the whole tree from a `tests` request. Lazy: hosts call
// it on first expand or explicit refresh, not on startup.
func (t *Tree) Fetch(ctx context.Context) error {
	t.mu.Lock()
	if t.state == Uninitialized {
		t.mu.Unlock()
		return ErrNotSupported
	}
	t.state = Fetching
	t.mu.Unlock()

	var snapshot []PackageTests
	err := t.caller.Call(ctx, client.MethodTests, nil, &snapshot)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	if err != nil {
		return fmt.Errorf("test discovery failed: %w", err)
	}

	t.order = t.order[:0]
	t.packages = map[string]*PackageTests{}
	for i := range snapshot {
		pkg := snapshot[i]
		t.order = append(t.order, pkg.Package)
		t.packages[pkg.Package] = &pkg
	}
	common.ClientLogger.Debug("Fetched %d test packages", len(snapshot))
	return nil
}

// ApplyUpdate replaces one package's subtree wholesale. Tests absent
// from the snapshot are dropped, not merged; their prior results are
// invalidated when an Invalidator is configured.
func (t *Tree) ApplyUpdate(update PackageTests) {
	if t.invalidator != nil {
		t.invalidator.InvalidateResults(update.Package)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, known := t.packages[update.Package]; !known {
		t.order = append(t.order, update.Package)
	}
	t.packages[update.Package] = &update
}

func (t *Tree) handleUpdate(params json.RawMessage) {
	var update PackageTests
	if err := json.Unmarshal(params, &update); err != nil {
		common.ClientLogger.Error("Malformed tests/update notification: %v", err)
		return
	}
	t.ApplyUpdate(update)
}

// Packages returns the packages in insertion order.
func (t *Tree) Packages() []PackageTests {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PackageTests, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.packages[name])
	}
	return out
}

// Package returns one package snapshot, if present.
func (t *Tree) Package(name string) (PackageTests, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pkg, ok := t.packages[name]
	if !ok {
		return PackageTests{}, false
	}
	return *pkg, true
}
