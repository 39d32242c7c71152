package client

import (
	"context"
	"fmt"
)

// ProfileFile is one source file referenced by a profile result.
type ProfileFile struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// OpcodeSpan is a half-open byte span inside one profiled file.
type OpcodeSpan struct {
	Start  uint32 `json:"start"`
	End    uint32 `json:"end"`
	FileID string `json:"file_id"`
}

// OpcodeCount pairs a source span with the number of opcodes it compiles
// to.
type OpcodeCount struct {
	Span  OpcodeSpan `json:"span"`
	Count int        `json:"count"`
}

// ProfileResult is the payload of a profile/run response. It is relayed
// to the presentation layer untouched.
type ProfileResult struct {
	FileMap      map[string]ProfileFile `json:"file_map"`
	OpcodeCounts []OpcodeCount          `json:"opcodes_counts"`
}

type profileRunParams struct {
	Package string `json:"package"`
}

// RunProfile asks the server to compile the package and report per-span
// opcode counts.
func (c *Client) RunProfile(ctx context.Context, pkg string) (*ProfileResult, error) {
	var result ProfileResult
	if err := c.Call(ctx, MethodProfileRun, profileRunParams{Package: pkg}, &result); err != nil {
		return nil, fmt.Errorf("profile run failed for package %s: %w", pkg, err)
	}
	return &result, nil
}
