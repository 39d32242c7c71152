package client

import (
	"encoding/json"
	"fmt"
)

// TestCapabilities is the experimental capability block nargo's language
// server advertises when it can serve the test protocol.
type TestCapabilities struct {
	Fetch  bool `json:"fetch"`
	Run    bool `json:"run"`
	Update bool `json:"update"`
}

// ServerCapabilities holds the subset of the initialize response the
// bridge acts on. Standard capabilities are kept opaque; only the
// experimental extensions are interpreted here.
type ServerCapabilities struct {
	Tests *TestCapabilities
	// Raw is the full capabilities object for pass-through consumers.
	Raw json.RawMessage
}

// parseCapabilities extracts the capability block from an initialize
// response.
func parseCapabilities(response json.RawMessage) (ServerCapabilities, error) {
	var initResponse struct {
		Capabilities json.RawMessage `json:"capabilities"`
	}
	if err := json.Unmarshal(response, &initResponse); err != nil {
		return ServerCapabilities{}, fmt.Errorf("failed to unmarshal initialize response: %w", err)
	}

	caps := ServerCapabilities{Raw: initResponse.Capabilities}

	var experimental struct {
		Experimental struct {
			Tests *TestCapabilities `json:"tests"`
		} `json:"experimental"`
	}
	// A server without the experimental block is still a valid server;
	// the tests extension just stays disabled.
	if err := json.Unmarshal(initResponse.Capabilities, &experimental); err == nil {
		caps.Tests = experimental.Experimental.Tests
	}

	return caps, nil
}

// SupportsTests reports whether the server can both list and run tests.
func (c ServerCapabilities) SupportsTests() bool {
	return c.Tests != nil && c.Tests.Fetch && c.Tests.Run
}
