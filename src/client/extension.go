package client

// Extension hooks a capability-gated feature into the client lifecycle.
// Plain function fields, not a registered object method set: a nil field
// is simply skipped.
type Extension struct {
	// Name identifies the extension in logs.
	Name string
	// OnCapabilitiesNegotiated runs after the initialize handshake. An
	// error disables the extension but does not fail the client.
	OnCapabilitiesNegotiated func(caps ServerCapabilities) error
	// OnDispose runs during client shutdown, before the server exits.
	OnDispose func()
}
