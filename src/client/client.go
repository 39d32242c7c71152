// Package client maintains the language-client connection to `nargo lsp`
// and the capability-gated extensions layered on top of it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	lsp "go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"nargo-bridge/src/internal/common"
	"nargo-bridge/src/server/protocol"
)

// Standard lifecycle methods plus the nargo-specific extension methods.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"

	MethodTests       = "tests"
	MethodTestsRun    = "tests/run"
	MethodTestsUpdate = "tests/update"
	MethodProfileRun  = "profile/run"
)

// ErrClientStopped is returned for requests issued after shutdown or
// after the server connection was lost.
var ErrClientStopped = errors.New("language client stopped")

// NotificationHandler consumes one server-pushed notification payload.
type NotificationHandler func(params json.RawMessage)

// Options configures a client connection.
type Options struct {
	// NargoPath is the resolved nargo binary.
	NargoPath string
	// ExtraFlags are appended to the `nargo lsp` invocation.
	ExtraFlags []string
	// WorkspaceRoot is the workspace the server is initialized against.
	WorkspaceRoot string
	// EnableCodeLens is forwarded in initializationOptions.
	EnableCodeLens bool
}

type pendingRequest struct {
	respCh chan responseEnvelope
}

type responseEnvelope struct {
	result json.RawMessage
	err    *protocol.RPCError
}

// Client is the editor-side half of the language-server connection.
type Client struct {
	opts Options
	conn *protocol.Conn
	proc *processInfo

	stopCh   chan struct{}
	stopOnce sync.Once

	nextID  atomic.Int64
	reqMu   sync.RWMutex
	pending map[string]*pendingRequest

	notifMu       sync.RWMutex
	notifHandlers map[string][]NotificationHandler

	extensions []Extension

	writeMu sync.Mutex

	caps ServerCapabilities
}

func NewClient(opts Options) *Client {
	return &Client{
		opts:          opts,
		conn:          protocol.NewConn("nargo"),
		stopCh:        make(chan struct{}),
		pending:       map[string]*pendingRequest{},
		notifHandlers: map[string][]NotificationHandler{},
	}
}

// RegisterExtension adds an extension before Start. Extensions are
// notified in registration order after the initialize handshake.
func (c *Client) RegisterExtension(ext Extension) {
	c.extensions = append(c.extensions, ext)
}

// OnNotification registers a handler for a server notification method.
func (c *Client) OnNotification(method string, handler NotificationHandler) {
	c.notifMu.Lock()
	defer c.notifMu.Unlock()
	c.notifHandlers[method] = append(c.notifHandlers[method], handler)
}

// Capabilities returns the negotiated server capabilities. Valid after
// Start returns.
func (c *Client) Capabilities() ServerCapabilities {
	return c.caps
}

// Start spawns the server process and performs the initialize handshake.
func (c *Client) Start(ctx context.Context) error {
	proc, err := startProcess(c.opts.NargoPath, c.opts.ExtraFlags, c.opts.WorkspaceRoot)
	if err != nil {
		return err
	}
	c.proc = proc

	go c.readLoop()

	if err := c.initialize(ctx); err != nil {
		c.shutdownProcess()
		return err
	}

	for _, ext := range c.extensions {
		if ext.OnCapabilitiesNegotiated == nil {
			continue
		}
		if err := ext.OnCapabilitiesNegotiated(c.caps); err != nil {
			common.ClientLogger.Warn("Extension %s disabled: %v", ext.Name, err)
		}
	}
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	params := lsp.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   uri.File(c.opts.WorkspaceRoot),
		InitializationOptions: map[string]interface{}{
			"enableCodeLens": c.opts.EnableCodeLens,
		},
		Capabilities: lsp.ClientCapabilities{},
	}

	result, err := c.SendRequest(ctx, MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize handshake failed: %w", err)
	}

	caps, err := parseCapabilities(result)
	if err != nil {
		return err
	}
	c.caps = caps

	if err := c.Notify(MethodInitialized, struct{}{}); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}

	common.ClientLogger.Info("Language server initialized (tests=%v)", caps.SupportsTests())
	return nil
}

// SendRequest performs one request round trip and returns the raw result.
func (c *Client) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	select {
	case <-c.stopCh:
		return nil, ErrClientStopped
	default:
	}

	id := c.nextID.Add(1)
	idStr := fmt.Sprintf("%v", id)
	req := &pendingRequest{respCh: make(chan responseEnvelope, 1)}

	c.reqMu.Lock()
	c.pending[idStr] = req
	c.reqMu.Unlock()
	defer func() {
		c.reqMu.Lock()
		delete(c.pending, idStr)
		c.reqMu.Unlock()
	}()

	if err := c.write(protocol.NewRequest(method, id, params)); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopCh:
		return nil, ErrClientStopped
	case env := <-req.respCh:
		if env.err != nil {
			return nil, env.err
		}
		return env.result, nil
	}
}

// Call performs a request round trip and unmarshals the result into out.
// A nil out discards the result.
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	result, err := c.SendRequest(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// Notify sends a notification (no response expected).
func (c *Client) Notify(method string, params interface{}) error {
	return c.write(protocol.NewNotification(method, params))
}

func (c *Client) write(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.proc == nil || c.proc.stdin == nil {
		return ErrClientStopped
	}
	return c.conn.WriteMessage(c.proc.stdin, msg)
}

func (c *Client) readLoop() {
	err := c.conn.ReadLoop(c.proc.stdout, (*clientHandler)(c), c.stopCh)
	if err != nil {
		common.ClientLogger.Error("Server connection lost: %v", err)
	}
	c.failPending()
}

// failPending closes the stop channel so in-flight and future requests
// return ErrClientStopped instead of blocking forever.
func (c *Client) failPending() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Wait blocks until the server connection ends, either through Stop or
// because the server process exited.
func (c *Client) Wait() {
	<-c.stopCh
}

// Stop disposes extensions, runs the shutdown sequence, and reaps the
// server process.
func (c *Client) Stop() {
	for i := len(c.extensions) - 1; i >= 0; i-- {
		if c.extensions[i].OnDispose != nil {
			c.extensions[i].OnDispose()
		}
	}
	c.shutdownProcess()
}

func (c *Client) shutdownProcess() {
	if c.proc == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	c.SendRequest(shutdownCtx, MethodShutdown, nil)
	cancel()
	c.Notify(MethodExit, nil)

	c.failPending()
	c.proc.stop()
}

// clientHandler adapts Client to protocol.MessageHandler without
// exporting the handler methods on the client API.
type clientHandler Client

func (h *clientHandler) HandleRequest(method string, id interface{}, params json.RawMessage) error {
	// The bridge serves no server-to-client requests; answer so the
	// server is not left waiting on the ID.
	c := (*Client)(h)
	common.ClientLogger.Debug("Rejecting server request %s", method)
	return c.write(protocol.NewResponse(id, nil, protocol.NewMethodNotFoundError(method)))
}

func (h *clientHandler) HandleResponse(id interface{}, result json.RawMessage, rpcErr *protocol.RPCError) error {
	c := (*Client)(h)
	idStr := fmt.Sprintf("%v", id)

	c.reqMu.RLock()
	req, exists := c.pending[idStr]
	c.reqMu.RUnlock()
	if !exists {
		common.ClientLogger.Warn("No matching request found for response: id=%s", idStr)
		return nil
	}

	select {
	case req.respCh <- responseEnvelope{result: result, err: rpcErr}:
	case <-c.stopCh:
		common.ClientLogger.Warn("Client stopped when trying to deliver response: id=%s", idStr)
	}
	return nil
}

func (h *clientHandler) HandleNotification(method string, params json.RawMessage) error {
	c := (*Client)(h)
	c.notifMu.RLock()
	handlers := c.notifHandlers[method]
	c.notifMu.RUnlock()

	if len(handlers) == 0 {
		common.ClientLogger.Debug("Unhandled notification: %s", method)
		return nil
	}
	for _, handler := range handlers {
		handler(params)
	}
	return nil
}
