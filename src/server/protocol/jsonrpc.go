// Package protocol implements JSON-RPC 2.0 framing for the stdio
// connection to nargo's language server.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nargo-bridge/src/internal/common"
)

const (
	JSONRPCVersion = "2.0"

	// Large enough for full test-tree responses on big workspaces.
	responseBufferSize = 1024 * 1024
)

// JSON-RPC error codes
const (
	ParseError     = -32700 // Invalid JSON was received
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist / is not available
	InvalidParams  = -32602 // Invalid method parameter(s)
	InternalError  = -32603 // Internal JSON-RPC error
)

// Message represents a JSON-RPC 2.0 message
type Message struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  interface{} `json:"params,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MessageHandler routes the three JSON-RPC message kinds arriving from
// the server.
type MessageHandler interface {
	HandleRequest(method string, id interface{}, params json.RawMessage) error
	HandleResponse(id interface{}, result json.RawMessage, err *RPCError) error
	HandleNotification(method string, params json.RawMessage) error
}

// Conn frames messages for one server connection.
type Conn struct {
	name string // connection identifier for logging context
}

func NewConn(name string) *Conn {
	return &Conn{name: name}
}

// WriteMessage sends a JSON-RPC message with Content-Length framing.
func (c *Conn) WriteMessage(writer io.Writer, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	content := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(data), data)
	_, err = writer.Write([]byte(content))
	return err
}

// ReadLoop processes server messages until EOF, a read error, or stopCh.
func (c *Conn) ReadLoop(reader io.Reader, handler MessageHandler, stopCh <-chan struct{}) error {
	bufReader := bufio.NewReaderSize(reader, responseBufferSize)

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}

		var contentLength int
		for {
			line, err := bufReader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// EOF is expected during shutdown
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				// Empty line indicates end of headers
				break
			}

			if strings.HasPrefix(line, "Content-Length:") {
				lengthStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
				length, err := strconv.Atoi(lengthStr)
				if err != nil {
					common.ClientLogger.Debug("Failed to parse Content-Length: %s", lengthStr)
					continue
				}
				contentLength = length
			}
		}

		if contentLength > 0 {
			body := make([]byte, contentLength)
			if _, err := io.ReadFull(bufReader, body); err != nil {
				return err
			}

			if err := c.HandleMessage(body, handler); err != nil {
				common.ClientLogger.Error("Error handling message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// HandleMessage routes a single raw JSON-RPC message.
func (c *Conn) HandleMessage(data []byte, handler MessageHandler) error {
	var msg struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
		Result  json.RawMessage `json:"result"`
		Error   *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		common.ClientLogger.Error("Failed to unmarshal JSON from %s: %v", c.name, err)
		return err
	}

	// Server-initiated messages carry a method; responses carry only an ID.
	if msg.Method != "" {
		if msg.ID != nil {
			common.ClientLogger.Debug("Received server request: method=%s, id=%v from %s", msg.Method, msg.ID, c.name)
			return handler.HandleRequest(msg.Method, msg.ID, msg.Params)
		}
		common.ClientLogger.Debug("Received server notification: method=%s from %s", msg.Method, c.name)
		return handler.HandleNotification(msg.Method, msg.Params)
	}
	if msg.ID != nil {
		if msg.Error != nil {
			common.ClientLogger.Warn("Response contains error: id=%v, error=%v", msg.ID, msg.Error)
		}
		return handler.HandleResponse(msg.ID, msg.Result, msg.Error)
	}

	common.ClientLogger.Warn("Received malformed message (no ID and no method) from %s", c.name)
	return fmt.Errorf("malformed JSON-RPC message: no ID and no method")
}

// NewRequest creates a JSON-RPC request message
func NewRequest(method string, id interface{}, params interface{}) Message {
	return Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification creates a JSON-RPC notification (no ID)
func NewNotification(method string, params interface{}) Message {
	return Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// NewResponse creates a JSON-RPC response message
func NewResponse(id interface{}, result interface{}, err *RPCError) Message {
	return Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
		Error:   err,
	}
}

// NewRPCError creates an RPCError with the specified code and message
func NewRPCError(code int, message string, data interface{}) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewMethodNotFoundError creates a method not found error (-32601)
func NewMethodNotFoundError(data interface{}) *RPCError {
	return NewRPCError(MethodNotFound, "Method not found", data)
}
