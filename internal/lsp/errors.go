package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard errors returned by the protocol client.
var (
	// ErrSpawn indicates the language server process could not be started.
	ErrSpawn = errors.New("spawn language server")

	// ErrMalformedFrame indicates a frame header that cannot be parsed.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrMalformedMessage indicates a complete frame whose body is not a
	// JSON-RPC message.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrNotConnected indicates the connection has not finished the
	// initialize handshake.
	ErrNotConnected = errors.New("language server not initialized")

	// ErrClosed indicates the connection is disconnecting or closed.
	ErrClosed = errors.New("connection closed")

	// ErrNoServer indicates no server is configured for the language.
	ErrNoServer = errors.New("no server configured for language")

	// ErrDocumentNotOpen indicates the document is not open on the
	// connection or in the editor.
	ErrDocumentNotOpen = errors.New("document not open")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeRequestFailed        = -32803
)

// FrameError carries the raw bytes of a frame that failed to decode.
type FrameError struct {
	Raw []byte
	Err error
}

// Error implements the error interface.
func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, truncate(e.Raw, 256))
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error {
	return e.Err
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
