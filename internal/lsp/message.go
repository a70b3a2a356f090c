package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Method is a protocol method the client knows how to send or handle.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodShutdown
	MethodExit
	MethodDidOpen
	MethodDidChange
	MethodDidClose
	MethodDidChangeConfiguration
	MethodHover
	MethodDefinition
	MethodReferences
	MethodRename
	MethodFormatting
	MethodCodeAction
	MethodCompletion
	MethodPublishDiagnostics
	MethodLogMessage
	MethodShowMessage
	MethodApplyEdit
	MethodConfiguration
	MethodWorkDoneProgressCreate
	MethodRegisterCapability
)

var methodNames = [...]string{
	MethodUnknown:                "",
	MethodInitialize:             protocol.MethodInitialize,
	MethodInitialized:            protocol.MethodInitialized,
	MethodShutdown:               protocol.MethodShutdown,
	MethodExit:                   protocol.MethodExit,
	MethodDidOpen:                protocol.MethodTextDocumentDidOpen,
	MethodDidChange:              protocol.MethodTextDocumentDidChange,
	MethodDidClose:               protocol.MethodTextDocumentDidClose,
	MethodDidChangeConfiguration: protocol.MethodWorkspaceDidChangeConfiguration,
	MethodHover:                  protocol.MethodTextDocumentHover,
	MethodDefinition:             protocol.MethodTextDocumentDefinition,
	MethodReferences:             protocol.MethodTextDocumentReferences,
	MethodRename:                 protocol.MethodTextDocumentRename,
	MethodFormatting:             protocol.MethodTextDocumentFormatting,
	MethodCodeAction:             protocol.MethodTextDocumentCodeAction,
	MethodCompletion:             protocol.MethodTextDocumentCompletion,
	MethodPublishDiagnostics:     protocol.ServerTextDocumentPublishDiagnostics,
	MethodLogMessage:             protocol.ServerWindowLogMessage,
	MethodShowMessage:            protocol.ServerWindowShowMessage,
	MethodApplyEdit:              protocol.ServerWorkspaceApplyEdit,
	MethodConfiguration:          protocol.ServerWorkspaceConfiguration,
	MethodWorkDoneProgressCreate: protocol.ServerWindowWorkDoneProgressCreate,
	MethodRegisterCapability:     protocol.ServerClientRegisterCapability,
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for i, name := range methodNames {
		if name != "" {
			m[name] = Method(i)
		}
	}
	return m
}()

// String returns the wire name of the method.
func (m Method) String() string {
	if m > MethodUnknown && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "unknown"
}

// ParseMethod resolves a wire method name. Unsupported names yield
// MethodUnknown.
func ParseMethod(name string) Method {
	return methodsByName[name]
}

// Message is a decoded JSON-RPC message: *Response, *Notification or
// *Request.
type Message interface {
	isMessage()
}

// Response answers a request this client sent.
type Response struct {
	// ID is the request id, or -1 when the server sent one this client
	// could not have issued.
	ID     int
	Result json.RawMessage
	Error  *RPCError
}

// Notification is a server message that expects no reply.
type Notification struct {
	Method Method
	Name   string

	// Params is the typed payload for Method:
	//   MethodPublishDiagnostics  *protocol.PublishDiagnosticsParams
	//   MethodLogMessage          *protocol.LogMessageParams
	//   MethodShowMessage         *protocol.ShowMessageParams
	// and the raw params for anything else.
	Params any

	// Raw holds the undecoded params.
	Raw json.RawMessage
}

// Request is a server message that expects a reply.
type Request struct {
	// ID is echoed verbatim in the reply.
	ID     json.RawMessage
	Method Method
	Name   string

	// Params is the typed payload for Method:
	//   MethodApplyEdit      *ApplyEditParams
	//   MethodConfiguration  *protocol.ConfigurationParams
	// and the raw params for anything else.
	Params any

	// Raw holds the undecoded params.
	Raw json.RawMessage
}

func (*Response) isMessage()     {}
func (*Notification) isMessage() {}
func (*Request) isMessage()      {}

// ApplyEditParams is the payload of workspace/applyEdit.
type ApplyEditParams struct {
	Label string
	Edit  WorkspaceEdit
}

// DecodeMessage classifies a frame body and decodes its payload. Errors
// wrap ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedMessage)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedMessage)
	}

	id := root.Get("id")
	method := root.Get("method")

	switch {
	case method.Exists() && id.Exists():
		req := &Request{
			ID:     json.RawMessage(id.Raw),
			Name:   method.String(),
			Method: ParseMethod(method.String()),
			Raw:    json.RawMessage(root.Get("params").Raw),
		}
		params, err := decodeRequestParams(req.Method, root.Get("params"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s params: %v", ErrMalformedMessage, req.Name, err)
		}
		req.Params = params
		return req, nil

	case method.Exists():
		n := &Notification{
			Name:   method.String(),
			Method: ParseMethod(method.String()),
			Raw:    json.RawMessage(root.Get("params").Raw),
		}
		params, err := decodeNotificationParams(n.Method, root.Get("params"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s params: %v", ErrMalformedMessage, n.Name, err)
		}
		n.Params = params
		return n, nil

	case id.Exists():
		resp := &Response{ID: -1}
		if id.Type == gjson.Number {
			resp.ID = int(id.Int())
		}
		if e := root.Get("error"); e.Exists() && e.Type != gjson.Null {
			resp.Error = &RPCError{}
			if err := json.Unmarshal([]byte(e.Raw), resp.Error); err != nil {
				return nil, fmt.Errorf("%w: error object: %v", ErrMalformedMessage, err)
			}
		}
		if r := root.Get("result"); r.Exists() {
			resp.Result = json.RawMessage(r.Raw)
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: neither id nor method", ErrMalformedMessage)
}

func decodeNotificationParams(m Method, params gjson.Result) (any, error) {
	switch m {
	case MethodPublishDiagnostics:
		var p protocol.PublishDiagnosticsParams
		if err := json.Unmarshal([]byte(params.Raw), &p); err != nil {
			return nil, err
		}
		return &p, nil
	case MethodLogMessage:
		var p protocol.LogMessageParams
		if err := json.Unmarshal([]byte(params.Raw), &p); err != nil {
			return nil, err
		}
		return &p, nil
	case MethodShowMessage:
		var p protocol.ShowMessageParams
		if err := json.Unmarshal([]byte(params.Raw), &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return json.RawMessage(params.Raw), nil
}

func decodeRequestParams(m Method, params gjson.Result) (any, error) {
	switch m {
	case MethodApplyEdit:
		edit, err := decodeWorkspaceEdit(params.Get("edit"))
		if err != nil {
			return nil, err
		}
		return &ApplyEditParams{Label: params.Get("label").String(), Edit: edit}, nil
	case MethodConfiguration:
		var p protocol.ConfigurationParams
		if err := json.Unmarshal([]byte(params.Raw), &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return json.RawMessage(params.Raw), nil
}

type outgoingRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type outgoingNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type outgoingResult struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type outgoingError struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *RPCError       `json:"error"`
}

func encodeRequest(id int, m Method, params any) ([]byte, error) {
	return json.Marshal(outgoingRequest{JSONRPC: "2.0", ID: id, Method: m.String(), Params: params})
}

func encodeNotification(m Method, params any) ([]byte, error) {
	return json.Marshal(outgoingNotification{JSONRPC: "2.0", Method: m.String(), Params: params})
}

func encodeResult(id json.RawMessage, result any) ([]byte, error) {
	return json.Marshal(outgoingResult{JSONRPC: "2.0", ID: id, Result: result})
}

func encodeError(id json.RawMessage, rpcErr *RPCError) ([]byte, error) {
	return json.Marshal(outgoingError{JSONRPC: "2.0", ID: id, Error: rpcErr})
}
