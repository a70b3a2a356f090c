package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/engine/buffer"
)

// DefaultPollInterval is how long the polling loop sleeps between polls.
const DefaultPollInterval = 10 * time.Millisecond

// maxDrainReads bounds the reads of one stream in a single poll so a
// chatty server cannot starve dispatch.
const maxDrainReads = 64

// Status is the lifecycle state of a Connection.
type Status int32

const (
	// StatusCreated means the process is running and initialize is pending.
	StatusCreated Status = iota
	// StatusInitialized means the handshake completed.
	StatusInitialized
	// StatusDisconnecting means shutdown has been requested.
	StatusDisconnecting
	// StatusClosed means the process has exited.
	StatusClosed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusInitialized:
		return "initialized"
	case StatusDisconnecting:
		return "disconnecting"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process is the language server process a Connection talks to. Reads
// must not block: they return 0, nil when nothing is available.
type Process interface {
	Write(p []byte) (int, error)
	ReadStdout(p []byte) (int, error)
	ReadStderr(p []byte) (int, error)
	Exited() bool
	Kill() error
	Close() error
}

// Host is the editor side of a connection. Its lock is the editor lock:
// the connection holds it while dispatching messages, and every call
// into a Host or an engine.Document from a connection happens under it.
type Host interface {
	sync.Locker

	// Document returns the open document with the given URI, or nil.
	Document(uri string) *engine.Document

	// DiagnosticsChanged is called after a document's diagnostics were
	// replaced.
	DiagnosticsChanged(doc *engine.Document)

	// ShowMessage displays a message from the server.
	ShowMessage(kind protocol.MessageType, message string)

	// HandleResult receives the decoded result of a request issued
	// through one of the request methods, or its failure.
	HandleResult(r Result)
}

// Result is a decoded response to a request.
type Result struct {
	Language  string
	Method    Method
	RequestID int
	URI       string

	// Value holds the type decodeResult produces for Method, or nil when
	// the server answered null.
	Value any

	// Err is set when the server answered with an error or the answer
	// could not be decoded. Value is nil then.
	Err error
}

type pendingRequest struct {
	method Method
	body   []byte
	uri    string
}

type docState struct {
	opened bool

	// version is the document version last sent in a didChange, or 0
	// until the first change after open has been sent in full.
	version int
}

// Connection is a client connection to one language server process.
//
// A connection is driven by Poll, normally from Run on its own goroutine.
// Lock order is Host before the connection's own lock: methods called by
// the editor with its lock held may take the connection lock, and the
// connection never takes the Host lock while holding its own.
type Connection struct {
	id       string
	language string
	proc     Process
	host     Host
	log      commonlog.Logger

	rootURI     string
	initOptions []byte
	interval    time.Duration

	// decoder and readBuf belong to the polling goroutine.
	decoder *Decoder
	readBuf []byte

	mu         sync.Mutex
	status     Status
	nextID     int
	initID     int
	pending    map[int]pendingRequest
	docs       map[*engine.Document]*docState
	order      []*engine.Document
	settings   []byte
	serverCaps json.RawMessage
	encoding   string

	done chan struct{}
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithRootURI sets the workspace root sent in initialize.
func WithRootURI(uri string) ConnectionOption {
	return func(c *Connection) {
		c.rootURI = uri
	}
}

// WithSettings sets the settings pushed after initialization and served
// to workspace/configuration.
func WithSettings(settings []byte) ConnectionOption {
	return func(c *Connection) {
		c.settings = settings
	}
}

// WithInitializationOptions sets initialize's initializationOptions.
func WithInitializationOptions(opts []byte) ConnectionOption {
	return func(c *Connection) {
		c.initOptions = opts
	}
}

// WithPollInterval sets the sleep between polls in Run.
func WithPollInterval(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewConnection wraps a started language server process. Call Start to
// begin the handshake.
func NewConnection(language string, proc Process, host Host, opts ...ConnectionOption) *Connection {
	c := &Connection{
		id:       uuid.New().String(),
		language: language,
		proc:     proc,
		host:     host,
		interval: DefaultPollInterval,
		decoder:  NewDecoder(),
		readBuf:  make([]byte, 32*1024),
		pending:  make(map[int]pendingRequest),
		docs:     make(map[*engine.Document]*docState),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = commonlog.NewKeyValueLogger(commonlog.GetLogger("quill.lsp"), "language", language, "connection", c.id)
	return c
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string { return c.id }

// Language returns the language the connection serves.
func (c *Connection) Language() string { return c.language }

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Status returns the connection's lifecycle state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// InFlight returns the number of requests awaiting a response.
func (c *Connection) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ServerCapabilities returns the capabilities from the initialize result.
func (c *Connection) ServerCapabilities() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverCaps
}

// ServerPositionEncoding returns the position encoding the server chose
// in its initialize result. Servers that do not say use utf-16.
func (c *Connection) ServerPositionEncoding() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoding
}

// Start sends the initialize request.
func (c *Connection) Start() error {
	params, err := initializeParams(c.rootURI, c.initOptions)
	if err != nil {
		return fmt.Errorf("initialize params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initID != 0 {
		return nil
	}
	id, err := c.requestLocked(MethodInitialize, params, "")
	if err != nil {
		return err
	}
	c.initID = id
	return nil
}

// Disconnect begins the shutdown handshake. The exit notification
// follows the shutdown response.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case StatusClosed, StatusDisconnecting:
		return nil
	case StatusCreated:
		// Exit is the only message allowed before initialize completes.
		c.status = StatusDisconnecting
		return c.notifyLocked(MethodExit, nil)
	}

	if _, err := c.requestLocked(MethodShutdown, nil, ""); err != nil {
		return err
	}
	c.status = StatusDisconnecting
	return nil
}

// Kill terminates the server process without a handshake.
func (c *Connection) Kill() error {
	return c.proc.Kill()
}

// UpdateSettings replaces the server settings and pushes them if the
// connection is initialized.
func (c *Connection) UpdateSettings(settings []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = settings
	if c.status != StatusInitialized || len(settings) == 0 {
		return nil
	}
	return c.notifyLocked(MethodDidChangeConfiguration, protocol.DidChangeConfigurationParams{Settings: json.RawMessage(settings)})
}

// DidOpen attaches doc. The didOpen notification is sent now if the
// connection is initialized, otherwise when it becomes so.
func (c *Connection) DidOpen(doc *engine.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[doc]; ok {
		return
	}
	c.docs[doc] = &docState{}
	c.order = append(c.order, doc)

	if c.status == StatusInitialized {
		c.openLocked(doc)
	}
}

// DidChange sends one didChange carrying every change in order. The
// first change after open resends the whole text instead.
func (c *Connection) DidChange(doc *engine.Document, changes []buffer.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.docs[doc]
	if st == nil || !st.opened || c.status != StatusInitialized {
		return
	}

	var events []any
	if st.version == 0 {
		events = []any{protocol.TextDocumentContentChangeEventWhole{Text: doc.Text()}}
	} else {
		events = make([]any, len(changes))
		for i, ch := range changes {
			r := ToRange(ch.OldSpan)
			events[i] = protocol.TextDocumentContentChangeEvent{Range: &r, Text: string(ch.NewText)}
		}
	}

	params := protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: doc.URI()},
			Version:                protocol.Integer(doc.Version()),
		},
		ContentChanges: events,
	}
	if err := c.notifyLocked(MethodDidChange, params); err != nil {
		c.log.Errorf("didChange %s: %s", doc.URI(), err.Error())
		return
	}
	st.version = doc.Version()
}

// DidClose detaches doc and sends didClose if it had been opened.
func (c *Connection) DidClose(doc *engine.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.docs[doc]
	if st == nil {
		return
	}
	delete(c.docs, doc)
	c.order = slices.DeleteFunc(c.order, func(d *engine.Document) bool { return d == doc })

	if !st.opened || c.status != StatusInitialized {
		return
	}
	params := protocol.DidCloseTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI()}}
	if err := c.notifyLocked(MethodDidClose, params); err != nil {
		c.log.Errorf("didClose %s: %s", doc.URI(), err.Error())
	}
}

// Documents returns the attached documents in attach order.
func (c *Connection) Documents() []*engine.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

func (c *Connection) openLocked(doc *engine.Document) {
	st := c.docs[doc]
	if st == nil || st.opened {
		return
	}
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        doc.URI(),
			LanguageID: doc.LanguageID(),
			Version:    protocol.Integer(doc.Version()),
			Text:       doc.Text(),
		},
	}
	if err := c.notifyLocked(MethodDidOpen, params); err != nil {
		c.log.Errorf("didOpen %s: %s", doc.URI(), err.Error())
		return
	}
	st.opened = true
	st.version = 0
}

// Run polls until the connection closes or ctx is done. Decode failures
// are logged and polling continues.
func (c *Connection) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Poll(); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			c.log.Errorf("%s", err.Error())
		}
		if c.Status() == StatusClosed {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one iteration of the polling loop: it drains stderr to the
// log, drains stdout into the frame decoder, dispatches every complete
// message under the Host lock, and marks the connection closed if the
// process had exited before the drain. It returns the frames and
// messages that failed to decode, joined, or ErrClosed once closed.
func (c *Connection) Poll() error {
	if c.Status() == StatusClosed {
		return ErrClosed
	}
	exited := c.proc.Exited()

	c.drainStderr()
	c.drainStdout()

	var errs []error
	var msgs []Message
	for {
		body, err := c.decoder.Next()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if body == nil {
			break
		}
		msg, err := DecodeMessage(body)
		if err != nil {
			errs = append(errs, &FrameError{Raw: body, Err: err})
			continue
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) > 0 {
		c.dispatchAll(msgs)
	}

	if exited {
		c.markClosed()
	}
	return errors.Join(errs...)
}

func (c *Connection) drainStdout() {
	for range maxDrainReads {
		n, err := c.proc.ReadStdout(c.readBuf)
		if n > 0 {
			c.decoder.Feed(c.readBuf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debugf("stdout: %s", err.Error())
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

func (c *Connection) drainStderr() {
	for range maxDrainReads {
		n, err := c.proc.ReadStderr(c.readBuf)
		if n > 0 {
			c.log.Debugf("stderr: %s", bytes.TrimSpace(c.readBuf[:n]))
		}
		if err != nil || n == 0 {
			return
		}
	}
}

func (c *Connection) markClosed() {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	c.status = StatusClosed
	dropped := len(c.pending)
	c.pending = make(map[int]pendingRequest)
	c.mu.Unlock()

	_ = c.proc.Close()
	close(c.done)
	c.log.Noticef("server exited (%d requests unanswered)", dropped)
}

func (c *Connection) dispatchAll(msgs []Message) {
	c.host.Lock()
	defer c.host.Unlock()

	for _, msg := range msgs {
		c.dispatch(msg)
	}
}

// dispatch handles one message. A panic while handling it is logged
// and does not stop the messages after it.
func (c *Connection) dispatch(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Criticalf("panic handling %T: %v\n%s", msg, r, debug.Stack())
		}
	}()

	switch m := msg.(type) {
	case *Response:
		c.handleResponse(m)
	case *Notification:
		c.handleNotification(m)
	case *Request:
		c.handleRequest(m)
	}
}

func (c *Connection) handleResponse(resp *Response) {
	c.mu.Lock()
	req, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debugf("ignoring response to unknown request %d", resp.ID)
		return
	}

	if req.method == MethodShutdown {
		c.mu.Lock()
		err := c.notifyLocked(MethodExit, nil)
		c.mu.Unlock()
		if err != nil {
			c.log.Errorf("exit: %s", err.Error())
		}
		return
	}

	result := Result{
		Language:  c.language,
		Method:    req.method,
		RequestID: resp.ID,
		URI:       req.uri,
	}

	if resp.Error != nil {
		c.log.Warningf("%s failed: %s", req.method, resp.Error.Error())
		if req.method != MethodInitialize {
			result.Err = resp.Error
			c.host.HandleResult(result)
		}
		return
	}

	if req.method == MethodInitialize {
		c.handleInitialized(resp.Result)
		return
	}

	result.Value, result.Err = decodeResult(req.method, resp.Result)
	if result.Err != nil {
		c.log.Errorf("%s: %s: %q", req.method, result.Err.Error(), truncate(resp.Result, 256))
		result.Value = nil
	}
	c.host.HandleResult(result)
}

func (c *Connection) handleInitialized(result json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusCreated {
		return
	}
	c.status = StatusInitialized
	caps := gjson.GetBytes(result, "capabilities")
	if caps.Exists() {
		c.serverCaps = json.RawMessage(caps.Raw)
	}
	c.encoding = caps.Get("positionEncoding").String()
	if c.encoding == "" {
		c.encoding = "utf-16"
	}
	if c.encoding != PositionEncoding {
		c.log.Warningf("server uses %s positions; columns after characters outside the BMP will be off", c.encoding)
	}

	if err := c.notifyLocked(MethodInitialized, struct{}{}); err != nil {
		c.log.Errorf("initialized: %s", err.Error())
	}
	for _, doc := range c.order {
		c.openLocked(doc)
	}
	if len(c.settings) > 0 {
		params := protocol.DidChangeConfigurationParams{Settings: json.RawMessage(c.settings)}
		if err := c.notifyLocked(MethodDidChangeConfiguration, params); err != nil {
			c.log.Errorf("didChangeConfiguration: %s", err.Error())
		}
	}
	c.log.Infof("initialized with %d documents", len(c.order))
}

// attached returns the attached document with the given URI.
func (c *Connection) attached(uri string) *engine.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.order {
		if doc.URI() == uri {
			return doc
		}
	}
	return nil
}

func (c *Connection) handleNotification(n *Notification) {
	switch p := n.Params.(type) {
	case *protocol.PublishDiagnosticsParams:
		doc := c.attached(p.URI)
		if doc == nil {
			c.log.Debugf("diagnostics for unattached %s", p.URI)
			return
		}
		doc.SetDiagnostics(convertDiagnostics(p.Diagnostics))
		c.host.DiagnosticsChanged(doc)

	case *protocol.LogMessageParams:
		switch p.Type {
		case protocol.MessageTypeError:
			c.log.Errorf("server: %s", p.Message)
		case protocol.MessageTypeWarning:
			c.log.Warningf("server: %s", p.Message)
		case protocol.MessageTypeInfo:
			c.log.Infof("server: %s", p.Message)
		default:
			c.log.Debugf("server: %s", p.Message)
		}

	case *protocol.ShowMessageParams:
		c.host.ShowMessage(p.Type, p.Message)

	default:
		c.log.Debugf("unhandled notification %s", n.Name)
	}
}

func (c *Connection) handleRequest(req *Request) {
	var result any
	var rpcErr *RPCError

	switch p := req.Params.(type) {
	case *ApplyEditParams:
		resp := protocol.ApplyWorkspaceEditResponse{Applied: true}
		if err := ApplyWorkspaceEdit(c.host, p.Edit); err != nil {
			reason := err.Error()
			resp.Applied = false
			resp.FailureReason = &reason
			c.log.Warningf("applyEdit %q: %s", p.Label, reason)
		}
		result = resp

	case *protocol.ConfigurationParams:
		result = c.configuration(p.Items)

	default:
		switch req.Method {
		case MethodWorkDoneProgressCreate, MethodRegisterCapability:
			result = nil
		default:
			rpcErr = &RPCError{Code: CodeMethodNotFound, Message: "method not supported: " + req.Name}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var body []byte
	var err error
	if rpcErr != nil {
		body, err = encodeError(req.ID, rpcErr)
	} else {
		body, err = encodeResult(req.ID, result)
	}
	if err == nil {
		err = c.writeLocked(body)
	}
	if err != nil {
		c.log.Errorf("reply to %s: %s", req.Name, err.Error())
	}
}

// configuration answers workspace/configuration from the settings,
// one entry per requested section.
func (c *Connection) configuration(items []protocol.ConfigurationItem) []json.RawMessage {
	c.mu.Lock()
	settings := c.settings
	c.mu.Unlock()

	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = json.RawMessage("null")
		if len(settings) == 0 {
			continue
		}
		if item.Section == nil || *item.Section == "" {
			out[i] = json.RawMessage(settings)
			continue
		}
		if v := gjson.GetBytes(settings, *item.Section); v.Exists() {
			out[i] = json.RawMessage(v.Raw)
		}
	}
	return out
}

// ApplyWorkspaceEdit applies a workspace edit to the host's open
// documents, each document's edits as one changelist. Every target must
// be open and every document's edits valid before anything is applied.
// The Host lock must be held.
func ApplyWorkspaceEdit(host Host, edit WorkspaceEdit) error {
	docs := make([]*engine.Document, len(edit))
	for i, de := range edit {
		docs[i] = host.Document(de.URI)
		if docs[i] == nil {
			return fmt.Errorf("%w: %s", ErrDocumentNotOpen, de.URI)
		}
		if err := docs[i].ValidateTextEdits(de.Edits); err != nil {
			return fmt.Errorf("%s: %w", de.URI, err)
		}
	}
	for i, de := range edit {
		if err := docs[i].ApplyTextEdits(de.Edits); err != nil {
			return fmt.Errorf("%s: %w", de.URI, err)
		}
	}
	return nil
}

func (c *Connection) requestLocked(m Method, params any, uri string) (int, error) {
	switch c.status {
	case StatusClosed, StatusDisconnecting:
		return 0, ErrClosed
	case StatusCreated:
		if m != MethodInitialize {
			return 0, ErrNotConnected
		}
	}

	id := c.nextID + 1
	body, err := encodeRequest(id, m, params)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", m, err)
	}
	if err := c.writeLocked(body); err != nil {
		return 0, err
	}
	c.nextID = id
	c.pending[id] = pendingRequest{method: m, body: body, uri: uri}
	return id, nil
}

func (c *Connection) notifyLocked(m Method, params any) error {
	switch c.status {
	case StatusClosed:
		return ErrClosed
	case StatusCreated, StatusDisconnecting:
		if m != MethodExit {
			return ErrNotConnected
		}
	}

	body, err := encodeNotification(m, params)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m, err)
	}
	return c.writeLocked(body)
}

func (c *Connection) writeLocked(body []byte) error {
	if _, err := c.proc.Write(EncodeFrame(body)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
