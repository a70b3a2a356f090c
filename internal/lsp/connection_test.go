package lsp

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/engine/buffer"
)

// fakeProcess scripts a server: queued stdout chunks are handed out one
// per read and everything written is kept for inspection.
type fakeProcess struct {
	mu      sync.Mutex
	written []byte
	stdout  [][]byte
	stderr  [][]byte
	exited  bool
	killed  bool
	closed  bool
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, os.ErrClosed
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakeProcess) ReadStdout(b []byte) (int, error) { return p.read(&p.stdout, b) }
func (p *fakeProcess) ReadStderr(b []byte) (int, error) { return p.read(&p.stderr, b) }

func (p *fakeProcess) read(q *[][]byte, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(*q) == 0 {
		return 0, nil
	}
	n := copy(b, (*q)[0])
	if n < len((*q)[0]) {
		(*q)[0] = (*q)[0][n:]
	} else {
		*q = (*q)[1:]
	}
	return n, nil
}

func (p *fakeProcess) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	p.exited = true
	return nil
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// send queues a raw chunk on stdout.
func (p *fakeProcess) send(chunk string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stdout = append(p.stdout, []byte(chunk))
}

// reply queues one framed message on stdout.
func (p *fakeProcess) reply(body string) {
	p.send(string(EncodeFrame([]byte(body))))
}

func (p *fakeProcess) exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exited = true
}

// sent decodes and clears everything written so far.
func (p *fakeProcess) sent(t *testing.T) []Message {
	t.Helper()

	p.mu.Lock()
	data := p.written
	p.written = nil
	p.mu.Unlock()

	d := NewDecoder()
	d.Feed(data)
	var msgs []Message
	for {
		body, err := d.Next()
		if err != nil {
			t.Fatalf("client wrote a bad frame: %v", err)
		}
		if body == nil {
			return msgs
		}
		msg, err := DecodeMessage(body)
		if err != nil {
			t.Fatalf("client wrote a bad message %s: %v", body, err)
		}
		msgs = append(msgs, msg)
	}
}

func names(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		switch m := m.(type) {
		case *Request:
			out[i] = m.Name
		case *Notification:
			out[i] = m.Name
		case *Response:
			out[i] = fmt.Sprintf("response %d", m.ID)
		}
	}
	return out
}

type fakeHost struct {
	sync.Mutex
	docs        map[string]*engine.Document
	results     []Result
	messages    []string
	diagChanged []*engine.Document
	panics      bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{docs: make(map[string]*engine.Document)}
}

func (h *fakeHost) Document(uri string) *engine.Document { return h.docs[uri] }

func (h *fakeHost) DiagnosticsChanged(doc *engine.Document) {
	h.diagChanged = append(h.diagChanged, doc)
}

func (h *fakeHost) ShowMessage(kind protocol.MessageType, message string) {
	h.messages = append(h.messages, message)
}

func (h *fakeHost) HandleResult(r Result) {
	if h.panics {
		panic("host failure")
	}
	h.results = append(h.results, r)
}

func (h *fakeHost) open(content string) *engine.Document {
	doc := engine.New(engine.WithContent(content), engine.WithLanguageID("go"))
	h.docs[doc.URI()] = doc
	return doc
}

func newTestConnection(t *testing.T, opts ...ConnectionOption) (*Connection, *fakeProcess, *fakeHost) {
	t.Helper()
	proc := &fakeProcess{}
	host := newFakeHost()
	return NewConnection("go", proc, host, opts...), proc, host
}

// handshake starts c and answers its initialize request.
func handshake(t *testing.T, c *Connection, proc *fakeProcess) {
	t.Helper()

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	msgs := proc.sent(t)
	if len(msgs) != 1 {
		t.Fatalf("expected initialize only, got %v", names(msgs))
	}
	req, ok := msgs[0].(*Request)
	if !ok || req.Method != MethodInitialize {
		t.Fatalf("expected initialize request, got %v", names(msgs))
	}

	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":{"capabilities":{"hoverProvider":true}}}`, req.ID))
	if err := c.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if c.Status() != StatusInitialized {
		t.Fatalf("expected initialized, got %v", c.Status())
	}
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	c, proc, _ := newTestConnection(t, WithRootURI("file:///src"), WithInitializationOptions([]byte(`{"x":1}`)))

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	req := proc.sent(t)[0].(*Request)

	params := gjson.ParseBytes(req.Raw)
	if got := params.Get("capabilities.general.positionEncodings.0").String(); got != PositionEncoding {
		t.Errorf("expected %s position encoding, got %q", PositionEncoding, got)
	}
	if params.Get("rootUri").String() != "file:///src" {
		t.Errorf("unexpected rootUri %s", params.Get("rootUri"))
	}
	if params.Get("initializationOptions.x").Int() != 1 {
		t.Errorf("expected initialization options, got %s", params.Get("initializationOptions"))
	}
	if !params.Get("capabilities.workspace.applyEdit").Bool() {
		t.Error("expected applyEdit capability")
	}
}

func TestInitializeRecordsPositionEncoding(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{"chosen", `{"capabilities":{"positionEncoding":"utf-32"}}`, "utf-32"},
		{"other", `{"capabilities":{"positionEncoding":"utf-8"}}`, "utf-8"},
		{"unstated", `{"capabilities":{}}`, "utf-16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, proc, _ := newTestConnection(t)
			if err := c.Start(); err != nil {
				t.Fatal(err)
			}
			req := proc.sent(t)[0].(*Request)
			proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, tt.result))
			if err := c.Poll(); err != nil {
				t.Fatal(err)
			}
			if got := c.ServerPositionEncoding(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestInitializeFlushesAttachedDocuments(t *testing.T) {
	c, proc, host := newTestConnection(t, WithSettings([]byte(`{"gopls":{"staticcheck":true}}`)))
	a := host.open("package a\n")
	b := host.open("package b\n")

	a.Attach(c)
	b.Attach(c)
	if msgs := proc.sent(t); len(msgs) != 0 {
		t.Fatalf("nothing may be sent before initialize, got %v", names(msgs))
	}

	handshake(t, c, proc)

	msgs := proc.sent(t)
	want := []string{"initialized", "textDocument/didOpen", "textDocument/didOpen", "workspace/didChangeConfiguration"}
	got := names(msgs)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	open := gjson.ParseBytes(msgs[1].(*Notification).Raw)
	if open.Get("textDocument.uri").String() != a.URI() || open.Get("textDocument.text").String() != "package a\n" {
		t.Errorf("unexpected didOpen %s", open.Raw)
	}
	if open.Get("textDocument.languageId").String() != "go" {
		t.Errorf("unexpected language id %s", open.Get("textDocument.languageId"))
	}

	settings := gjson.ParseBytes(msgs[3].(*Notification).Raw)
	if !settings.Get("settings.gopls.staticcheck").Bool() {
		t.Errorf("unexpected settings %s", settings.Raw)
	}

	if string(c.ServerCapabilities()) != `{"hoverProvider":true}` {
		t.Errorf("unexpected capabilities %s", c.ServerCapabilities())
	}
}

func TestRequestsBeforeInitialize(t *testing.T) {
	c, _, host := newTestConnection(t)
	doc := host.open("x")

	if _, err := c.Hover(doc, buffer.Cursor{}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestResponseCorrelation(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("package main\n")
	doc.Attach(c)
	handshake(t, c, proc)
	proc.sent(t)

	var ids []int
	for i := range 3 {
		id, err := c.Hover(doc, buffer.Cursor{Row: 0, Col: i})
		if err != nil {
			t.Fatalf("Hover: %v", err)
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not strictly increasing: %v", ids)
		}
	}
	if c.InFlight() != 3 {
		t.Fatalf("expected 3 in flight, got %d", c.InFlight())
	}

	// Out of order, plus a duplicate and a stray id.
	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"contents":"third"}}`, ids[2]))
	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"contents":{"kind":"markdown","value":"first"}}}`, ids[0]))
	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"contents":"again"}}`, ids[0]))
	proc.reply(`{"jsonrpc":"2.0","id":999,"result":null}`)
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	if c.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", c.InFlight())
	}
	if len(host.results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(host.results))
	}
	if r := host.results[0]; r.RequestID != ids[2] || r.Value.(*HoverResult).Text != "third" {
		t.Errorf("unexpected first result %+v", r)
	}
	if r := host.results[1]; r.RequestID != ids[0] || r.Value.(*HoverResult).Text != "first" || r.URI != doc.URI() {
		t.Errorf("unexpected second result %+v", r)
	}
}

func TestErrorResponseHasNoEffect(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("x")
	doc.Attach(c)
	handshake(t, c, proc)

	id, err := c.Formatting(doc, false)
	if err != nil {
		t.Fatal(err)
	}
	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32803,"message":"no"}}`, id))
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	if len(host.results) != 1 || host.results[0].RequestID != id || host.results[0].Value != nil {
		t.Fatalf("expected one failed result, got %v", host.results)
	}
	var rpcErr *RPCError
	if !errors.As(host.results[0].Err, &rpcErr) || rpcErr.Code != -32803 {
		t.Errorf("expected the server error, got %v", host.results[0].Err)
	}
	if doc.Text() != "x" {
		t.Errorf("error response changed the document: %q", doc.Text())
	}
	if c.InFlight() != 0 {
		t.Errorf("expected the request to be retired, %d in flight", c.InFlight())
	}
	if c.Status() != StatusInitialized {
		t.Errorf("server errors must not end the connection, got %v", c.Status())
	}
}

func TestFramesSplitAcrossPolls(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("x")
	doc.Attach(c)
	handshake(t, c, proc)

	id, err := c.Hover(doc, buffer.Cursor{})
	if err != nil {
		t.Fatal(err)
	}
	frame := string(EncodeFrame([]byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"contents":"split"}}`, id))))

	proc.send(frame[:10])
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}
	proc.send(frame[10:30])
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}
	if len(host.results) != 0 {
		t.Fatal("decoded before the frame was complete")
	}

	proc.send(frame[30:])
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}
	if len(host.results) != 1 || host.results[0].Value.(*HoverResult).Text != "split" {
		t.Errorf("unexpected results %+v", host.results)
	}
}

func TestDidChangeFirstFullThenIncremental(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("ab")
	doc.Attach(c)
	handshake(t, c, proc)
	proc.sent(t)

	doc.MoveCursor(buffer.Cursor{Row: 0, Col: 2})
	doc.InsertText("c")
	doc.CommitChanges()

	msgs := proc.sent(t)
	if len(msgs) != 1 {
		t.Fatalf("expected one didChange, got %v", names(msgs))
	}
	first := gjson.ParseBytes(msgs[0].(*Notification).Raw)
	if n := len(first.Get("contentChanges").Array()); n != 1 {
		t.Fatalf("expected one full-text change, got %d", n)
	}
	if first.Get("contentChanges.0.range").Exists() || first.Get("contentChanges.0.text").String() != "abc" {
		t.Errorf("expected whole document, got %s", first.Get("contentChanges"))
	}
	if first.Get("textDocument.version").Int() != int64(doc.Version()) {
		t.Errorf("expected version %d, got %s", doc.Version(), first.Get("textDocument.version"))
	}

	// Three uncommitted changes go out together on commit.
	doc.InsertText("x")
	doc.InsertText("y")
	doc.InsertText("z")
	if msgs := proc.sent(t); len(msgs) != 0 {
		t.Fatalf("nothing may be sent before commit, got %v", names(msgs))
	}
	doc.CommitChanges()

	msgs = proc.sent(t)
	if len(msgs) != 1 || msgs[0].(*Notification).Method != MethodDidChange {
		t.Fatalf("expected exactly one didChange, got %v", names(msgs))
	}
	changes := gjson.ParseBytes(msgs[0].(*Notification).Raw).Get("contentChanges").Array()
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	for i, want := range []string{"x", "y", "z"} {
		ch := changes[i]
		col := int64(3 + i)
		if ch.Get("text").String() != want {
			t.Errorf("change %d: expected text %q, got %q", i, want, ch.Get("text"))
		}
		if ch.Get("range.start.line").Int() != 0 || ch.Get("range.start.character").Int() != col || ch.Get("range.end.character").Int() != col {
			t.Errorf("change %d: unexpected range %s", i, ch.Get("range"))
		}
	}

	// Undo sends the inverse as one incremental batch.
	doc.Undo()
	msgs = proc.sent(t)
	if len(msgs) != 1 {
		t.Fatalf("expected one didChange for undo, got %v", names(msgs))
	}
	undo := gjson.ParseBytes(msgs[0].(*Notification).Raw).Get("contentChanges").Array()
	if len(undo) != 3 || undo[0].Get("range.start.character").Int() != 5 || undo[0].Get("text").String() != "" {
		t.Errorf("unexpected undo changes %v", undo)
	}
}

func TestDidCloseDetaches(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("x")
	doc.Attach(c)
	handshake(t, c, proc)
	proc.sent(t)

	doc.Close()

	msgs := proc.sent(t)
	if fmt.Sprint(names(msgs)) != "[textDocument/didClose]" {
		t.Fatalf("expected didClose, got %v", names(msgs))
	}
	if len(c.Documents()) != 0 {
		t.Error("expected the document to be detached")
	}
	if _, err := c.Hover(doc, buffer.Cursor{}); err != ErrDocumentNotOpen {
		t.Errorf("expected ErrDocumentNotOpen, got %v", err)
	}
}

func TestPublishDiagnostics(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("package main\nfunc x() {}\n")
	doc.Attach(c)
	handshake(t, c, proc)

	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":%q,"diagnostics":[
		{"range":{"start":{"line":1,"character":5},"end":{"line":1,"character":6}},"severity":2,"code":"U1000","source":"staticcheck","message":"unused"},
		{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":7}},"message":"no severity"},
		{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}},"severity":1,"code":2304,"message":"numeric code"}]}}`, doc.URI()))
	proc.reply(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///elsewhere.go","diagnostics":[]}}`)
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	diags := doc.Diagnostics()
	if len(diags) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(diags))
	}
	want := engine.Diagnostic{
		Span:     buffer.Span{Start: buffer.Cursor{Row: 1, Col: 5}, End: buffer.Cursor{Row: 1, Col: 6}},
		Severity: engine.SeverityWarning,
		Message:  "unused",
		Source:   "staticcheck",
		Code:     "U1000",
	}
	if diags[0] != want {
		t.Errorf("expected %+v, got %+v", want, diags[0])
	}
	if diags[1].Severity != engine.SeverityError || diags[1].Code != "" {
		t.Errorf("unexpected defaults %+v", diags[1])
	}
	if diags[2].Code != "2304" {
		t.Errorf("expected numeric code as text, got %q", diags[2].Code)
	}
	if len(host.diagChanged) != 1 || host.diagChanged[0] != doc {
		t.Errorf("expected one DiagnosticsChanged for the attached doc, got %d", len(host.diagChanged))
	}
}

func TestShowMessage(t *testing.T) {
	c, proc, host := newTestConnection(t)
	handshake(t, c, proc)

	proc.reply(`{"jsonrpc":"2.0","method":"window/showMessage","params":{"type":1,"message":"broken"}}`)
	proc.reply(`{"jsonrpc":"2.0","method":"window/logMessage","params":{"type":4,"message":"chatter"}}`)
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}
	if len(host.messages) != 1 || host.messages[0] != "broken" {
		t.Errorf("unexpected messages %v", host.messages)
	}
}

func TestApplyEditRequest(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("one two\n")
	doc.Attach(c)
	handshake(t, c, proc)
	proc.sent(t)

	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":"e1","method":"workspace/applyEdit","params":{"edit":{"documentChanges":[
		{"textDocument":{"uri":%q,"version":null},"edits":[
			{"range":{"start":{"line":0,"character":4},"end":{"line":0,"character":7}},"newText":"2"},
			{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":3}},"newText":"1"}]}]}}}`, doc.URI()))
	proc.reply(`{"jsonrpc":"2.0","id":"e2","method":"workspace/applyEdit","params":{"edit":{"changes":{"file:///closed.go":[]}}}}`)
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	if doc.Text() != "1 2\n" {
		t.Errorf("expected edits applied, got %q", doc.Text())
	}

	var replies []*Response
	for _, m := range proc.sent(t) {
		if r, ok := m.(*Response); ok {
			replies = append(replies, r)
		}
	}
	if len(replies) != 2 {
		t.Fatalf("expected two replies, got %d", len(replies))
	}
	if !gjson.GetBytes(replies[0].Result, "applied").Bool() {
		t.Errorf("expected applied, got %s", replies[0].Result)
	}
	if gjson.GetBytes(replies[1].Result, "applied").Bool() || gjson.GetBytes(replies[1].Result, "failureReason").String() == "" {
		t.Errorf("expected failure for an unopened document, got %s", replies[1].Result)
	}
}

func TestApplyEditRequestIsAllOrNothing(t *testing.T) {
	c, proc, host := newTestConnection(t)
	a := host.open("alpha\n")
	b := host.open("beta\n")
	handshake(t, c, proc)
	proc.sent(t)

	version := a.Version()
	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"workspace/applyEdit","params":{"edit":{"documentChanges":[
		{"textDocument":{"uri":%q,"version":null},"edits":[
			{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":5}},"newText":"ALPHA"}]},
		{"textDocument":{"uri":%q,"version":null},"edits":[
			{"range":{"start":{"line":9,"character":0},"end":{"line":9,"character":1}},"newText":"x"}]}]}}}`, a.URI(), b.URI()))
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	msgs := proc.sent(t)
	if len(msgs) != 1 {
		t.Fatalf("expected one reply, got %v", names(msgs))
	}
	if r := msgs[0].(*Response); gjson.GetBytes(r.Result, "applied").Bool() {
		t.Errorf("expected failure, got %s", r.Result)
	}
	if a.Text() != "alpha\n" || a.Version() != version {
		t.Errorf("first document changed by a rejected edit: %q v%d", a.Text(), a.Version())
	}
	if b.Text() != "beta\n" {
		t.Errorf("second document changed: %q", b.Text())
	}
}

func TestServerRequests(t *testing.T) {
	c, proc, _ := newTestConnection(t, WithSettings([]byte(`{"gopls":{"staticcheck":true}}`)))
	handshake(t, c, proc)
	proc.sent(t)

	proc.reply(`{"jsonrpc":"2.0","id":1,"method":"workspace/configuration","params":{"items":[{"section":"gopls"},{"section":"missing"},{}]}}`)
	proc.reply(`{"jsonrpc":"2.0","id":2,"method":"window/workDoneProgress/create","params":{"token":"t"}}`)
	proc.reply(`{"jsonrpc":"2.0","id":3,"method":"workspace/unknown","params":{}}`)
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	msgs := proc.sent(t)
	if len(msgs) != 3 {
		t.Fatalf("expected three replies, got %v", names(msgs))
	}

	cfg := msgs[0].(*Response)
	if got := string(cfg.Result); got != `[{"staticcheck":true},null,{"gopls":{"staticcheck":true}}]` {
		t.Errorf("unexpected configuration reply %s", got)
	}
	if progress := msgs[1].(*Response); string(progress.Result) != "null" || progress.Error != nil {
		t.Errorf("expected null ack, got %s %v", progress.Result, progress.Error)
	}
	if unknown := msgs[2].(*Response); unknown.Error == nil || unknown.Error.Code != CodeMethodNotFound {
		t.Errorf("expected method not found, got %+v", unknown)
	}
}

func TestMalformedMessageIsReported(t *testing.T) {
	c, proc, _ := newTestConnection(t)
	handshake(t, c, proc)

	proc.reply(`{"id":`)
	proc.reply(`{"jsonrpc":"2.0","method":"window/showMessage","params":{"type":3,"message":"still here"}}`)

	err := c.Poll()
	if err == nil {
		t.Fatal("expected an error for the malformed frame")
	}
	var fe *FrameError
	if !errors.As(err, &fe) || string(fe.Raw) != `{"id":` {
		t.Errorf("expected the raw frame in the error, got %v", err)
	}
	if c.Status() != StatusInitialized {
		t.Errorf("malformed input must not end the connection, got %v", c.Status())
	}
}

func TestDisconnectAndExit(t *testing.T) {
	c, proc, _ := newTestConnection(t)
	handshake(t, c, proc)
	proc.sent(t)

	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	msgs := proc.sent(t)
	req, ok := msgs[0].(*Request)
	if !ok || req.Method != MethodShutdown {
		t.Fatalf("expected shutdown, got %v", names(msgs))
	}
	if c.Status() != StatusDisconnecting {
		t.Errorf("expected disconnecting, got %v", c.Status())
	}

	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":null}`, req.ID))
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(names(proc.sent(t))) != "[exit]" {
		t.Error("expected exit after the shutdown response")
	}

	proc.exit()
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}
	if c.Status() != StatusClosed {
		t.Errorf("expected closed, got %v", c.Status())
	}
	select {
	case <-c.Done():
	default:
		t.Error("expected Done to be closed")
	}
	if !proc.closed {
		t.Error("expected the process streams to be released")
	}
	if err := c.Poll(); err != ErrClosed {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestCrashClosesConnection(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("x")
	doc.Attach(c)
	handshake(t, c, proc)

	if _, err := c.Hover(doc, buffer.Cursor{}); err != nil {
		t.Fatal(err)
	}

	// Output written before the crash is still dispatched.
	proc.reply(`{"jsonrpc":"2.0","method":"window/showMessage","params":{"type":1,"message":"dying"}}`)
	proc.exit()
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	if c.Status() != StatusClosed {
		t.Errorf("expected closed, got %v", c.Status())
	}
	if len(host.messages) != 1 {
		t.Errorf("expected the last message dispatched, got %v", host.messages)
	}
	if c.InFlight() != 0 {
		t.Errorf("expected outstanding requests dropped, got %d", c.InFlight())
	}

	// Edits keep working locally.
	doc.InsertText("y")
	doc.CommitChanges()
	if doc.Text() != "yx" {
		t.Errorf("unexpected text %q", doc.Text())
	}
}

func TestPanicInHandlerIsContained(t *testing.T) {
	c, proc, host := newTestConnection(t)
	doc := host.open("x")
	doc.Attach(c)
	handshake(t, c, proc)

	id, err := c.Hover(doc, buffer.Cursor{})
	if err != nil {
		t.Fatal(err)
	}
	host.panics = true
	proc.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"contents":"boom"}}`, id))
	proc.reply(`{"jsonrpc":"2.0","method":"window/showMessage","params":{"type":3,"message":"after"}}`)
	if err := c.Poll(); err != nil {
		t.Fatal(err)
	}

	if len(host.messages) != 1 || host.messages[0] != "after" {
		t.Errorf("expected dispatch to continue after the panic, got %v", host.messages)
	}
	if c.Status() != StatusInitialized {
		t.Errorf("unexpected status %v", c.Status())
	}
}
