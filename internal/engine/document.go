package engine

import (
	"context"
	"os"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/dshills/quill/internal/engine/buffer"
	"github.com/dshills/quill/internal/engine/history"
	"github.com/dshills/quill/internal/syntax"
)

// Synchronizer observes a document's lifecycle and committed changes.
// Language server connections implement it.
type Synchronizer interface {
	DidOpen(doc *Document)
	DidChange(doc *Document, changes []buffer.Change)
	DidClose(doc *Document)
}

// Document is an open buffer with its history, syntax state, diagnostics
// and the connections it is synchronized with.
//
// Document is not safe for concurrent use; the editor lock guards it.
type Document struct {
	id         string
	path       string
	uri        string
	languageID string
	version    int
	modified   bool
	closed     bool

	buf  *buffer.Buffer
	hist *history.History

	lang   *syntax.Language
	syntax *syntax.State

	// pending holds every change applied since the last synchronization,
	// including those applied by undo and redo.
	pending       []buffer.Change
	synchronizers []Synchronizer

	diagnostics []Diagnostic

	log commonlog.Logger

	// Construction-time settings.
	initContent  string
	bufOpts      []buffer.Option
	historyLimit int
}

// New creates a document.
func New(opts ...Option) *Document {
	d := &Document{
		id:           newID(),
		historyLimit: DefaultHistoryLimit,
		log:          commonlog.GetLogger("quill.engine"),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.buf = buffer.NewBufferFromString(d.initContent, d.bufOpts...)
	d.initContent = ""
	d.hist = history.New(d.historyLimit)
	if d.uri == "" {
		d.uri = scratchURI(d.id)
	}
	d.log = commonlog.NewKeyValueLogger(d.log, "document", d.uri)

	if d.lang != nil {
		state, err := syntax.NewState(d.lang)
		if err != nil {
			d.log.Errorf("syntax disabled: %s", err.Error())
		} else {
			d.syntax = state
			d.reparse()
		}
	}

	return d
}

// Open loads a document from a file. A missing file yields an empty
// document that will be created on save.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	opts = append([]Option{WithPath(path), WithContent(string(data))}, opts...)
	return New(opts...), nil
}

// Save writes the document to its path using its line ending style.
func (d *Document) Save() error {
	if d.path == "" {
		return ErrNoPath
	}
	if err := os.WriteFile(d.path, []byte(d.buf.Serialize()), 0o644); err != nil {
		return err
	}
	d.modified = false
	return nil
}

// ID returns the document's unique identifier.
func (d *Document) ID() string { return d.id }

// Path returns the file path, or "" for a scratch document.
func (d *Document) Path() string { return d.path }

// URI returns the document URI.
func (d *Document) URI() string { return d.uri }

// LanguageID returns the language identifier.
func (d *Document) LanguageID() string { return d.languageID }

// Version returns the document version. It increases on every commit,
// undo and redo.
func (d *Document) Version() int { return d.version }

// IsModified returns true if there are committed changes not yet saved.
func (d *Document) IsModified() bool { return d.modified }

// IsClosed returns true after Close.
func (d *Document) IsClosed() bool { return d.closed }

// Buffer returns the underlying buffer for read access.
func (d *Document) Buffer() *buffer.Buffer { return d.buf }

// Syntax returns the parse state, or nil if the language has no grammar.
func (d *Document) Syntax() *syntax.State { return d.syntax }

// Text returns the full content.
func (d *Document) Text() string { return d.buf.Text() }

// LineCount returns the number of rows.
func (d *Document) LineCount() int { return d.buf.LineCount() }

// LineText returns the text of a row.
func (d *Document) LineText(row int) string { return d.buf.LineText(row) }

// TextAt returns the codepoints covered by span.
func (d *Document) TextAt(span buffer.Span) []rune { return d.buf.TextAt(span) }

// Cursor returns the cursor position.
func (d *Document) Cursor() buffer.Cursor { return d.buf.Cursor() }

// CursorToBytePos converts a position into a byte offset.
func (d *Document) CursorToBytePos(c buffer.Cursor) int { return d.buf.CursorToBytePos(c) }

// MoveCursor moves the cursor, clamping it to the content.
func (d *Document) MoveCursor(target buffer.Cursor) buffer.Cursor {
	return d.buf.MoveCursor(target)
}

// MoveCursorBy moves the cursor by a row/column delta.
func (d *Document) MoveCursorBy(delta buffer.Cursor) buffer.Cursor {
	return d.buf.MoveCursorBy(delta)
}

// StartSelection begins a selection at the cursor.
func (d *Document) StartSelection() { d.buf.StartSelection() }

// ClearSelection drops the active selection.
func (d *Document) ClearSelection() { d.buf.ClearSelection() }

// Selection returns the active selection.
func (d *Document) Selection() (buffer.Span, bool) { return d.buf.Selection() }

// Diagnostics returns the diagnostics last published for the document.
func (d *Document) Diagnostics() []Diagnostic { return d.diagnostics }

// SetDiagnostics replaces the document's diagnostics.
func (d *Document) SetDiagnostics(diags []Diagnostic) { d.diagnostics = diags }

// Attach registers s and opens the document on it.
func (d *Document) Attach(s Synchronizer) {
	if slices.Contains(d.synchronizers, s) {
		return
	}
	d.synchronizers = append(d.synchronizers, s)
	s.DidOpen(d)
}

// Detach closes the document on s and stops synchronizing with it.
func (d *Document) Detach(s Synchronizer) {
	i := slices.Index(d.synchronizers, s)
	if i < 0 {
		return
	}
	d.synchronizers = slices.Delete(d.synchronizers, i, i+1)
	s.DidClose(d)
}

// Synchronizers returns the attached synchronizers.
func (d *Document) Synchronizers() []Synchronizer {
	return d.synchronizers
}

// Close commits pending work, detaches every synchronizer and releases
// the parse state.
func (d *Document) Close() {
	if d.closed {
		return
	}
	d.CommitChanges()

	for _, s := range slices.Clone(d.synchronizers) {
		d.Detach(s)
	}
	if d.syntax != nil {
		d.syntax.Close()
		d.syntax = nil
	}
	d.hist.Clear()
	d.closed = true
}

// reparse brings the syntax state up to date with the buffer.
func (d *Document) reparse() {
	if d.syntax == nil {
		return
	}
	if err := d.syntax.Reparse(context.Background(), d.buf.Bytes()); err != nil {
		d.log.Warningf("reparse failed: %s", err.Error())
	}
}
