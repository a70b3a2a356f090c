package app

import (
	"fmt"

	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/engine/buffer"
	"github.com/dshills/quill/internal/lsp"
)

// Language server requests are asynchronous. The methods below issue a
// request for a document and return its id; HandleResult applies or
// stores the answer when it arrives. Answers to requests issued against
// an older version of the document are dropped.

// Hover requests hover information at pos.
func (e *Editor) Hover(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.Hover(doc, pos) })
}

// Definition requests the definition of the symbol at pos.
func (e *Editor) Definition(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.Definition(doc, pos) })
}

// References requests the references to the symbol at pos.
func (e *Editor) References(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.References(doc, pos, true) })
}

// Rename renames the symbol at pos across the open documents.
func (e *Editor) Rename(doc *engine.Document, pos buffer.Cursor, newName string) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.Rename(doc, pos, newName) })
}

// Format formats the whole document.
func (e *Editor) Format(doc *engine.Document) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.Formatting(doc, false) })
}

// CodeActions requests the actions available over span.
func (e *Editor) CodeActions(doc *engine.Document, span buffer.Span) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.CodeAction(doc, span) })
}

// Complete requests completions at pos.
func (e *Editor) Complete(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return e.request(doc, func(c *lsp.Connection) (int, error) { return c.Completion(doc, pos) })
}

// ApplyCodeAction applies the edit carried by action.
func (e *Editor) ApplyCodeAction(action lsp.CodeAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return opError("code action", action.Title, lsp.ApplyWorkspaceEdit(e, action.Edit))
}

func (e *Editor) request(doc *engine.Document, send func(*lsp.Connection) (int, error)) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn := connectionFor(doc)
	if conn == nil {
		return 0, opError("request", doc.URI(), ErrNoAnalyzer)
	}
	// Pending edits must reach the server before a request that
	// addresses positions in them.
	doc.CommitChanges()

	id, err := send(conn)
	if err != nil {
		return 0, opError("request", doc.URI(), err)
	}
	e.requested[requestKey{conn.Language(), id}] = doc.Version()
	return id, nil
}

// connectionFor returns the live connection doc is attached to.
func connectionFor(doc *engine.Document) *lsp.Connection {
	for _, s := range doc.Synchronizers() {
		if c, ok := s.(*lsp.Connection); ok && c.Status() != lsp.StatusClosed {
			return c
		}
	}
	return nil
}

// Hovered returns the last hover answer.
func (e *Editor) Hovered() *lsp.HoverResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hover
}

// Locations returns the last definition or references answer.
func (e *Editor) Locations() []lsp.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locations
}

// Actions returns the last code action answer.
func (e *Editor) Actions() []lsp.CodeAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actions
}

// Completions returns the last completion answer.
func (e *Editor) Completions() *lsp.CompletionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completion
}

// HandleResult applies or stores a request's answer.
func (e *Editor) HandleResult(r lsp.Result) {
	key := requestKey{r.Language, r.RequestID}
	version, ok := e.requested[key]
	if !ok {
		return
	}
	delete(e.requested, key)

	if r.Err != nil {
		e.lastMessage = fmt.Sprintf("%s: %s", r.Method, r.Err.Error())
		return
	}

	doc := e.docs[r.URI]
	if doc == nil {
		return
	}
	if doc.Version() != version {
		e.log.Debugf("dropping stale %s answer for %s", r.Method, r.URI)
		return
	}

	switch v := r.Value.(type) {
	case *lsp.HoverResult:
		e.hover = v
	case []lsp.Location:
		e.locations = v
	case []lsp.CodeAction:
		e.actions = v
	case *lsp.CompletionResult:
		e.completion = v
	case []engine.TextEdit:
		if err := doc.ApplyTextEdits(v); err != nil {
			e.log.Errorf("format %s: %s", r.URI, err.Error())
		}
	case lsp.WorkspaceEdit:
		if err := lsp.ApplyWorkspaceEdit(e, v); err != nil {
			e.log.Errorf("rename: %s", err.Error())
		}
	case nil:
		if r.Method == lsp.MethodHover {
			e.hover = nil
		}
	}
}
