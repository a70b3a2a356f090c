package lsp

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/engine/buffer"
)

// Requests are asynchronous: each method returns the request id, and the
// decoded answer reaches Host.HandleResult from the polling goroutine.
// The editor lock must be held when calling them.

// HoverResult is the decoded answer to a hover request.
type HoverResult struct {
	Text string
	Span *buffer.Span
}

// CodeAction is an action offered by the server. Command is set for bare
// commands and for actions that carry one.
type CodeAction struct {
	Title       string
	Kind        string
	IsPreferred bool
	Edit        WorkspaceEdit
	Command     *protocol.Command
}

// CompletionResult is the decoded answer to a completion request.
type CompletionResult struct {
	Incomplete bool
	Items      []protocol.CompletionItem
}

// Hover asks for hover information at pos. The result value is a
// *HoverResult.
func (c *Connection) Hover(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return c.docRequest(MethodHover, doc, protocol.HoverParams{
		TextDocumentPositionParams: positionParams(doc, pos),
	})
}

// Definition asks where the symbol at pos is defined. The result value
// is a []Location.
func (c *Connection) Definition(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return c.docRequest(MethodDefinition, doc, protocol.DefinitionParams{
		TextDocumentPositionParams: positionParams(doc, pos),
	})
}

// References asks for the references to the symbol at pos. The result
// value is a []Location.
func (c *Connection) References(doc *engine.Document, pos buffer.Cursor, includeDeclaration bool) (int, error) {
	return c.docRequest(MethodReferences, doc, protocol.ReferenceParams{
		TextDocumentPositionParams: positionParams(doc, pos),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: includeDeclaration},
	})
}

// Rename asks for the edits renaming the symbol at pos. The result value
// is a WorkspaceEdit.
func (c *Connection) Rename(doc *engine.Document, pos buffer.Cursor, newName string) (int, error) {
	return c.docRequest(MethodRename, doc, protocol.RenameParams{
		TextDocumentPositionParams: positionParams(doc, pos),
		NewName:                    newName,
	})
}

// Formatting asks for the edits that format the whole document. The
// result value is a []engine.TextEdit.
func (c *Connection) Formatting(doc *engine.Document, insertSpaces bool) (int, error) {
	return c.docRequest(MethodFormatting, doc, protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI()},
		Options: protocol.FormattingOptions{
			protocol.FormattingOptionTabSize:      doc.Buffer().TabWidth(),
			protocol.FormattingOptionInsertSpaces: insertSpaces,
		},
	})
}

// CodeAction asks for the actions available over span, passing the
// document's diagnostics that overlap it. The result value is a
// []CodeAction.
func (c *Connection) CodeAction(doc *engine.Document, span buffer.Span) (int, error) {
	diags := make([]protocol.Diagnostic, 0)
	for _, d := range doc.Diagnostics() {
		if d.Span.Overlaps(span) || d.Span.Contains(span.Start) {
			diags = append(diags, toProtocolDiagnostic(d))
		}
	}
	return c.docRequest(MethodCodeAction, doc, protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI()},
		Range:        ToRange(span),
		Context:      protocol.CodeActionContext{Diagnostics: diags},
	})
}

// Completion asks for completions at pos. The result value is a
// *CompletionResult.
func (c *Connection) Completion(doc *engine.Document, pos buffer.Cursor) (int, error) {
	return c.docRequest(MethodCompletion, doc, protocol.CompletionParams{
		TextDocumentPositionParams: positionParams(doc, pos),
		Context:                    &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerKindInvoked},
	})
}

func (c *Connection) docRequest(m Method, doc *engine.Document, params any) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusInitialized {
		if st := c.docs[doc]; st == nil || !st.opened {
			return 0, ErrDocumentNotOpen
		}
	}
	return c.requestLocked(m, params, doc.URI())
}

func positionParams(doc *engine.Document, pos buffer.Cursor) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI()},
		Position:     ToPosition(pos),
	}
}

func toProtocolDiagnostic(d engine.Diagnostic) protocol.Diagnostic {
	sev := protocol.DiagnosticSeverity(d.Severity)
	pd := protocol.Diagnostic{
		Range:    ToRange(d.Span),
		Severity: &sev,
		Message:  d.Message,
	}
	if d.Source != "" {
		src := d.Source
		pd.Source = &src
	}
	if d.Code != "" {
		pd.Code = &protocol.IntegerOrString{Value: d.Code}
	}
	return pd
}

// decodeResult decodes a response result by the method of the request
// it answers.
func decodeResult(m Method, raw json.RawMessage) (any, error) {
	v := gjson.ParseBytes(raw)
	if len(raw) == 0 || v.Type == gjson.Null {
		return nil, nil
	}

	switch m {
	case MethodHover:
		res := &HoverResult{Text: hoverText(v.Get("contents"))}
		if r := v.Get("range"); r.Exists() {
			var pr protocol.Range
			if err := json.Unmarshal([]byte(r.Raw), &pr); err != nil {
				return nil, err
			}
			span := FromRange(pr)
			res.Span = &span
		}
		return res, nil

	case MethodDefinition, MethodReferences:
		return decodeLocations(v)

	case MethodRename:
		return decodeWorkspaceEdit(v)

	case MethodFormatting:
		return decodeTextEdits(v)

	case MethodCodeAction:
		return decodeCodeActions(v)

	case MethodCompletion:
		if v.IsArray() {
			var items []protocol.CompletionItem
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, err
			}
			return &CompletionResult{Items: items}, nil
		}
		var list protocol.CompletionList
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return &CompletionResult{Incomplete: list.IsIncomplete, Items: list.Items}, nil
	}

	return raw, nil
}

// hoverText flattens MarkupContent, MarkedString and arrays of them.
func hoverText(v gjson.Result) string {
	switch {
	case v.IsArray():
		var parts []string
		for _, item := range v.Array() {
			if s := hoverText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	case v.IsObject():
		return v.Get("value").String()
	default:
		return v.String()
	}
}

// decodeLocations accepts a Location, a []Location or a []LocationLink.
func decodeLocations(v gjson.Result) ([]Location, error) {
	items := []gjson.Result{v}
	if v.IsArray() {
		items = v.Array()
	}

	out := make([]Location, 0, len(items))
	for _, item := range items {
		if item.Get("targetUri").Exists() {
			var link protocol.LocationLink
			if err := json.Unmarshal([]byte(item.Raw), &link); err != nil {
				return nil, err
			}
			out = append(out, Location{URI: link.TargetURI, Span: FromRange(link.TargetSelectionRange)})
			continue
		}
		var loc protocol.Location
		if err := json.Unmarshal([]byte(item.Raw), &loc); err != nil {
			return nil, err
		}
		out = append(out, Location{URI: loc.URI, Span: FromRange(loc.Range)})
	}
	return out, nil
}

// decodeCodeActions accepts a mix of Command and CodeAction literals.
func decodeCodeActions(v gjson.Result) ([]CodeAction, error) {
	var out []CodeAction
	for _, item := range v.Array() {
		action := CodeAction{
			Title:       item.Get("title").String(),
			Kind:        item.Get("kind").String(),
			IsPreferred: item.Get("isPreferred").Bool(),
		}

		switch cmd := item.Get("command"); {
		case cmd.Type == gjson.String:
			// A bare Command.
			var c protocol.Command
			if err := json.Unmarshal([]byte(item.Raw), &c); err != nil {
				return nil, err
			}
			action.Command = &c
		case cmd.IsObject():
			var c protocol.Command
			if err := json.Unmarshal([]byte(cmd.Raw), &c); err != nil {
				return nil, err
			}
			action.Command = &c
		}

		edit, err := decodeWorkspaceEdit(item.Get("edit"))
		if err != nil {
			return nil, err
		}
		action.Edit = edit
		out = append(out, action)
	}
	return out, nil
}
