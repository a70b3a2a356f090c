package lsp

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/engine/buffer"
)

// PositionEncoding is the column unit the client speaks. Columns are
// codepoints throughout the editor, which LSP calls utf-32.
const PositionEncoding = "utf-32"

// ToPosition converts a cursor to a protocol position.
func ToPosition(c buffer.Cursor) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(c.Row), Character: protocol.UInteger(c.Col)}
}

// ToRange converts a span to a protocol range.
func ToRange(s buffer.Span) protocol.Range {
	return protocol.Range{Start: ToPosition(s.Start), End: ToPosition(s.End)}
}

// FromPosition converts a protocol position to a cursor.
func FromPosition(p protocol.Position) buffer.Cursor {
	return buffer.Cursor{Row: int(p.Line), Col: int(p.Character)}
}

// FromRange converts a protocol range to a span, ordering its ends.
func FromRange(r protocol.Range) buffer.Span {
	return buffer.NewSpan(FromPosition(r.Start), FromPosition(r.End))
}

// Location is a span in a document.
type Location struct {
	URI  string
	Span buffer.Span
}

// DocumentEdits are the edits a workspace edit makes to one document.
type DocumentEdits struct {
	URI   string
	Edits []engine.TextEdit
}

// WorkspaceEdit is a set of per-document edits in the order the server
// listed them.
type WorkspaceEdit []DocumentEdits

// decodeWorkspaceEdit reads both the changes map and documentChanges
// forms. Resource operations are not supported.
func decodeWorkspaceEdit(v gjson.Result) (WorkspaceEdit, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}

	var out WorkspaceEdit
	var err error

	if dc := v.Get("documentChanges"); dc.IsArray() {
		dc.ForEach(func(_, change gjson.Result) bool {
			if change.Get("kind").Exists() {
				err = fmt.Errorf("resource operation %q not supported", change.Get("kind").String())
				return false
			}
			var edits []engine.TextEdit
			edits, err = decodeTextEdits(change.Get("edits"))
			if err != nil {
				return false
			}
			out = append(out, DocumentEdits{URI: change.Get("textDocument.uri").String(), Edits: edits})
			return true
		})
		return out, err
	}

	v.Get("changes").ForEach(func(uri, edits gjson.Result) bool {
		var te []engine.TextEdit
		te, err = decodeTextEdits(edits)
		if err != nil {
			return false
		}
		out = append(out, DocumentEdits{URI: uri.String(), Edits: te})
		return true
	})
	return out, err
}

func decodeTextEdits(v gjson.Result) ([]engine.TextEdit, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	var raw []protocol.TextEdit
	if err := json.Unmarshal([]byte(v.Raw), &raw); err != nil {
		return nil, err
	}
	edits := make([]engine.TextEdit, len(raw))
	for i, e := range raw {
		edits[i] = engine.TextEdit{Span: FromRange(e.Range), Text: e.NewText}
	}
	return edits, nil
}

// convertDiagnostics converts published diagnostics. Missing severities
// count as errors.
func convertDiagnostics(in []protocol.Diagnostic) []engine.Diagnostic {
	out := make([]engine.Diagnostic, len(in))
	for i, d := range in {
		diag := engine.Diagnostic{
			Span:     FromRange(d.Range),
			Severity: engine.SeverityError,
			Message:  d.Message,
		}
		if d.Severity != nil {
			diag.Severity = engine.Severity(*d.Severity)
		}
		if d.Source != nil {
			diag.Source = *d.Source
		}
		if d.Code != nil && d.Code.Value != nil {
			diag.Code = fmt.Sprint(d.Code.Value)
		}
		out[i] = diag
	}
	return out
}

// clientCapabilities advertises what the client handles.
func clientCapabilities() json.RawMessage {
	caps := []byte(`{}`)
	set := func(path string, value any) {
		caps, _ = sjson.SetBytes(caps, path, value)
	}

	set("general.positionEncodings", []string{PositionEncoding})
	set("textDocument.synchronization.dynamicRegistration", false)
	set("textDocument.synchronization.didSave", false)
	set("textDocument.publishDiagnostics.relatedInformation", false)
	set("textDocument.hover.contentFormat", []string{"plaintext", "markdown"})
	set("textDocument.completion.completionItem.snippetSupport", false)
	set("textDocument.definition.linkSupport", true)
	set("textDocument.codeAction.codeActionLiteralSupport.codeActionKind.valueSet",
		[]string{"", "quickfix", "refactor", "source", "source.organizeImports"})
	set("textDocument.rename.prepareSupport", false)
	set("workspace.applyEdit", true)
	set("workspace.configuration", true)
	set("workspace.workspaceEdit.documentChanges", true)
	set("window.workDoneProgress", true)

	return caps
}

// initializeParams builds the initialize request payload.
func initializeParams(rootURI string, initOptions []byte) (json.RawMessage, error) {
	params := []byte(`{}`)
	var err error

	params, err = sjson.SetBytes(params, "processId", os.Getpid())
	if err != nil {
		return nil, err
	}
	params, err = sjson.SetBytes(params, "clientInfo", map[string]string{"name": "quill"})
	if err != nil {
		return nil, err
	}
	if rootURI != "" {
		params, err = sjson.SetBytes(params, "rootUri", rootURI)
		if err != nil {
			return nil, err
		}
		params, err = sjson.SetRawBytes(params, "workspaceFolders", mustJSON([]protocol.WorkspaceFolder{{URI: rootURI, Name: rootURI}}))
		if err != nil {
			return nil, err
		}
	}
	params, err = sjson.SetRawBytes(params, "capabilities", clientCapabilities())
	if err != nil {
		return nil, err
	}
	if len(initOptions) > 0 {
		params, err = sjson.SetRawBytes(params, "initializationOptions", initOptions)
		if err != nil {
			return nil, err
		}
	}
	return params, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
