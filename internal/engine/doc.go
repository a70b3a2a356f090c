// Package engine is the editing core's facade: a Document combines a
// buffer, its undo history, an incremental syntax tree and the language
// server connections that mirror its content.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - buffer: rows of codepoints, positions, spans and the Change type
//   - history: uncommitted changes, changelists and the undo index
//   - syntax (internal/syntax): tree-sitter parse state and spans
//
// # Editing
//
// Editing operations build a Change, apply it to the buffer, feed it to
// the syntax tree and record it as uncommitted:
//
//	d := engine.New(engine.WithContent("hello"))
//	d.MoveCursor(buffer.Cursor{Row: 0, Col: 5})
//	d.InsertText(", world")
//	d.CommitChanges() // one undoable unit, version 1
//
//	d.Undo() // "hello", version 2
//	d.Redo() // "hello, world", version 3
//
// Every commit, undo and redo bumps the version, reparses and forwards
// the applied changes, in order, to each attached Synchronizer.
//
// # Thread Safety
//
// A Document is not safe for concurrent use. The editor holds one
// coarse lock around every access, including the language server
// goroutines that publish diagnostics or apply workspace edits.
package engine
