// Package history records buffer changes for undo and redo.
//
// Changes are appended to an uncommitted list as they are applied. A
// commit closes that list into a Changelist, the unit of undo:
//
//	h := history.New(1000)
//	h.Append(change, buf.Cursor())
//	h.Commit(buf.Cursor())
//
//	h.Undo(buf) // applies the changelist's changes inverted, last first
//	h.Redo(buf) // reapplies them in their original order
//
// Committed changelists live in one slice with an index separating the
// undo side from the redo side. Committing new work discards everything
// past the index, so the redo branch is lost once the user edits.
//
// # Cursor Restoration
//
// Each changelist remembers the cursor before its first change and after
// its last, and undo/redo restore them.
package history
