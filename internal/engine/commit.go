package engine

import (
	"github.com/dshills/quill/internal/engine/buffer"
)

// docApplier routes history replays through the document so that undo
// and redo reach the syntax tree and the synchronizers like any edit.
type docApplier struct {
	d *Document
}

func (a docApplier) Apply(c buffer.Change) {
	a.d.apply(c)
}

func (a docApplier) MoveCursor(target buffer.Cursor) buffer.Cursor {
	return a.d.buf.MoveCursor(target)
}

// apply writes c to the buffer and queues it for the syntax tree and
// for synchronization.
func (d *Document) apply(c buffer.Change) {
	d.buf.Apply(c)
	if d.syntax != nil {
		d.syntax.Edit(c)
	}
	d.pending = append(d.pending, c)
}

// AppendChange records a change that has already been applied to the
// buffer in the uncommitted list. cursorBefore is restored if the
// changelist it ends up in is undone.
func (d *Document) AppendChange(c buffer.Change, cursorBefore buffer.Cursor) {
	d.hist.Append(c, cursorBefore)
}

// CommitChanges closes the uncommitted changes into one undoable
// changelist, bumps the version, reparses and forwards the changes to
// every synchronizer. It returns false when nothing was uncommitted.
func (d *Document) CommitChanges() bool {
	if _, ok := d.hist.Commit(d.buf.Cursor()); !ok {
		return false
	}
	d.changed()
	return true
}

// Undo reverts the most recent changelist. Uncommitted changes are
// committed first so they are what gets undone. It returns false when
// there is nothing to undo.
func (d *Document) Undo() bool {
	d.CommitChanges()
	if _, ok := d.hist.Undo(docApplier{d}); !ok {
		return false
	}
	d.changed()
	return true
}

// Redo reapplies the most recently undone changelist. It returns false
// when there is nothing to redo.
func (d *Document) Redo() bool {
	d.CommitChanges()
	if _, ok := d.hist.Redo(docApplier{d}); !ok {
		return false
	}
	d.changed()
	return true
}

// CanUndo returns true if there are changelists to undo.
func (d *Document) CanUndo() bool {
	return d.hist.CanUndo() || d.hist.HasUncommitted()
}

// CanRedo returns true if there are changelists to redo.
func (d *Document) CanRedo() bool {
	return d.hist.CanRedo()
}

// HistoryIndex returns the number of changelists that can be undone.
func (d *Document) HistoryIndex() int {
	return d.hist.Index()
}

// SetHistoryLimit changes how many changelists are kept, dropping the
// oldest ones beyond the new limit.
func (d *Document) SetHistoryLimit(limit int) {
	d.hist.SetLimit(limit)
}

// SetTabWidth changes the tab width sent with formatting requests.
func (d *Document) SetTabWidth(width int) {
	d.buf.SetTabWidth(width)
}

func (d *Document) changed() {
	d.version++
	d.modified = true
	d.reparse()
	d.flush()
}

// flush hands the pending changes to every synchronizer, in order, and
// clears them.
func (d *Document) flush() {
	if len(d.pending) == 0 {
		return
	}
	changes := d.pending
	d.pending = nil

	for _, s := range d.synchronizers {
		s.DidChange(d, changes)
	}
}
