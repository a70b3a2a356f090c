package history

import (
	"time"

	"github.com/dshills/quill/internal/engine/buffer"
)

// DefaultLimit is the number of changelists kept when no limit is given.
const DefaultLimit = 1000

// History manages the uncommitted change list and the committed
// changelists of one document.
//
// History is not safe for concurrent use.
type History struct {
	uncommitted  []buffer.Change
	cursorBefore buffer.Cursor

	// lists[:index] can be undone, lists[index:] can be redone.
	lists []*Changelist
	index int

	limit int
}

// New creates a history keeping at most limit changelists.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Append records an already applied change in the uncommitted list.
// cursorBefore is remembered when it starts a new changelist.
func (h *History) Append(c buffer.Change, cursorBefore buffer.Cursor) {
	if len(h.uncommitted) == 0 {
		h.cursorBefore = cursorBefore
	}
	h.uncommitted = append(h.uncommitted, c)
}

// Uncommitted returns the changes appended since the last commit.
func (h *History) Uncommitted() []buffer.Change {
	return h.uncommitted
}

// HasUncommitted returns true if changes are waiting to be committed.
func (h *History) HasUncommitted() bool {
	return len(h.uncommitted) > 0
}

// Commit closes the uncommitted list into a changelist and discards the
// redo side. It returns false when there was nothing to commit.
func (h *History) Commit(cursorAfter buffer.Cursor) (*Changelist, bool) {
	if len(h.uncommitted) == 0 {
		return nil, false
	}

	cl := &Changelist{
		Changes:      h.uncommitted,
		CursorBefore: h.cursorBefore,
		CursorAfter:  cursorAfter,
		Timestamp:    time.Now(),
	}
	h.uncommitted = nil

	h.lists = append(h.lists[:h.index], cl)
	h.index = len(h.lists)

	if len(h.lists) > h.limit {
		excess := len(h.lists) - h.limit
		h.lists = h.lists[excess:]
		h.index -= excess
	}

	return cl, true
}

// Undo applies the most recent changelist inverted, last change first,
// and restores the cursor it started from. It returns the changes that
// were applied, or false when there is nothing to undo.
func (h *History) Undo(a Applier) ([]buffer.Change, bool) {
	if h.index == 0 {
		return nil, false
	}

	h.index--
	cl := h.lists[h.index]

	applied := cl.Inverted()
	for _, c := range applied {
		a.Apply(c)
	}
	a.MoveCursor(cl.CursorBefore)

	return applied, true
}

// Redo reapplies the next changelist in its original order and restores
// the cursor it ended at. It returns false when there is nothing to redo.
func (h *History) Redo(a Applier) ([]buffer.Change, bool) {
	if h.index >= len(h.lists) {
		return nil, false
	}

	cl := h.lists[h.index]
	h.index++

	for _, c := range cl.Changes {
		a.Apply(c)
	}
	a.MoveCursor(cl.CursorAfter)

	return cl.Changes, true
}

// CanUndo returns true if there are changelists to undo.
func (h *History) CanUndo() bool {
	return h.index > 0
}

// CanRedo returns true if there are changelists to redo.
func (h *History) CanRedo() bool {
	return h.index < len(h.lists)
}

// UndoCount returns the number of changelists that can be undone.
func (h *History) UndoCount() int {
	return h.index
}

// RedoCount returns the number of changelists that can be redone.
func (h *History) RedoCount() int {
	return len(h.lists) - h.index
}

// Index returns the position separating undo from redo.
func (h *History) Index() int {
	return h.index
}

// SetLimit changes the number of changelists kept, trimming the oldest.
func (h *History) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	h.limit = limit

	if h.index > limit {
		excess := h.index - limit
		h.lists = h.lists[excess:]
		h.index -= excess
	}
	if len(h.lists) > limit {
		h.lists = h.lists[:limit]
	}
}

// Clear drops all history, committed and uncommitted.
func (h *History) Clear() {
	h.uncommitted = nil
	h.lists = nil
	h.index = 0
}
