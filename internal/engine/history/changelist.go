package history

import (
	"time"

	"github.com/dshills/quill/internal/engine/buffer"
)

// Applier is the target that undo and redo write changes to.
// *buffer.Buffer satisfies it; the engine wraps it to observe changes.
type Applier interface {
	Apply(c buffer.Change)
	MoveCursor(target buffer.Cursor) buffer.Cursor
}

// Changelist is an ordered group of changes undone and redone as a unit.
type Changelist struct {
	Changes      []buffer.Change
	CursorBefore buffer.Cursor
	CursorAfter  buffer.Cursor
	Timestamp    time.Time
}

// Len returns the number of changes.
func (cl *Changelist) Len() int {
	return len(cl.Changes)
}

// Inverted returns the changes that undo the changelist, in the order
// they must be applied: last change first, each inverted.
func (cl *Changelist) Inverted() []buffer.Change {
	out := make([]buffer.Change, len(cl.Changes))
	for i, c := range cl.Changes {
		out[len(cl.Changes)-1-i] = c.Invert()
	}
	return out
}
