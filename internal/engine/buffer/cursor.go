package buffer

// Cursor returns the current cursor position.
func (b *Buffer) Cursor() Cursor {
	return b.cursor
}

// MoveCursor moves the cursor to target, clamped to a valid position.
// A negative row clamps to the first row and a column past the end of
// the row clamps to the row's length. When a selection is active, the
// endpoint the cursor last occupied follows it.
func (b *Buffer) MoveCursor(target Cursor) Cursor {
	c := b.Clamp(target)
	b.cursor = c

	if b.selecting {
		if b.cursorAtStart {
			b.selection.Start = c
		} else {
			b.selection.End = c
		}
		if b.selection.End.Before(b.selection.Start) {
			b.selection.Start, b.selection.End = b.selection.End, b.selection.Start
			b.cursorAtStart = !b.cursorAtStart
		}
	}

	return c
}

// MoveCursorBy moves the cursor by a row/column delta.
func (b *Buffer) MoveCursorBy(delta Cursor) Cursor {
	return b.MoveCursor(b.cursor.Offset(delta))
}

// StartSelection begins a selection anchored at the cursor.
func (b *Buffer) StartSelection() {
	b.selection = Span{Start: b.cursor, End: b.cursor}
	b.selecting = true
	b.cursorAtStart = false
}

// ClearSelection drops the active selection, if any.
func (b *Buffer) ClearSelection() {
	b.selecting = false
	b.selection = Span{}
}

// Selection returns the active selection.
func (b *Buffer) Selection() (Span, bool) {
	return b.selection, b.selecting
}
