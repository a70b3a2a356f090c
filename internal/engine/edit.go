package engine

import (
	"fmt"
	"slices"
	"sort"
	"unicode"

	"github.com/dshills/quill/internal/engine/buffer"
)

// TextEdit replaces Span with Text. Edits from language servers are
// converted to this form before they are applied.
type TextEdit struct {
	Span buffer.Span
	Text string
}

// Replace replaces span with text and records the change. The change
// stays uncommitted until CommitChanges. It panics if span is invalid.
func (d *Document) Replace(span buffer.Span, text string) buffer.Change {
	c := buffer.NewChange(d.buf, span, text)
	before := d.buf.Cursor()
	d.apply(c)
	d.AppendChange(c, before)
	return c
}

// InsertText inserts text at the cursor, replacing the selection if one
// is active, and leaves the cursor after the inserted text.
func (d *Document) InsertText(text string) {
	span := buffer.Span{Start: d.buf.Cursor(), End: d.buf.Cursor()}
	if sel, ok := d.buf.Selection(); ok {
		span = sel
		d.buf.ClearSelection()
	}

	c := d.Replace(span, text)
	d.buf.MoveCursor(c.NewSpan.End)
}

// DeleteChar deletes the codepoint under the cursor. At the end of a row
// it joins the next row onto this one. The cursor does not move. An
// active non-empty selection is deleted instead.
func (d *Document) DeleteChar() bool {
	if d.DeleteSelection() {
		return true
	}
	cur := d.buf.Cursor()
	var span buffer.Span

	switch {
	case cur.Col < d.buf.LineLen(cur.Row):
		span = buffer.Span{Start: cur, End: buffer.Cursor{Row: cur.Row, Col: cur.Col + 1}}
	case cur.Row < d.buf.LineCount()-1:
		span = buffer.Span{Start: cur, End: buffer.Cursor{Row: cur.Row + 1, Col: 0}}
	default:
		return false
	}

	d.Replace(span, "")
	d.buf.MoveCursor(cur)
	return true
}

// DeletePrevChar deletes the codepoint before the cursor. At the start
// of a row it joins this row onto the previous one. An active non-empty
// selection is deleted instead.
func (d *Document) DeletePrevChar() bool {
	if d.DeleteSelection() {
		return true
	}
	cur := d.buf.Cursor()
	var span buffer.Span

	switch {
	case cur.Col > 0:
		span = buffer.Span{Start: buffer.Cursor{Row: cur.Row, Col: cur.Col - 1}, End: cur}
	case cur.Row > 0:
		prev := cur.Row - 1
		span = buffer.Span{Start: buffer.Cursor{Row: prev, Col: d.buf.LineLen(prev)}, End: cur}
	default:
		return false
	}

	d.Replace(span, "")
	d.buf.MoveCursor(span.Start)
	return true
}

// DeleteSelection removes the selected text and collapses the selection.
func (d *Document) DeleteSelection() bool {
	sel, ok := d.buf.Selection()
	if !ok {
		return false
	}
	d.buf.ClearSelection()
	if sel.IsEmpty() {
		return false
	}

	d.Replace(sel, "")
	d.buf.MoveCursor(sel.Start)
	return true
}

// JoinLineBelow joins row+1 onto row. Leading whitespace of the lower
// row is dropped and a single space separates the two when both sides
// have text. The cursor lands on the join point.
func (d *Document) JoinLineBelow(row int) bool {
	if row < 0 || row >= d.buf.LineCount()-1 {
		return false
	}

	lower := []rune(d.buf.LineText(row + 1))
	indent := 0
	for indent < len(lower) && unicode.IsSpace(lower[indent]) {
		indent++
	}

	sep := ""
	if d.buf.LineLen(row) > 0 && indent < len(lower) {
		sep = " "
	}

	start := buffer.Cursor{Row: row, Col: d.buf.LineLen(row)}
	d.Replace(buffer.Span{Start: start, End: buffer.Cursor{Row: row + 1, Col: indent}}, sep)
	d.buf.MoveCursor(start)
	return true
}

// ValidateTextEdits reports whether ApplyTextEdits would accept edits
// against the current content, without changing anything.
func (d *Document) ValidateTextEdits(edits []TextEdit) error {
	if d.closed {
		return ErrClosed
	}
	_, err := d.orderTextEdits(edits)
	return err
}

// orderTextEdits checks every span and returns the edits in the order
// they are applied: from the end, so earlier spans stay valid.
// Insertions at the same position keep their order because later ones
// go in first.
func (d *Document) orderTextEdits(edits []TextEdit) ([]TextEdit, error) {
	for _, e := range edits {
		if !d.buf.ValidSpan(e.Span) {
			return nil, fmt.Errorf("%w: %s", ErrSpanInvalid, e.Span)
		}
	}

	sorted := slices.Clone(edits)
	slices.Reverse(sorted)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[j].Span.Start.Before(sorted[i].Span.Start)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Span.End.After(sorted[i-1].Span.Start) {
			return nil, ErrEditsOverlap
		}
	}
	return sorted, nil
}

// ApplyTextEdits applies a batch of edits addressed against the current
// content and commits them as one changelist. Edits must not overlap.
func (d *Document) ApplyTextEdits(edits []TextEdit) error {
	if d.closed {
		return ErrClosed
	}
	if len(edits) == 0 {
		return nil
	}

	sorted, err := d.orderTextEdits(edits)
	if err != nil {
		return err
	}

	d.CommitChanges()
	cur := d.buf.Cursor()
	for _, e := range sorted {
		d.Replace(e.Span, e.Text)
	}
	d.buf.MoveCursor(cur)
	d.CommitChanges()
	return nil
}
