package buffer

import (
	"fmt"
	"slices"
)

// ChangeType categorizes the type of change made to the buffer.
type ChangeType uint8

const (
	ChangeInsert  ChangeType = iota // Text was inserted
	ChangeDelete                    // Text was deleted
	ChangeReplace                   // Text was replaced
	ChangeNone                      // Nothing was replaced or inserted
)

// String returns a string representation of the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeReplace:
		return "replace"
	case ChangeNone:
		return "none"
	default:
		return "unknown"
	}
}

// Change is an atomic replacement of OldText at OldSpan by NewText at
// NewSpan. Both sides carry their byte spans so consumers that address
// content by bytes need no access to the buffer.
//
// A pure deletion has an empty NewText and a zero-width NewSpan at the
// start of OldSpan; a pure insertion mirrors that on the old side.
type Change struct {
	OldSpan     Span
	OldByteSpan ByteSpan
	OldText     []rune

	NewSpan     Span
	NewByteSpan ByteSpan
	NewText     []rune

	// StartByteCol is the byte column of the start position within its row.
	StartByteCol int
}

// NewChange builds the Change that replaces span with text in b.
// It snapshots the old text and byte offsets, so it must be called
// before the change is applied. It panics if span is invalid.
func NewChange(b *Buffer, span Span, text string) Change {
	newText := runes(text)
	oldBytes := b.SpanToByteSpan(span)
	newEnd := spanEnd(span.Start, newText)

	return Change{
		OldSpan:      span,
		OldByteSpan:  oldBytes,
		OldText:      b.TextAt(span),
		NewSpan:      Span{Start: span.Start, End: newEnd},
		NewByteSpan:  ByteSpan{Start: oldBytes.Start, End: oldBytes.Start + runesByteLen(newText)},
		NewText:      newText,
		StartByteCol: oldBytes.Start - b.LineStartOffset(span.Start.Row),
	}
}

// Invert returns the change that undoes c: the old and new sides swap.
// Inverting twice yields a change equal to c.
func (c Change) Invert() Change {
	return Change{
		OldSpan:      c.NewSpan,
		OldByteSpan:  c.NewByteSpan,
		OldText:      c.NewText,
		NewSpan:      c.OldSpan,
		NewByteSpan:  c.OldByteSpan,
		NewText:      c.OldText,
		StartByteCol: c.StartByteCol,
	}
}

// Type classifies the change.
func (c Change) Type() ChangeType {
	switch {
	case len(c.OldText) == 0 && len(c.NewText) == 0:
		return ChangeNone
	case len(c.OldText) == 0:
		return ChangeInsert
	case len(c.NewText) == 0:
		return ChangeDelete
	default:
		return ChangeReplace
	}
}

// IsNoOp returns true if this change does nothing.
func (c Change) IsNoOp() bool {
	return c.Type() == ChangeNone
}

// Equal reports whether two changes are structurally identical.
func (c Change) Equal(other Change) bool {
	return c.OldSpan == other.OldSpan &&
		c.OldByteSpan == other.OldByteSpan &&
		c.NewSpan == other.NewSpan &&
		c.NewByteSpan == other.NewByteSpan &&
		c.StartByteCol == other.StartByteCol &&
		slices.Equal(c.OldText, other.OldText) &&
		slices.Equal(c.NewText, other.NewText)
}

// String returns a human-readable representation of the change.
func (c Change) String() string {
	switch c.Type() {
	case ChangeInsert:
		return fmt.Sprintf("Insert(%s, %q)", c.OldSpan.Start, string(c.NewText))
	case ChangeDelete:
		return fmt.Sprintf("Delete%s", c.OldSpan)
	default:
		return fmt.Sprintf("Replace%s with %q", c.OldSpan, string(c.NewText))
	}
}
