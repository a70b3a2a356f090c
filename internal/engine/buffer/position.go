package buffer

import "fmt"

// Cursor is a zero-based (row, column) position in a buffer.
// The column counts codepoints from the start of the row, not bytes.
type Cursor struct {
	Row int
	Col int
}

// String returns a human-readable representation of the cursor.
func (c Cursor) String() string {
	return fmt.Sprintf("(%d:%d)", c.Row, c.Col)
}

// Compare returns -1 if c < other, 0 if c == other, 1 if c > other.
// Cursors order by row first, then by column.
func (c Cursor) Compare(other Cursor) int {
	if c.Row < other.Row {
		return -1
	}
	if c.Row > other.Row {
		return 1
	}
	if c.Col < other.Col {
		return -1
	}
	if c.Col > other.Col {
		return 1
	}
	return 0
}

// Before returns true if c comes before other.
func (c Cursor) Before(other Cursor) bool {
	return c.Compare(other) < 0
}

// After returns true if c comes after other.
func (c Cursor) After(other Cursor) bool {
	return c.Compare(other) > 0
}

// Offset returns c shifted componentwise by d.
func (c Cursor) Offset(d Cursor) Cursor {
	return Cursor{Row: c.Row + d.Row, Col: c.Col + d.Col}
}

// Negate returns the componentwise negation of c.
func (c Cursor) Negate() Cursor {
	return Cursor{Row: -c.Row, Col: -c.Col}
}

// ByteSpan is a half-open range of byte offsets into a buffer's
// serialized content.
type ByteSpan struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s ByteSpan) Len() int {
	return s.End - s.Start
}

// String returns a human-readable representation of the byte span.
func (s ByteSpan) String() string {
	return fmt.Sprintf("[%d:%d)", s.Start, s.End)
}
