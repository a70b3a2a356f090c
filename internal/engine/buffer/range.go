package buffer

import "fmt"

// Span is a half-open range of cursor positions: [Start, End).
type Span struct {
	Start Cursor // Inclusive start position
	End   Cursor // Exclusive end position
}

// NewSpan creates a span covering a and b, in whichever order they come.
func NewSpan(a, b Cursor) Span {
	if b.Before(a) {
		a, b = b, a
	}
	return Span{Start: a, End: b}
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	return fmt.Sprintf("[%s:%s)", s.Start.String(), s.End.String())
}

// IsEmpty returns true if start equals end.
func (s Span) IsEmpty() bool {
	return s.Start.Compare(s.End) == 0
}

// IsValid returns true if start <= end.
func (s Span) IsValid() bool {
	return s.Start.Compare(s.End) <= 0
}

// Contains returns true if the given position is within the span.
func (s Span) Contains(c Cursor) bool {
	return c.Compare(s.Start) >= 0 && c.Compare(s.End) < 0
}

// IsSingleLine returns true if the span covers only one row.
func (s Span) IsSingleLine() bool {
	return s.Start.Row == s.End.Row
}

// Overlaps returns true if this span overlaps with another span.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// spanEnd returns the position reached after writing text starting at start.
func spanEnd(start Cursor, text []rune) Cursor {
	end := start
	for _, r := range text {
		if r == '\n' {
			end.Row++
			end.Col = 0
			continue
		}
		end.Col++
	}
	return end
}
