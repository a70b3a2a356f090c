package buffer

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrSpanInvalid      = errors.New("invalid span")
)

// LineEnding specifies the line ending style used when serializing.
type LineEnding uint8

const (
	LineEndingLF   LineEnding = iota // Unix: \n
	LineEndingCRLF                   // Windows: \r\n
	LineEndingCR                     // Old Mac: \r
)

// String returns the string representation of the line ending.
func (le LineEnding) String() string {
	switch le {
	case LineEndingLF:
		return "\\n"
	case LineEndingCRLF:
		return "\\r\\n"
	case LineEndingCR:
		return "\\r"
	default:
		return "\\n"
	}
}

// Sequence returns the actual line ending characters.
func (le LineEnding) Sequence() string {
	switch le {
	case LineEndingCRLF:
		return "\r\n"
	case LineEndingCR:
		return "\r"
	default:
		return "\n"
	}
}

// Buffer holds document content as rows of codepoints together with a
// byte serialization that is rebuilt lazily after mutation.
//
// Buffer is not safe for concurrent use. Callers serialize access with
// the editor lock.
type Buffer struct {
	lines [][]rune

	// raw and offsets mirror lines; dirty marks them stale.
	raw     []byte
	offsets []int
	dirty   bool

	lineEnding LineEnding
	tabWidth   int

	cursor        Cursor
	selection     Span
	selecting     bool
	cursorAtStart bool
}

// NewBuffer creates a new buffer holding a single empty row.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		lines:      [][]rune{nil},
		dirty:      true,
		lineEnding: LineEndingLF,
		tabWidth:   4,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NewBufferFromString creates a buffer with initial content.
// Line endings are detected from s unless an option overrides them, and
// stored internally as \n.
func NewBufferFromString(s string, opts ...Option) *Buffer {
	b := NewBuffer(append([]Option{WithDetectedLineEnding(s)}, opts...)...)
	b.setText(normalizeLineEndings(s))
	return b
}

// NewBufferFromReader creates a buffer from an io.Reader.
func NewBufferFromReader(r io.Reader, opts ...Option) (*Buffer, error) {
	// CRLF sequences may be split across reads, so normalize the whole input.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewBufferFromString(string(data), opts...), nil
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func (b *Buffer) setText(s string) {
	parts := strings.Split(s, "\n")
	b.lines = make([][]rune, len(parts))
	for i, p := range parts {
		b.lines[i] = runes(p)
	}
	b.dirty = true
}

// sync rebuilds the byte serialization and the row offset table.
func (b *Buffer) sync() {
	if !b.dirty {
		return
	}

	size := 0
	for _, line := range b.lines {
		for _, r := range line {
			size += utf8.RuneLen(r)
		}
		size++
	}

	// Allocate fresh storage so slices handed out by Bytes stay stable.
	raw := make([]byte, 0, size)
	offsets := make([]int, len(b.lines))
	for i, line := range b.lines {
		offsets[i] = len(raw)
		for _, r := range line {
			raw = utf8.AppendRune(raw, r)
		}
		if i < len(b.lines)-1 {
			raw = append(raw, '\n')
		}
	}

	b.raw = raw
	b.offsets = offsets
	b.dirty = false
}

// Read Operations

// Text returns the full buffer content with \n line endings.
func (b *Buffer) Text() string {
	b.sync()
	return string(b.raw)
}

// Bytes returns the byte serialization of the buffer.
// The returned slice must not be modified.
func (b *Buffer) Bytes() []byte {
	b.sync()
	return b.raw
}

// Serialize returns the content using the buffer's line ending style.
func (b *Buffer) Serialize() string {
	text := b.Text()
	if b.lineEnding == LineEndingLF {
		return text
	}
	return strings.ReplaceAll(text, "\n", b.lineEnding.Sequence())
}

// Len returns the length of the buffer in bytes.
func (b *Buffer) Len() int {
	b.sync()
	return len(b.raw)
}

// IsEmpty returns true if the buffer holds no text.
func (b *Buffer) IsEmpty() bool {
	return len(b.lines) == 1 && len(b.lines[0]) == 0
}

// LineCount returns the number of rows. An empty buffer has one row.
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// LineText returns the text of a row without its line terminator.
func (b *Buffer) LineText(row int) string {
	if row < 0 || row >= len(b.lines) {
		return ""
	}
	return string(b.lines[row])
}

// LineLen returns the number of codepoints in a row.
func (b *Buffer) LineLen(row int) int {
	if row < 0 || row >= len(b.lines) {
		return 0
	}
	return len(b.lines[row])
}

// LineStartOffset returns the byte offset of the first byte of row.
func (b *Buffer) LineStartOffset(row int) int {
	b.sync()
	if row < 0 {
		return 0
	}
	if row >= len(b.offsets) {
		return len(b.raw)
	}
	return b.offsets[row]
}

// ValidCursor reports whether c addresses an existing row and a column
// no greater than the row's length.
func (b *Buffer) ValidCursor(c Cursor) bool {
	return c.Row >= 0 && c.Row < len(b.lines) && c.Col >= 0 && c.Col <= len(b.lines[c.Row])
}

// ValidSpan reports whether both endpoints are valid and Start <= End.
func (b *Buffer) ValidSpan(s Span) bool {
	return s.IsValid() && b.ValidCursor(s.Start) && b.ValidCursor(s.End)
}

// Clamp returns the nearest valid position to c.
func (b *Buffer) Clamp(c Cursor) Cursor {
	if c.Row < 0 {
		c.Row = 0
	}
	if c.Row >= len(b.lines) {
		c.Row = len(b.lines) - 1
	}
	if c.Col < 0 {
		c.Col = 0
	}
	if n := len(b.lines[c.Row]); c.Col > n {
		c.Col = n
	}
	return c
}

// End returns the position just past the last codepoint.
func (b *Buffer) End() Cursor {
	last := len(b.lines) - 1
	return Cursor{Row: last, Col: len(b.lines[last])}
}

// TextAt returns the codepoints covered by span.
// It panics if span is not valid for this buffer.
func (b *Buffer) TextAt(span Span) []rune {
	b.mustValid(span)

	if span.IsSingleLine() {
		return copyRunes(b.lines[span.Start.Row][span.Start.Col:span.End.Col])
	}

	var out []rune
	out = append(out, b.lines[span.Start.Row][span.Start.Col:]...)
	for row := span.Start.Row + 1; row < span.End.Row; row++ {
		out = append(out, '\n')
		out = append(out, b.lines[row]...)
	}
	out = append(out, '\n')
	out = append(out, b.lines[span.End.Row][:span.End.Col]...)
	return out
}

// CursorToBytePos converts a position into a byte offset in Bytes().
// It panics if c is not a valid position.
func (b *Buffer) CursorToBytePos(c Cursor) int {
	if !b.ValidCursor(c) {
		panic(fmt.Errorf("%w: %s", ErrOffsetOutOfRange, c))
	}
	b.sync()
	return b.offsets[c.Row] + runesByteLen(b.lines[c.Row][:c.Col])
}

// BytePosToCursor converts a byte offset into a position.
// Offsets inside a multibyte codepoint resolve to that codepoint.
func (b *Buffer) BytePosToCursor(offset int) (Cursor, error) {
	b.sync()
	if offset < 0 || offset > len(b.raw) {
		return Cursor{}, ErrOffsetOutOfRange
	}

	row, found := slices.BinarySearch(b.offsets, offset)
	if !found {
		row--
	}
	col := utf8.RuneCount(b.raw[b.offsets[row]:offset])
	return Cursor{Row: row, Col: col}, nil
}

// SpanToByteSpan converts a span into byte offsets.
func (b *Buffer) SpanToByteSpan(s Span) ByteSpan {
	return ByteSpan{Start: b.CursorToBytePos(s.Start), End: b.CursorToBytePos(s.End)}
}

// LineEnding returns the buffer's serialization line ending.
func (b *Buffer) LineEnding() LineEnding {
	return b.lineEnding
}

// TabWidth returns the buffer's tab width.
func (b *Buffer) TabWidth() int {
	return b.tabWidth
}

// SetTabWidth changes the tab width. Non-positive widths are ignored.
func (b *Buffer) SetTabWidth(width int) {
	if width > 0 {
		b.tabWidth = width
	}
}

// Write Operations

// Apply splices c.NewText over c.OldSpan.
// It panics if c.OldSpan is not valid for this buffer; a Change is only
// meaningful against the content it was built from.
func (b *Buffer) Apply(c Change) {
	b.mustValid(c.OldSpan)
	b.splice(c.OldSpan, c.NewText)

	b.cursor = b.Clamp(b.cursor)
	if b.selecting {
		b.selection = Span{Start: b.Clamp(b.selection.Start), End: b.Clamp(b.selection.End)}
	}
}

// splice replaces span with text. Rows of text become rows of the buffer;
// removing a row boundary joins the rows on either side.
func (b *Buffer) splice(span Span, text []rune) {
	head := b.lines[span.Start.Row][:span.Start.Col]
	tail := b.lines[span.End.Row][span.End.Col:]

	parts := splitRows(text)
	repl := make([][]rune, len(parts))

	first := make([]rune, 0, len(head)+len(parts[0]))
	first = append(first, head...)
	first = append(first, parts[0]...)
	repl[0] = first
	for i := 1; i < len(parts); i++ {
		repl[i] = copyRunes(parts[i])
	}

	last := len(repl) - 1
	repl[last] = append(repl[last], tail...)
	if len(repl[last]) == 0 {
		repl[last] = nil
	}

	b.lines = slices.Replace(b.lines, span.Start.Row, span.End.Row+1, repl...)
	b.dirty = true
}

func (b *Buffer) mustValid(s Span) {
	if !b.ValidSpan(s) {
		panic(fmt.Errorf("%w: %s", ErrSpanInvalid, s))
	}
}

func splitRows(text []rune) [][]rune {
	parts := make([][]rune, 0, 1)
	start := 0
	for i, r := range text {
		if r == '\n' {
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	return append(parts, text[start:])
}

// runes converts s to codepoints, returning nil for the empty string.
func runes(s string) []rune {
	if s == "" {
		return nil
	}
	return []rune(s)
}

func copyRunes(r []rune) []rune {
	if len(r) == 0 {
		return nil
	}
	return slices.Clone(r)
}

func runesByteLen(rs []rune) int {
	n := 0
	for _, r := range rs {
		n += utf8.RuneLen(r)
	}
	return n
}
