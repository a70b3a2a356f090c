package buffer

import (
	"errors"
	"strings"
	"testing"
)

func TestNewBuffer(t *testing.T) {
	b := NewBuffer()

	if !b.IsEmpty() {
		t.Error("new buffer should be empty")
	}

	if b.Len() != 0 {
		t.Errorf("expected length 0, got %d", b.Len())
	}

	if b.LineCount() != 1 {
		t.Errorf("expected 1 line, got %d", b.LineCount())
	}
}

func TestNewBufferFromStringMultiline(t *testing.T) {
	b := NewBufferFromString("line1\nline2\nline3")

	if b.LineCount() != 3 {
		t.Errorf("expected 3 lines, got %d", b.LineCount())
	}

	for i, want := range []string{"line1", "line2", "line3"} {
		if got := b.LineText(i); got != want {
			t.Errorf("line %d: expected %q, got %q", i, want, got)
		}
	}
}

func TestLineEndingNormalization(t *testing.T) {
	b := NewBufferFromString("a\r\nb\r\nc")

	if b.Text() != "a\nb\nc" {
		t.Errorf("expected normalized text, got %q", b.Text())
	}
	if b.LineEnding() != LineEndingCRLF {
		t.Errorf("expected CRLF detection, got %s", b.LineEnding())
	}
	if b.Serialize() != "a\r\nb\r\nc" {
		t.Errorf("expected CRLF on serialize, got %q", b.Serialize())
	}
}

func TestDetectLineEnding(t *testing.T) {
	tests := []struct {
		text string
		want LineEnding
	}{
		{"", LineEndingLF},
		{"no breaks", LineEndingLF},
		{"a\nb\n", LineEndingLF},
		{"a\r\nb\r\nc\n", LineEndingCRLF},
		{"a\r\nb\n", LineEndingCRLF},
		{"a\rb\rc\n", LineEndingCR},
		{"a\rb\n", LineEndingCR},
		{"a\r\nb\nc\nd\r", LineEndingLF},
	}

	for _, tt := range tests {
		if got := DetectLineEnding(tt.text); got != tt.want {
			t.Errorf("DetectLineEnding(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestNewBufferFromReader(t *testing.T) {
	b, err := NewBufferFromReader(strings.NewReader("x\ny"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.LineCount() != 2 {
		t.Errorf("expected 2 lines, got %d", b.LineCount())
	}
}

func TestCursorToBytePos(t *testing.T) {
	b := NewBufferFromString("фx\nab")

	tests := []struct {
		cursor Cursor
		want   int
	}{
		{Cursor{0, 0}, 0},
		{Cursor{0, 1}, 2},
		{Cursor{0, 2}, 3},
		{Cursor{1, 0}, 4},
		{Cursor{1, 2}, 6},
	}

	for _, tt := range tests {
		if got := b.CursorToBytePos(tt.cursor); got != tt.want {
			t.Errorf("CursorToBytePos(%s) = %d, want %d", tt.cursor, got, tt.want)
		}
	}
}

func TestBytePosToCursor(t *testing.T) {
	b := NewBufferFromString("фx\nab")

	tests := []struct {
		offset int
		want   Cursor
	}{
		{0, Cursor{0, 0}},
		{2, Cursor{0, 1}},
		{4, Cursor{1, 0}},
		{6, Cursor{1, 2}},
	}

	for _, tt := range tests {
		got, err := b.BytePosToCursor(tt.offset)
		if err != nil {
			t.Fatalf("BytePosToCursor(%d): %v", tt.offset, err)
		}
		if got != tt.want {
			t.Errorf("BytePosToCursor(%d) = %s, want %s", tt.offset, got, tt.want)
		}
	}

	if _, err := b.BytePosToCursor(99); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestTextAt(t *testing.T) {
	b := NewBufferFromString("hello\nworld\n!")

	tests := []struct {
		name string
		span Span
		want string
	}{
		{"single line", Span{Cursor{0, 1}, Cursor{0, 4}}, "ell"},
		{"empty", Span{Cursor{1, 2}, Cursor{1, 2}}, ""},
		{"across rows", Span{Cursor{0, 3}, Cursor{1, 2}}, "lo\nwo"},
		{"whole", Span{Cursor{0, 0}, Cursor{2, 1}}, "hello\nworld\n!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(b.TextAt(tt.span)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextAtInvalidSpanPanics(t *testing.T) {
	b := NewBufferFromString("abc")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrSpanInvalid) {
			t.Errorf("expected ErrSpanInvalid, got %v", r)
		}
	}()

	b.TextAt(Span{Cursor{0, 0}, Cursor{3, 0}})
}

func TestMoveCursorClamps(t *testing.T) {
	b := NewBufferFromString("abc\nde")

	tests := []struct {
		target Cursor
		want   Cursor
	}{
		{Cursor{0, 1}, Cursor{0, 1}},
		{Cursor{-4, 1}, Cursor{0, 1}},
		{Cursor{1, 10}, Cursor{1, 2}},
		{Cursor{9, 0}, Cursor{1, 0}},
		{Cursor{0, -1}, Cursor{0, 0}},
	}

	for _, tt := range tests {
		if got := b.MoveCursor(tt.target); got != tt.want {
			t.Errorf("MoveCursor(%s) = %s, want %s", tt.target, got, tt.want)
		}
	}
}

func TestSelectionExtendsFromCursorEndpoint(t *testing.T) {
	b := NewBufferFromString("abcdef")
	b.MoveCursor(Cursor{0, 3})
	b.StartSelection()

	b.MoveCursor(Cursor{0, 5})
	sel, ok := b.Selection()
	if !ok {
		t.Fatal("expected active selection")
	}
	if sel != (Span{Cursor{0, 3}, Cursor{0, 5}}) {
		t.Errorf("unexpected selection %s", sel)
	}

	// Crossing the anchor flips the endpoints.
	b.MoveCursor(Cursor{0, 1})
	sel, _ = b.Selection()
	if sel != (Span{Cursor{0, 1}, Cursor{0, 3}}) {
		t.Errorf("unexpected selection after crossing anchor %s", sel)
	}

	b.MoveCursor(Cursor{0, 2})
	sel, _ = b.Selection()
	if sel != (Span{Cursor{0, 2}, Cursor{0, 3}}) {
		t.Errorf("expected start to follow cursor, got %s", sel)
	}

	b.ClearSelection()
	if _, ok := b.Selection(); ok {
		t.Error("expected selection to be cleared")
	}
}

func TestApplyClampsCursor(t *testing.T) {
	b := NewBufferFromString("abc\ndef")
	b.MoveCursor(Cursor{1, 3})

	c := NewChange(b, Span{Cursor{0, 3}, Cursor{1, 3}}, "")
	b.Apply(c)

	if b.Text() != "abc" {
		t.Fatalf("unexpected text %q", b.Text())
	}
	if b.Cursor() != (Cursor{0, 3}) {
		t.Errorf("expected cursor clamped to (0:3), got %s", b.Cursor())
	}
}
