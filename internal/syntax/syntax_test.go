package syntax

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/quill/internal/engine/buffer"
)

const goSource = "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"

func TestClassifierResolve(t *testing.T) {
	tests := []struct {
		name  string
		want  TokenType
		found bool
	}{
		{"keyword", TokenKeyword, true},
		{"keyword.control", TokenKeywordControl, true},
		{"keyword.control.conditional", TokenKeywordControl, true},
		{"keyword.storage", TokenKeyword, true},
		{"function.method.call", TokenFunctionMethod, true},
		{"bogus", TokenNone, false},
		{"bogus.keyword", TokenNone, false},
		{"", TokenNone, false},
	}

	for _, tt := range tests {
		got, found := TokenClassifier.Resolve(tt.name)
		if got != tt.want || found != tt.found {
			t.Errorf("Resolve(%q) = %s, %v; want %s, %v", tt.name, got, found, tt.want, tt.found)
		}
	}
}

func TestClassifierCustomValues(t *testing.T) {
	c := NewClassifier("plain")
	c.Add("markup", "md")
	c.Add("markup.heading", "h")

	if v, _ := c.Resolve("markup.heading.1"); v != "h" {
		t.Errorf("expected h, got %q", v)
	}
	if v, _ := c.Resolve("markup.bold"); v != "md" {
		t.Errorf("expected md, got %q", v)
	}
	if v, ok := c.Resolve("string"); v != "plain" || ok {
		t.Errorf("expected fallback, got %q, %v", v, ok)
	}
}

func TestEditInputMultibyte(t *testing.T) {
	b := buffer.NewBufferFromString("a\nфx")
	c := buffer.NewChange(b, buffer.Span{
		Start: buffer.Cursor{Row: 1, Col: 1},
		End:   buffer.Cursor{Row: 1, Col: 2},
	}, "yy\nz")

	e := EditInput(c)

	if e.StartIndex != 4 || e.OldEndIndex != 5 || e.NewEndIndex != 8 {
		t.Errorf("unexpected indices %d %d %d", e.StartIndex, e.OldEndIndex, e.NewEndIndex)
	}
	if e.StartPoint != (sitter.Point{Row: 1, Column: 2}) {
		t.Errorf("unexpected start point %+v", e.StartPoint)
	}
	if e.OldEndPoint != (sitter.Point{Row: 1, Column: 3}) {
		t.Errorf("unexpected old end point %+v", e.OldEndPoint)
	}
	if e.NewEndPoint != (sitter.Point{Row: 2, Column: 1}) {
		t.Errorf("unexpected new end point %+v", e.NewEndPoint)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	if _, ok := r.Lookup("go"); !ok {
		t.Fatal("expected go to be registered")
	}
	lang, ok := r.ForPath("/src/main.GO")
	if !ok || lang.Name != "go" {
		t.Errorf("expected go for .GO extension, got %v", lang)
	}
	if _, ok := r.ForPath("README"); ok {
		t.Error("expected no language for a path without extension")
	}

	r.Restrict([]string{"rust"})
	if len(r.Languages()) != 0 {
		t.Errorf("expected no languages after restrict, got %v", r.Languages())
	}
}

func newGoState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(Go())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestHighlights(t *testing.T) {
	s := newGoState(t)
	if err := s.Reparse(context.Background(), []byte(goSource)); err != nil {
		t.Fatalf("Reparse: %v", err)
	}

	spans := s.Highlights()
	if len(spans) == 0 {
		t.Fatal("expected highlight spans")
	}

	first := spans[0]
	if first.Start != 0 || first.End != 7 || first.Token != TokenKeyword {
		t.Errorf("expected keyword at [0,7), got %+v", first)
	}

	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End {
			t.Errorf("spans %d and %d overlap: %+v %+v", i-1, i, spans[i-1], spans[i])
		}
	}

	// "func" starts the third row.
	at, ok := s.HighlightAt(14)
	if !ok || at.Token != TokenKeywordFunction {
		t.Errorf("expected keyword.function at 14, got %+v", at)
	}

	if len(s.Indents()) == 0 {
		t.Error("expected indent spans for a block")
	}
}

func TestIncrementalReparseMatchesFreshParse(t *testing.T) {
	b := buffer.NewBufferFromString(goSource)
	s := newGoState(t)
	ctx := context.Background()

	if err := s.Reparse(ctx, b.Bytes()); err != nil {
		t.Fatalf("Reparse: %v", err)
	}

	edits := []struct {
		span buffer.Span
		text string
	}{
		{buffer.Span{Start: buffer.Cursor{Row: 3, Col: 10}, End: buffer.Cursor{Row: 3, Col: 12}}, "привет"},
		{buffer.Span{Start: buffer.Cursor{Row: 4, Col: 1}, End: buffer.Cursor{Row: 4, Col: 1}}, "\n\nfunc other() int { return 1 }"},
		{buffer.Span{Start: buffer.Cursor{Row: 0, Col: 8}, End: buffer.Cursor{Row: 0, Col: 12}}, "demo"},
	}

	for _, e := range edits {
		c := buffer.NewChange(b, e.span, e.text)
		b.Apply(c)
		s.Edit(c)
	}

	if s.Pending() != len(edits) {
		t.Errorf("expected %d pending edits, got %d", len(edits), s.Pending())
	}

	if err := s.Reparse(ctx, b.Bytes()); err != nil {
		t.Fatalf("Reparse: %v", err)
	}

	fresh := newGoState(t)
	if err := fresh.Reparse(ctx, b.Bytes()); err != nil {
		t.Fatalf("Reparse: %v", err)
	}

	got := s.Tree().RootNode().String()
	want := fresh.Tree().RootNode().String()
	if got != want {
		t.Errorf("incremental tree differs from fresh parse\n got: %s\nwant: %s", got, want)
	}
	if len(s.Highlights()) != len(fresh.Highlights()) {
		t.Errorf("highlight count %d, want %d", len(s.Highlights()), len(fresh.Highlights()))
	}
}
