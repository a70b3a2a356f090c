package syntax

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/quill/internal/engine/buffer"
)

// Span is a byte range of the source tagged with the capture that
// produced it.
type Span struct {
	Start   uint32
	End     uint32
	Capture string
	Token   TokenType
}

// Len returns the length of the span in bytes.
func (s Span) Len() uint32 {
	return s.End - s.Start
}

// State is the parse state of one document: the parser, the last tree,
// and the highlight and indent spans computed from it.
//
// The tree is kept consistent with the buffer by feeding every applied
// change to Edit before the next Reparse.
type State struct {
	lang   *Language
	parser *sitter.Parser
	tree   *sitter.Tree

	highlightQuery *sitter.Query
	indentQuery    *sitter.Query

	highlights []Span
	indents    []Span

	// pending counts edits applied to the tree since the last parse.
	pending int
}

// NewState creates a parse state for lang and compiles its queries.
func NewState(lang *Language) (*State, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang.Grammar)

	s := &State{lang: lang, parser: parser}

	if len(lang.Highlights) > 0 {
		q, err := sitter.NewQuery(lang.Highlights, lang.Grammar)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("syntax: %s highlights query: %w", lang.Name, err)
		}
		s.highlightQuery = q
	}

	if len(lang.Indents) > 0 {
		q, err := sitter.NewQuery(lang.Indents, lang.Grammar)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("syntax: %s indents query: %w", lang.Name, err)
		}
		s.indentQuery = q
	}

	return s, nil
}

// Language returns the language being parsed.
func (s *State) Language() *Language {
	return s.lang
}

// Edit records an applied change on the current tree so the next
// Reparse can reuse unchanged subtrees. Edits before the first parse
// are ignored.
func (s *State) Edit(c buffer.Change) {
	if s.tree == nil {
		return
	}
	s.tree.Edit(EditInput(c))
	s.pending++
}

// Pending returns the number of edits since the last parse.
func (s *State) Pending() int {
	return s.pending
}

// Reparse parses content, reusing the edited tree, and recomputes spans.
func (s *State) Reparse(ctx context.Context, content []byte) error {
	tree, err := s.parser.ParseCtx(ctx, s.tree, content)
	if err != nil {
		return fmt.Errorf("syntax: parse %s: %w", s.lang.Name, err)
	}

	if s.tree != nil && s.tree != tree {
		s.tree.Close()
	}
	s.tree = tree
	s.pending = 0

	s.highlights = s.collect(s.highlightQuery, TokenClassifier)
	s.indents = s.collect(s.indentQuery, nil)
	return nil
}

// Tree returns the current syntax tree, or nil before the first parse.
func (s *State) Tree() *sitter.Tree {
	return s.tree
}

// Highlights returns the highlight spans, ordered and non-overlapping.
func (s *State) Highlights() []Span {
	return s.highlights
}

// Indents returns the indent query spans, ordered and non-overlapping.
func (s *State) Indents() []Span {
	return s.indents
}

// HighlightsIn returns the highlight spans intersecting [start, end).
func (s *State) HighlightsIn(start, end uint32) []Span {
	i := sort.Search(len(s.highlights), func(i int) bool {
		return s.highlights[i].End > start
	})

	var out []Span
	for ; i < len(s.highlights) && s.highlights[i].Start < end; i++ {
		out = append(out, s.highlights[i])
	}
	return out
}

// HighlightAt returns the highlight span covering a byte offset.
func (s *State) HighlightAt(offset uint32) (Span, bool) {
	spans := s.HighlightsIn(offset, offset+1)
	if len(spans) == 0 {
		return Span{}, false
	}
	return spans[0], true
}

// collect runs q over the tree and flattens its captures into ordered,
// non-overlapping spans. When captures overlap, the one reported first
// wins: the earlier start, then the earlier pattern.
func (s *State) collect(q *sitter.Query, classes *Classifier[TokenType]) []Span {
	if q == nil || s.tree == nil {
		return nil
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, s.tree.RootNode())

	var spans []Span
	var covered uint32
	for {
		m, idx, ok := qc.NextCapture()
		if !ok {
			break
		}
		if int(idx) >= len(m.Captures) {
			continue
		}

		capture := m.Captures[idx]
		if capture.Node == nil {
			continue
		}

		start, end := capture.Node.StartByte(), capture.Node.EndByte()
		if start == end || start < covered {
			continue
		}

		span := Span{
			Start:   start,
			End:     end,
			Capture: q.CaptureNameForId(capture.Index),
		}
		if classes != nil {
			span.Token, _ = classes.Resolve(span.Capture)
		}

		spans = append(spans, span)
		covered = end
	}

	return spans
}

// Close releases the parser, the tree and the compiled queries.
func (s *State) Close() {
	if s.highlightQuery != nil {
		s.highlightQuery.Close()
		s.highlightQuery = nil
	}
	if s.indentQuery != nil {
		s.indentQuery.Close()
		s.indentQuery = nil
	}
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
	if s.parser != nil {
		s.parser.Close()
		s.parser = nil
	}
}
