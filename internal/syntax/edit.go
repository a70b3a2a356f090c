package syntax

import (
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/quill/internal/engine/buffer"
)

// EditInput converts a buffer change into the edit tree-sitter expects.
// Points use byte columns; the change carries the start's byte column so
// no buffer access is needed.
func EditInput(c buffer.Change) sitter.EditInput {
	start := sitter.Point{
		Row:    uint32(c.OldSpan.Start.Row),
		Column: uint32(c.StartByteCol),
	}

	return sitter.EditInput{
		StartIndex:  uint32(c.OldByteSpan.Start),
		OldEndIndex: uint32(c.OldByteSpan.End),
		NewEndIndex: uint32(c.NewByteSpan.End),
		StartPoint:  start,
		OldEndPoint: endPoint(start, c.OldText),
		NewEndPoint: endPoint(start, c.NewText),
	}
}

// endPoint returns the point reached after writing text at start.
func endPoint(start sitter.Point, text []rune) sitter.Point {
	end := start
	for _, r := range text {
		if r == '\n' {
			end.Row++
			end.Column = 0
			continue
		}
		end.Column += uint32(utf8.RuneLen(r))
	}
	return end
}
