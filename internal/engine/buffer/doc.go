// Package buffer holds the text of a single document.
//
// Content is kept as rows of codepoints. A byte serialization of the same
// content, and a table of the byte offset at which each row starts, are
// rebuilt lazily after a mutation so byte-addressed consumers such as the
// syntax engine can read them cheaply.
//
// Position Types:
//
//   - Cursor: zero-based row and codepoint column
//   - Span: half-open range of Cursors
//   - ByteSpan: half-open range of byte offsets into Bytes()
//
// All mutation goes through Apply with a Change built by NewChange. A
// Change records both sides of the edit, in codepoints and in bytes, so
// it can be inverted for undo and forwarded to the syntax tree and to
// language servers without touching the buffer again.
//
//	buf := buffer.NewBufferFromString("hello")
//	c := buffer.NewChange(buf, buffer.Span{
//		Start: buffer.Cursor{Row: 0, Col: 5},
//		End:   buffer.Cursor{Row: 0, Col: 5},
//	}, ", world")
//	buf.Apply(c)
//	buf.Apply(c.Invert()) // back to "hello"
//
// A Buffer is not safe for concurrent use.
package buffer
