package engine

import (
	"errors"

	"github.com/dshills/quill/internal/engine/buffer"
)

// Errors returned by engine operations.
var (
	// ErrSpanInvalid indicates a span that does not address the document.
	ErrSpanInvalid = buffer.ErrSpanInvalid

	// ErrEditsOverlap indicates a batch of edits whose spans overlap.
	ErrEditsOverlap = errors.New("edits overlap")

	// ErrClosed indicates an operation on a closed document.
	ErrClosed = errors.New("document is closed")

	// ErrNoPath indicates a save of a document that has no file path.
	ErrNoPath = errors.New("document has no path")
)
