package app

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound is returned for a URI no open document has.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNoAnalyzer is returned when a request needs a language server
	// and the document is not attached to a live one.
	ErrNoAnalyzer = errors.New("no language server attached")

	// ErrShutdown is returned by operations after Shutdown.
	ErrShutdown = errors.New("editor is shut down")
)

// OperationError records which editor operation failed and on what.
type OperationError struct {
	Op     string // open, close, reconnect, ...
	Target string // path, URI or language
	Err    error
}

func (e *OperationError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func opError(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Target: target, Err: err}
}
