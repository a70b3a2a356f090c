package engine

import "github.com/dshills/quill/internal/engine/buffer"

// Severity ranks a diagnostic. Values match the LSP severities.
type Severity uint8

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic is a message a language server attached to a span.
type Diagnostic struct {
	Span     buffer.Span
	Severity Severity
	Message  string
	Source   string
	Code     string
}
