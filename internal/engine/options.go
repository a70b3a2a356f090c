package engine

import (
	"github.com/tliron/commonlog"

	"github.com/dshills/quill/internal/engine/buffer"
	"github.com/dshills/quill/internal/engine/history"
	"github.com/dshills/quill/internal/syntax"
)

// Default configuration values.
const (
	DefaultTabWidth     = 4
	DefaultHistoryLimit = history.DefaultLimit
)

// Option configures a Document during creation.
type Option func(*Document)

// WithContent sets the initial content of the document.
func WithContent(content string) Option {
	return func(d *Document) {
		d.initContent = content
	}
}

// WithPath associates the document with a file and derives its URI.
func WithPath(path string) Option {
	return func(d *Document) {
		d.path = path
		d.uri = PathToURI(path)
	}
}

// WithLanguageID sets the language identifier sent to language servers.
func WithLanguageID(id string) Option {
	return func(d *Document) {
		d.languageID = id
	}
}

// WithTabWidth sets the tab width for the document.
func WithTabWidth(width int) Option {
	return func(d *Document) {
		if width > 0 {
			d.bufOpts = append(d.bufOpts, buffer.WithTabWidth(width))
		}
	}
}

// WithLineEnding forces the serialization line ending.
func WithLineEnding(ending buffer.LineEnding) Option {
	return func(d *Document) {
		d.bufOpts = append(d.bufOpts, buffer.WithLineEnding(ending))
	}
}

// WithHistoryLimit sets the number of changelists kept for undo.
func WithHistoryLimit(limit int) Option {
	return func(d *Document) {
		if limit > 0 {
			d.historyLimit = limit
		}
	}
}

// WithSyntax enables incremental parsing with lang.
func WithSyntax(lang *syntax.Language) Option {
	return func(d *Document) {
		d.lang = lang
	}
}

// WithLogger sets the logger used for parse failures.
func WithLogger(log commonlog.Logger) Option {
	return func(d *Document) {
		if log != nil {
			d.log = log
		}
	}
}
