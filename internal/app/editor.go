package app

import (
	"context"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/quill/internal/config"
	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/lsp"
	"github.com/dshills/quill/internal/syntax"
)

// Editor is the shared editor state: the open documents, the language
// server connections serving them and the answers those servers sent.
//
// Its mutex is the editor lock. Exported methods take it themselves;
// the Host methods are called by connections that already hold it.
type Editor struct {
	mu sync.Mutex

	cfg      *config.Config
	syntaxes *syntax.Registry
	registry *lsp.Registry
	log      commonlog.Logger

	docs  map[string]*engine.Document
	order []string

	// requested maps in-flight request ids, per connection, to the
	// document version they were issued against.
	requested map[requestKey]int

	lastMessage string
	hover       *lsp.HoverResult
	locations   []lsp.Location
	actions     []lsp.CodeAction
	completion  *lsp.CompletionResult

	updates chan string
	closed  bool
}

type requestKey struct {
	language string
	id       int
}

// Option configures an Editor.
type Option func(*editorOptions)

type editorOptions struct {
	registry []lsp.RegistryOption
	syntaxes *syntax.Registry
}

// WithRegistryOptions passes options to the language server registry.
func WithRegistryOptions(opts ...lsp.RegistryOption) Option {
	return func(o *editorOptions) {
		o.registry = append(o.registry, opts...)
	}
}

// WithSyntaxRegistry replaces the built-in grammars.
func WithSyntaxRegistry(r *syntax.Registry) Option {
	return func(o *editorOptions) {
		o.syntaxes = r
	}
}

// New creates an editor for cfg.
func New(cfg *config.Config, opts ...Option) *Editor {
	var o editorOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.syntaxes == nil {
		o.syntaxes = syntax.DefaultRegistry()
	}
	o.syntaxes.Restrict(cfg.Syntax.Languages)

	e := &Editor{
		cfg:       cfg,
		syntaxes:  o.syntaxes,
		log:       commonlog.GetLogger("quill.app"),
		docs:      make(map[string]*engine.Document),
		requested: make(map[requestKey]int),
		updates:   make(chan string, 64),
	}
	e.registry = lsp.NewRegistry(cfg, e, o.registry...)
	return e
}

// Lock acquires the editor lock.
func (e *Editor) Lock() { e.mu.Lock() }

// Unlock releases the editor lock.
func (e *Editor) Unlock() { e.mu.Unlock() }

// Registry returns the language server registry.
func (e *Editor) Registry() *lsp.Registry { return e.registry }

// Updates delivers the URI of a document each time its diagnostics
// change. Updates are dropped while the channel is full.
func (e *Editor) Updates() <-chan string { return e.updates }

// Open opens the file at path, or returns it if it is already open. A
// configured language server is started and the document attached to
// it; failing to start one is logged and leaves the document unanalyzed.
func (e *Editor) Open(path string) (*engine.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, opError("open", path, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, opError("open", path, ErrShutdown)
	}
	if doc := e.docs[engine.PathToURI(abs)]; doc != nil {
		return doc, nil
	}

	language := e.cfg.LanguageFor(abs)
	opts := []engine.Option{
		engine.WithLanguageID(language),
		engine.WithHistoryLimit(e.cfg.Editor.HistoryLimit),
		engine.WithTabWidth(e.cfg.Editor.TabWidth),
	}
	if lang, ok := e.syntaxes.Lookup(language); ok {
		opts = append(opts, engine.WithSyntax(lang))
	} else if lang, ok := e.syntaxes.ForPath(abs); ok {
		opts = append(opts, engine.WithSyntax(lang))
	}

	doc, err := engine.Open(abs, opts...)
	if err != nil {
		return nil, opError("open", path, err)
	}
	e.add(doc)
	e.attachLocked(doc)
	return doc, nil
}

// OpenScratch opens an unnamed document with the given content.
func (e *Editor) OpenScratch(language, content string) *engine.Document {
	opts := []engine.Option{
		engine.WithContent(content),
		engine.WithLanguageID(language),
		engine.WithHistoryLimit(e.cfg.Editor.HistoryLimit),
		engine.WithTabWidth(e.cfg.Editor.TabWidth),
	}
	if lang, ok := e.syntaxes.Lookup(language); ok {
		opts = append(opts, engine.WithSyntax(lang))
	}
	doc := engine.New(opts...)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.add(doc)
	e.attachLocked(doc)
	return doc
}

func (e *Editor) add(doc *engine.Document) {
	e.docs[doc.URI()] = doc
	e.order = append(e.order, doc.URI())
}

// attachLocked attaches doc to the server for its language, starting
// one if needed.
func (e *Editor) attachLocked(doc *engine.Document) {
	if _, ok := e.cfg.Server(doc.LanguageID()); !ok {
		return
	}
	conn, err := e.registry.Connect(doc.LanguageID())
	if err != nil {
		e.log.Warningf("%s: %s", doc.URI(), err.Error())
		return
	}
	doc.Attach(conn)
}

// Close closes the document with the given URI.
func (e *Editor) Close(uri string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := e.docs[uri]
	if doc == nil {
		return opError("close", uri, ErrDocumentNotFound)
	}
	doc.Close()
	delete(e.docs, uri)
	e.order = slices.DeleteFunc(e.order, func(u string) bool { return u == uri })
	return nil
}

// Documents returns the open documents in the order they were opened.
func (e *Editor) Documents() []*engine.Document {
	e.mu.Lock()
	defer e.mu.Unlock()

	docs := make([]*engine.Document, 0, len(e.order))
	for _, uri := range e.order {
		docs = append(docs, e.docs[uri])
	}
	return docs
}

// Reconnect starts a fresh server for language and moves every open
// document of that language onto it. Servers are never restarted
// without being asked.
func (e *Editor) Reconnect(language string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := e.registry.Connect(language)
	if err != nil {
		return opError("reconnect", language, err)
	}
	replaced := false
	for _, uri := range e.order {
		doc := e.docs[uri]
		if doc.LanguageID() != language {
			continue
		}
		for _, s := range slices.Clone(doc.Synchronizers()) {
			if old, ok := s.(*lsp.Connection); ok && old != conn {
				doc.Detach(old)
				replaced = true
			}
		}
		doc.Attach(conn)
	}

	// Request ids restart with the new server.
	if replaced {
		for k := range e.requested {
			if k.language == language {
				delete(e.requested, k)
			}
		}
	}
	return nil
}

// ApplyConfig switches to cfg, updates the open documents' history limit
// and tab width, and pushes changed server settings to the running
// servers.
func (e *Editor) ApplyConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	for _, doc := range e.docs {
		doc.SetHistoryLimit(cfg.Editor.HistoryLimit)
		doc.SetTabWidth(cfg.Editor.TabWidth)
	}
	e.registry.SetConfig(cfg)
	e.log.Info("configuration reloaded")
}

// WatchConfig applies the configuration file whenever it changes until
// ctx is done. Reloads that fail keep the current configuration.
func (e *Editor) WatchConfig(ctx context.Context) error {
	e.mu.Lock()
	path := e.cfg.Path
	e.mu.Unlock()

	if path == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	return config.Watch(ctx, path, e.ApplyConfig, func(err error) {
		e.log.Warningf("config reload: %s", err.Error())
	})
}

// Shutdown closes every document and stops every server, waiting at
// most until ctx is done.
func (e *Editor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, uri := range e.order {
		e.docs[uri].Close()
	}
	e.docs = make(map[string]*engine.Document)
	e.order = nil
	e.mu.Unlock()

	// The registry waits for the polling goroutines, which need the
	// editor lock.
	return opError("shutdown", "", e.registry.Shutdown(ctx))
}

// LastMessage returns the last message a server asked to show or the
// last request failure.
func (e *Editor) LastMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMessage
}

// Document returns the open document with the given URI, or nil. The
// editor lock must be held.
func (e *Editor) Document(uri string) *engine.Document {
	return e.docs[uri]
}

// DiagnosticsChanged publishes the document's URI on Updates.
func (e *Editor) DiagnosticsChanged(doc *engine.Document) {
	select {
	case e.updates <- doc.URI():
	default:
	}
}

// ShowMessage records a server message.
func (e *Editor) ShowMessage(kind protocol.MessageType, message string) {
	e.lastMessage = message
	switch kind {
	case protocol.MessageTypeError:
		e.log.Errorf("%s", message)
	case protocol.MessageTypeWarning:
		e.log.Warningf("%s", message)
	default:
		e.log.Infof("%s", message)
	}
}

var _ lsp.Host = (*Editor)(nil)
