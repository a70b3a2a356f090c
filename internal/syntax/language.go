package syntax

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Language pairs a tree-sitter grammar with the queries run against it.
type Language struct {
	// Name is the language identifier, matching LSP language IDs.
	Name string

	// Extensions lists file extensions including the leading dot.
	Extensions []string

	Grammar *sitter.Language

	// Highlights is the query whose captures name highlight classes.
	Highlights []byte

	// Indents is the query whose captures mark indent and outdent regions.
	Indents []byte
}

// Registry manages available languages.
type Registry struct {
	mu sync.RWMutex

	byLanguage  map[string]*Language
	byExtension map[string]*Language
}

// NewRegistry creates an empty language registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]*Language),
		byExtension: make(map[string]*Language),
	}
}

// Register adds a language to the registry, replacing any language of
// the same name.
func (r *Registry) Register(lang *Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[lang.Name] = lang
	for _, ext := range lang.Extensions {
		r.byExtension[ext] = lang
	}
}

// Lookup returns the language with the given name.
func (r *Registry) Lookup(name string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byLanguage[name]
	return lang, ok
}

// ForPath returns the language registered for the extension of path.
func (r *Registry) ForPath(path string) (*Language, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byExtension[strings.ToLower(ext)]
	return lang, ok
}

// Languages returns all registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byLanguage))
	for name := range r.byLanguage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Restrict removes every language not named in keep. An empty keep
// leaves the registry unchanged.
func (r *Registry) Restrict(keep []string) {
	if len(keep) == 0 {
		return
	}

	allowed := make(map[string]bool, len(keep))
	for _, name := range keep {
		allowed[name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.byLanguage {
		if !allowed[name] {
			delete(r.byLanguage, name)
		}
	}
	for ext, lang := range r.byExtension {
		if !allowed[lang.Name] {
			delete(r.byExtension, ext)
		}
	}
}

// DefaultRegistry returns a registry with the built-in languages.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Go())
	return r
}

// Go returns the built-in Go language definition.
func Go() *Language {
	return &Language{
		Name:       "go",
		Extensions: []string{".go"},
		Grammar:    golang.GetLanguage(),
		Highlights: goHighlights,
		Indents:    goIndents,
	}
}

var goHighlights = []byte(`
(comment) @comment
(interpreted_string_literal) @string
(raw_string_literal) @string
(rune_literal) @string
(escape_sequence) @string.escape
(int_literal) @number
(float_literal) @number
(imaginary_literal) @number
[(true) (false) (nil)] @constant.builtin

"func" @keyword.function
"return" @keyword.return
[
  "if" "else" "for" "range" "switch" "case" "default" "select"
  "break" "continue" "goto" "fallthrough" "go" "defer"
] @keyword.control
[
  "package" "import" "var" "const" "type" "struct" "interface" "map" "chan"
] @keyword

(package_identifier) @namespace
(type_identifier) @type
(label_name) @label

(function_declaration name: (identifier) @function)
(method_declaration name: (field_identifier) @function.method)
(call_expression function: (identifier) @function.call)
(call_expression function: (selector_expression field: (field_identifier) @function.method))
(parameter_declaration name: (identifier) @variable.parameter)
(field_identifier) @property

[
  "=" ":=" "==" "!=" "<" "<=" ">" ">=" "+" "-" "*" "/" "%"
  "&&" "||" "!" "&" "|" "^" "<-" "..."
] @operator
["(" ")" "[" "]" "{" "}"] @punctuation.bracket
["," "." ":" ";"] @punctuation.delimiter

(identifier) @variable
`)

var goIndents = []byte(`
[
  (block)
  (literal_value)
  (field_declaration_list)
  (interface_type)
  (argument_list)
  (parameter_list)
  (import_spec_list)
  (const_declaration)
  (var_declaration)
] @indent
["}" ")" "]"] @outdent
`)
