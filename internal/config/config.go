package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultPollInterval    = 50 * time.Millisecond
	DefaultHistoryLimit    = 1000
	DefaultTabWidth        = 4
	DefaultShutdownTimeout = 2 * time.Second
	DefaultVerbosity       = 0
)

// Config is the editor configuration.
type Config struct {
	Editor  EditorConfig            `toml:"editor"`
	Log     LogConfig               `toml:"log"`
	Syntax  SyntaxConfig            `toml:"syntax"`
	Servers map[string]ServerConfig `toml:"servers"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-"`
}

// EditorConfig holds editing and scheduling settings.
type EditorConfig struct {
	// PollInterval is how often each language server connection polls.
	PollInterval Duration `toml:"poll_interval"`

	// HistoryLimit caps the number of undoable changelists per document.
	HistoryLimit int `toml:"history_limit"`

	TabWidth int `toml:"tab_width"`

	// ShutdownTimeout bounds how long servers get to exit on shutdown.
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Verbosity follows commonlog: -4 silences, 0 is notice, 2 is debug.
	Verbosity int `toml:"verbosity"`

	// File is the log destination; empty logs to stderr.
	File string `toml:"file"`
}

// SyntaxConfig holds syntax engine settings.
type SyntaxConfig struct {
	// Languages restricts parsing to the named grammars. Empty means all.
	Languages []string `toml:"languages"`
}

// ServerConfig describes how to launch a language server for a language.
// The map key in Config.Servers is the language ID.
type ServerConfig struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`

	// Root is the workspace root sent as rootUri; empty uses the
	// working directory.
	Root string `toml:"root"`

	// FilePatterns are glob patterns matched against file base names.
	FilePatterns []string `toml:"file_patterns"`

	// Settings are sent with workspace/didChangeConfiguration. Keys may
	// be dotted paths, which are expanded into nested objects.
	Settings map[string]any `toml:"settings"`

	InitializationOptions map[string]any `toml:"initialization_options"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			PollInterval:    Duration{DefaultPollInterval},
			HistoryLimit:    DefaultHistoryLimit,
			TabWidth:        DefaultTabWidth,
			ShutdownTimeout: Duration{DefaultShutdownTimeout},
		},
		Log: LogConfig{
			Verbosity: DefaultVerbosity,
		},
		Servers: map[string]ServerConfig{},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Editor.PollInterval.Duration <= 0 {
		return &ValidationError{Field: "editor.poll_interval", Message: "must be positive"}
	}
	if c.Editor.HistoryLimit <= 0 {
		return &ValidationError{Field: "editor.history_limit", Message: "must be positive"}
	}
	if c.Editor.TabWidth <= 0 {
		return &ValidationError{Field: "editor.tab_width", Message: "must be positive"}
	}
	for lang, s := range c.Servers {
		if strings.TrimSpace(s.Command) == "" {
			return &ValidationError{Field: "servers." + lang + ".command", Message: "is required"}
		}
		for _, p := range s.FilePatterns {
			if _, err := filepath.Match(p, ""); err != nil {
				return &ValidationError{Field: "servers." + lang + ".file_patterns", Message: fmt.Sprintf("bad pattern %q", p)}
			}
		}
	}
	return nil
}

// Server returns the server configuration for a language.
func (c *Config) Server(language string) (ServerConfig, bool) {
	s, ok := c.Servers[language]
	return s, ok
}

// Languages returns the languages that have a server, sorted.
func (c *Config) Languages() []string {
	langs := make([]string, 0, len(c.Servers))
	for lang := range c.Servers {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// LanguageFor returns the language ID for a file path. Server file
// patterns are consulted first, in language order, then the built-in
// extension table. Unknown files are "plaintext".
func (c *Config) LanguageFor(path string) string {
	base := filepath.Base(path)
	for _, lang := range c.Languages() {
		if c.Servers[lang].Matches(base) {
			return lang
		}
	}
	return DetectLanguageID(path)
}

// Matches reports whether a file base name matches one of the patterns.
func (s ServerConfig) Matches(base string) bool {
	for _, pattern := range s.FilePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// DetectLanguageID returns the LSP language ID for a file path.
func DetectLanguageID(path string) string {
	if id, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return id
	}
	return "plaintext"
}

var extensionLanguages = map[string]string{
	".go":       "go",
	".rs":       "rust",
	".ts":       "typescript",
	".tsx":      "typescriptreact",
	".js":       "javascript",
	".jsx":      "javascriptreact",
	".py":       "python",
	".rb":       "ruby",
	".java":     "java",
	".c":        "c",
	".h":        "c",
	".cpp":      "cpp",
	".cc":       "cpp",
	".hpp":      "cpp",
	".lua":      "lua",
	".sh":       "shellscript",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
	".toml":     "toml",
	".html":     "html",
	".css":      "css",
	".md":       "markdown",
	".markdown": "markdown",
	".typ":      "typst",
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
