// Package config loads the editor configuration from a TOML file.
//
// The file is decoded over built-in defaults, so every key is optional:
//
//	[editor]
//	poll_interval = "50ms"
//	history_limit = 1000
//
//	[log]
//	verbosity = 1
//	file = "/tmp/quill.log"
//
//	[syntax]
//	languages = ["go"]
//
//	[servers.go]
//	command = "gopls"
//	file_patterns = ["*.go", "go.mod"]
//	settings = { "gopls.staticcheck" = true }
//
// QUILL_LOG_VERBOSITY, QUILL_LOG_FILE, QUILL_POLL_INTERVAL and
// QUILL_HISTORY_LIMIT override the file.
//
// Watch reloads the file when it changes so new server settings can be
// pushed to running language servers.
package config
