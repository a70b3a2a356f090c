package app

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dshills/quill/internal/config"
)

// ConfigureLogging installs the commonlog backend for cfg. Verbosity 0
// logs notices and above; each step up adds a level, down to debug at 2.
// An empty File logs to stderr.
func ConfigureLogging(cfg config.LogConfig) {
	var path *string
	if cfg.File != "" {
		file := cfg.File
		path = &file
	}
	commonlog.Configure(cfg.Verbosity, path)
}
