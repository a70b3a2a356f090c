// Command quill opens files headlessly, lets their language servers
// analyze them and prints the diagnostics that come back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/quill/internal/app"
	"github.com/dshills/quill/internal/config"
	"github.com/dshills/quill/internal/engine"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath string
	settle     time.Duration
	timeout    time.Duration
	verbosity  int
	files      []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, ok := parseFlags()
	if !ok {
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if opts.verbosity != 0 {
		cfg.Log.Verbosity = opts.verbosity
	}
	app.ConfigureLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	editor := app.New(cfg)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Editor.ShutdownTimeout.Duration)
		defer cancel()
		if err := editor.Shutdown(sctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}()

	go func() {
		if err := editor.WatchConfig(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Warning: config watch: %v\n", err)
		}
	}()

	var docs []*engine.Document
	for _, path := range opts.files {
		doc, err := editor.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		docs = append(docs, doc)
	}

	waitQuiet(ctx, editor, opts.settle, opts.timeout)

	if printDiagnostics(editor, docs) {
		return 1
	}
	return 0
}

// waitQuiet returns once no diagnostics arrived for settle, after
// timeout, or when ctx is done.
func waitQuiet(ctx context.Context, editor *app.Editor, settle, timeout time.Duration) {
	deadline := time.After(timeout)
	quiet := time.NewTimer(settle)
	defer quiet.Stop()

	for {
		select {
		case <-editor.Updates():
			quiet.Reset(settle)
		case <-quiet.C:
			return
		case <-deadline:
			return
		case <-ctx.Done():
			return
		}
	}
}

// printDiagnostics prints every document's diagnostics and reports
// whether any was an error.
func printDiagnostics(editor *app.Editor, docs []*engine.Document) bool {
	editor.Lock()
	defer editor.Unlock()

	failed := false
	for _, doc := range docs {
		for _, d := range doc.Diagnostics() {
			fmt.Printf("%s:%d:%d: %s: %s", doc.Path(), d.Span.Start.Row+1, d.Span.Start.Col+1, d.Severity, d.Message)
			switch {
			case d.Source != "" && d.Code != "":
				fmt.Printf(" (%s %s)", d.Source, d.Code)
			case d.Source != "":
				fmt.Printf(" (%s)", d.Source)
			}
			fmt.Println()
			if d.Severity == engine.SeverityError {
				failed = true
			}
		}
	}
	return failed
}

func parseFlags() (options, bool) {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	flag.DurationVar(&opts.settle, "settle", 500*time.Millisecond, "Quiet period after the last diagnostics before printing")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Longest time to wait for diagnostics")
	flag.IntVar(&opts.verbosity, "verbosity", 0, "Log verbosity, overriding the configuration (2 is debug)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: quill [options] files...\n\n")
		fmt.Fprintf(os.Stderr, "Opens files, waits for their language servers and prints diagnostics.\n")
		fmt.Fprintf(os.Stderr, "Exits 1 if any diagnostic is an error.\n\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("quill %s (%s)\n", version, commit)
		return opts, false
	}

	opts.files = flag.Args()
	if len(opts.files) == 0 {
		flag.Usage()
		return opts, false
	}
	return opts, true
}
