package lsp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/quill/internal/config"
	"github.com/dshills/quill/internal/engine"
	"github.com/dshills/quill/internal/integration/process"
)

// Spawner starts the server process for a language.
type Spawner func(language string, spec process.Spec) (Process, error)

// Registry owns one connection per language and the goroutines polling
// them.
type Registry struct {
	host  Host
	spawn Spawner
	sup   *process.Supervisor
	log   commonlog.Logger

	mu    sync.Mutex
	cfg   *config.Config
	conns map[string]*Connection

	ctx    context.Context
	cancel context.CancelFunc
	loops  errgroup.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSpawner replaces how server processes are started.
func WithSpawner(s Spawner) RegistryOption {
	return func(r *Registry) {
		r.spawn = s
	}
}

// NewRegistry creates a registry that launches servers from cfg and
// dispatches their messages to host.
func NewRegistry(cfg *config.Config, host Host, opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		host:   host,
		log:    commonlog.GetLogger("quill.lsp"),
		cfg:    cfg,
		conns:  make(map[string]*Connection),
		ctx:    ctx,
		cancel: cancel,
	}
	r.sup = process.NewSupervisor(process.WithExitCallback(r.serverExited))
	r.spawn = func(language string, spec process.Spec) (Process, error) {
		p, err := r.sup.Start(language, spec)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect returns the live connection for language, starting a server
// if there is none or the previous one has gone away.
func (r *Registry) Connect(language string) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.conns[language]; c != nil {
		switch c.Status() {
		case StatusCreated, StatusInitialized:
			return c, nil
		}
	}

	sc, ok := r.cfg.Server(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoServer, language)
	}

	settings, err := sc.SettingsJSON()
	if err != nil {
		return nil, fmt.Errorf("%s settings: %w", language, err)
	}
	initOptions, err := sc.InitializationOptionsJSON()
	if err != nil {
		return nil, fmt.Errorf("%s initialization options: %w", language, err)
	}

	root := sc.Root
	if root == "" {
		root, _ = os.Getwd()
	}

	proc, err := r.spawn(language, process.Spec{Command: sc.Command, Args: sc.Args, Env: sc.Env, Dir: root})
	if err != nil {
		r.log.Errorf("spawn %s (%s): %s", language, sc.Command, err.Error())
		return nil, fmt.Errorf("%w %s: %w", ErrSpawn, language, err)
	}

	conn := NewConnection(language, proc, r.host,
		WithRootURI(engine.PathToURI(root)),
		WithSettings(settings),
		WithInitializationOptions(initOptions),
		WithPollInterval(r.cfg.Editor.PollInterval.Duration),
	)
	if err := conn.Start(); err != nil {
		_ = proc.Kill()
		_ = proc.Close()
		return nil, err
	}

	r.conns[language] = conn
	r.loops.Go(func() error {
		conn.Run(r.ctx)
		return nil
	})

	r.log.Infof("started %s for %s", sc.Command, language)
	return conn, nil
}

// Connection returns the current connection for language, or nil.
func (r *Registry) Connection(language string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[language]
}

// Connections returns the current connections ordered by language.
func (r *Registry) Connections() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Language() < conns[j].Language() })
	return conns
}

// SetConfig replaces the configuration and pushes changed settings to
// live connections.
func (r *Registry) SetConfig(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	conns := make(map[string]*Connection, len(r.conns))
	for lang, c := range r.conns {
		conns[lang] = c
	}
	r.mu.Unlock()

	for lang, c := range conns {
		sc, ok := cfg.Server(lang)
		if !ok {
			continue
		}
		settings, err := sc.SettingsJSON()
		if err != nil {
			r.log.Warningf("%s settings: %s", lang, err.Error())
			continue
		}
		if err := c.UpdateSettings(settings); err != nil {
			r.log.Warningf("%s settings: %s", lang, err.Error())
		}
	}
}

// Shutdown disconnects every server in parallel and waits for them to
// exit until ctx is done, killing any that remain. It must be called
// without the Host lock held, since the polling goroutines need it to
// finish the handshake.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	var g errgroup.Group
	for _, c := range conns {
		g.Go(func() error {
			if err := c.Disconnect(); err != nil && !errors.Is(err, ErrClosed) {
				r.log.Warningf("disconnect %s: %s", c.Language(), err.Error())
				_ = c.Kill()
			}
			select {
			case <-c.Done():
				return nil
			case <-ctx.Done():
				_ = c.Kill()
				return fmt.Errorf("%s: %w", c.Language(), ctx.Err())
			}
		})
	}
	err := g.Wait()

	r.cancel()
	_ = r.loops.Wait()
	r.sup.Shutdown(time.Second)
	return err
}

func (r *Registry) serverExited(p *process.Process) {
	if err := p.ExitError(); err != nil {
		r.log.Warningf("%s server exited after %s: %s", p.Name, p.Runtime().Round(time.Millisecond), err.Error())
		return
	}
	r.log.Infof("%s server exited after %s", p.Name, p.Runtime().Round(time.Millisecond))
}
