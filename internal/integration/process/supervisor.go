package process

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Supervisor starts child processes and tears them all down on shutdown.
// It is safe for concurrent use.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process

	closed atomic.Bool

	onExit func(p *Process)
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithExitCallback sets a callback run when a supervised process exits.
func WithExitCallback(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

// NewSupervisor creates a new process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches and tracks a new process.
func (s *Supervisor) Start(name string, spec Spec) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	proc, err := start(uuid.New().String(), name, spec)
	if err != nil {
		return nil, err
	}
	s.processes[proc.ID] = proc

	go s.monitor(proc)

	return proc, nil
}

func (s *Supervisor) monitor(proc *Process) {
	<-proc.Done()

	if s.onExit != nil {
		s.onExit(proc)
	}

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
}

// Get returns a process by ID, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// List returns all running supervised processes.
func (s *Supervisor) List() []*Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		result = append(result, p)
	}
	return result
}

// Count returns the number of running supervised processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Shutdown sends SIGTERM to every process, waits up to timeout for them
// to exit and kills the rest. Later calls do nothing.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	procs := s.List()
	if len(procs) == 0 {
		return
	}

	for _, p := range procs {
		_ = p.Terminate()
	}

	deadline := time.Now().Add(timeout)
	for _, p := range procs {
		if !p.Wait(time.Until(deadline)) {
			_ = p.Kill()
		}
	}
	for _, p := range procs {
		<-p.Done()
		_ = p.Close()
	}
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

// ErrSupervisorShutdown is returned by Start after Shutdown.
var ErrSupervisorShutdown = errors.New("supervisor is shutting down")
