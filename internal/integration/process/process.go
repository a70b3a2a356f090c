package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ReadWait is how long a read waits for output before reporting that
// none is available.
const ReadWait = time.Millisecond

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Spec describes a command to launch.
type Spec struct {
	Command string
	Args    []string

	// Env is added to the editor's own environment.
	Env map[string]string

	// Dir is the working directory; empty inherits the editor's.
	Dir string
}

// Process is a child process with piped standard streams.
//
// Reads never block for longer than ReadWait, so a single goroutine can
// poll stdout and stderr alongside its other work. Stdout and stderr are
// plain pipes owned by the Process rather than exec.Cmd pipes, which
// keeps buffered output readable after the child has been reaped.
type Process struct {
	// ID is the unique identifier for this process.
	ID string

	// Name is a human-readable name for the process.
	Name string

	// Started is the time the process was started.
	Started time.Time

	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *os.File

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error
	ended   time.Time

	closeOnce sync.Once
}

// start launches the command described by spec.
func start(id, name string, spec Spec) (*Process, error) {
	if spec.Command == "" {
		return nil, ErrNoCommand
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	pipe := func() (*os.File, *os.File, error) {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, err
		}
		files = append(files, r, w)
		return r, w, nil
	}

	stdinR, stdinW, err := pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(spec.Env)...)
	}
	// Servers get their own group so helpers they start are signalled
	// with them.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	// The child holds its own copies of these ends.
	_ = stdinR.Close()
	_ = stdoutW.Close()
	_ = stderrW.Close()

	p := &Process{
		ID:      id,
		Name:    name,
		Started: time.Now(),
		cmd:     cmd,
		stdin:   stdinW,
		stdout:  stdoutR,
		stderr:  stderrR,
		done:    make(chan struct{}),
	}
	p.exitCode.Store(-1)
	p.state.Store(int32(StateRunning))

	go p.waitLoop()

	return p, nil
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

// waitLoop waits for the process to exit and updates state.
func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.ended = time.Now()
	p.mu.Unlock()

	exitCode := 0
	state := StateExited

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		} else {
			exitCode = -1
		}
	}

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	close(p.done)
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code, or -1 if it has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited, normally or by signal.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Write writes to the process's standard input.
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// ReadStdout reads whatever standard output is available. It returns
// 0, nil when nothing arrives within ReadWait and io.EOF once the stream
// has ended.
func (p *Process) ReadStdout(b []byte) (int, error) {
	return readAvailable(p.stdout, b)
}

// ReadStderr is ReadStdout for standard error.
func (p *Process) ReadStderr(b []byte) (int, error) {
	return readAvailable(p.stderr, b)
}

func readAvailable(f *os.File, b []byte) (int, error) {
	if err := f.SetReadDeadline(time.Now().Add(ReadWait)); err != nil {
		return 0, err
	}
	n, err := f.Read(b)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

// Signal sends a signal to the process group the process leads.
func (p *Process) Signal(sig os.Signal) error {
	if p.Exited() {
		return ErrProcessExited
	}
	if s, ok := sig.(syscall.Signal); ok {
		if err := unix.Kill(-p.cmd.Process.Pid, s); err == nil {
			return nil
		}
	}
	return p.cmd.Process.Signal(sig)
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Terminate sends SIGTERM to the process.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Wait waits up to timeout for the process to exit and reports whether
// it did.
func (p *Process) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

// Close closes the process's standard streams. It does not kill the
// process.
func (p *Process) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		for name, f := range map[string]*os.File{"stdin": p.stdin, "stdout": p.stdout, "stderr": p.stderr} {
			if err := f.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	})
	return errors.Join(errs...)
}

// Runtime returns how long the process ran, or has been running if it
// has not exited.
func (p *Process) Runtime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ended.IsZero() {
		return time.Since(p.Started)
	}
	return p.ended.Sub(p.Started)
}

// Sentinel errors for process package.
var (
	// ErrNoCommand is returned when a Spec has no command.
	ErrNoCommand = errors.New("no command")

	// ErrProcessExited is returned when signalling a process that has exited.
	ErrProcessExited = errors.New("process exited")
)
