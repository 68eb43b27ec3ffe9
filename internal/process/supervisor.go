package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the supervisor's view of the child.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusBackoff Status = "backoff"
	StatusFailed  Status = "failed"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultRestartDelay    = time.Second
	DefaultMaxRestartDelay = time.Minute
	DefaultStableAfter     = time.Minute
	DefaultGracefulTimeout = 10 * time.Second
)

var (
	// ErrNotRunning is returned by HealthCheck while no child is alive.
	ErrNotRunning = errors.New("process: not running")

	// ErrGaveUp is returned by Run once MaxRestarts is exhausted.
	ErrGaveUp = errors.New("process: restart limit reached")
)

// Config describes the supervised child.
type Config struct {
	Name   string
	Binary string
	Args   []string
	// Env entries are appended to the parent environment.
	Env []string

	// RestartDelay is the first backoff step; it doubles up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
	// StableAfter is how long a child must run before the backoff resets.
	StableAfter time.Duration
	// MaxRestarts bounds consecutive failed runs. 0 means unlimited.
	MaxRestarts int
	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Logger is the logging capability used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Stats is a point-in-time snapshot for health reporting.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
}

// Supervisor runs one child process at a time.
//
// Thread Safety: Stats and HealthCheck may be called while Run is active.
type Supervisor struct {
	cfg Config
	log Logger

	mu       sync.RWMutex
	status   Status
	pid      int
	started  time.Time
	restarts int
	lastErr  error
}

// New applies defaults to cfg. It does not start anything.
func New(cfg Config, log Logger) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = DefaultMaxRestartDelay
		if cfg.MaxRestartDelay < cfg.RestartDelay {
			cfg.MaxRestartDelay = cfg.RestartDelay
		}
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = DefaultStableAfter
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	return &Supervisor{cfg: cfg, log: log, status: StatusStopped}
}

// Run starts the child and keeps it running until ctx is cancelled, which
// returns nil. It returns ErrGaveUp after MaxRestarts consecutive failures.
func (s *Supervisor) Run(ctx context.Context) error {
	failures := 0
	for {
		started := time.Now()
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.setStatus(StatusStopped)
			return nil
		}

		if time.Since(started) >= s.cfg.StableAfter {
			failures = 0
		}
		failures++

		s.mu.Lock()
		s.restarts++
		s.lastErr = err
		s.mu.Unlock()

		if s.cfg.MaxRestarts > 0 && failures > s.cfg.MaxRestarts {
			s.setStatus(StatusFailed)
			s.log.Error("process keeps failing, giving up", "name", s.cfg.Name, "failures", failures, "error", err)
			return fmt.Errorf("%w: %s: %w", ErrGaveUp, s.cfg.Name, err)
		}

		delay := s.backoff(failures)
		s.setStatus(StatusBackoff)
		s.log.Warn("process exited, restarting",
			"name", s.cfg.Name,
			"error", err,
			"attempt", failures,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStatus(StatusStopped)
			return nil
		case <-timer.C:
		}
	}
}

// backoff returns RestartDelay doubled per prior failure, capped.
func (s *Supervisor) backoff(failures int) time.Duration {
	d := s.cfg.RestartDelay
	for i := 1; i < failures && d < s.cfg.MaxRestartDelay; i++ {
		d *= 2
	}
	return min(d, s.cfg.MaxRestartDelay)
}

// runOnce starts the child and waits for it to exit or for ctx.
func (s *Supervisor) runOnce(ctx context.Context) error {
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...) //nolint:gosec // Binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.status = StatusRunning
	s.pid = cmd.Process.Pid
	s.started = time.Now()
	s.mu.Unlock()
	s.log.Info("process started", "name", s.cfg.Name, "pid", cmd.Process.Pid)

	var output sync.WaitGroup
	output.Add(2)
	go s.capture(&output, "stdout", stdout)
	go s.capture(&output, "stderr", stderr)

	exited := make(chan error, 1)
	go func() {
		// Pipes must be drained before Wait closes them.
		output.Wait()
		exited <- cmd.Wait()
	}()

	select {
	case err := <-exited:
		if err == nil {
			err = errors.New("exited with status 0")
		}
		return err
	case <-ctx.Done():
		s.terminate(cmd.Process.Pid, exited)
		return ctx.Err()
	}
}

// terminate signals the child's process group, escalating to SIGKILL.
func (s *Supervisor) terminate(pid int, exited <-chan error) {
	s.log.Info("stopping process", "name", s.cfg.Name, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.log.Warn("SIGTERM failed", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-exited:
		return
	case <-time.After(s.cfg.GracefulTimeout):
	}

	s.log.Warn("process ignored SIGTERM, killing", "name", s.cfg.Name, "timeout", s.cfg.GracefulTimeout)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.log.Error("SIGKILL failed", "name", s.cfg.Name, "error", err)
		return
	}
	<-exited
}

// maxOutputLine bounds one captured line of child output.
const maxOutputLine = 1 << 20

func (s *Supervisor) capture(wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		s.log.Debug("process output", "name", s.cfg.Name, "stream", stream, "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("process output not captured", "name", s.cfg.Name, "stream", stream, "error", err)
		// Keep reading so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.pid = 0
	s.mu.Unlock()
}

// HealthCheck reports ErrNotRunning unless a child is alive.
func (s *Supervisor) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusRunning {
		return fmt.Errorf("%w: %s is %s", ErrNotRunning, s.cfg.Name, s.status)
	}
	return nil
}

// Stats returns a snapshot of the supervisor state.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Name:     s.cfg.Name,
		Status:   s.status,
		PID:      s.pid,
		Restarts: s.restarts,
	}
	if s.status == StatusRunning {
		st.Uptime = time.Since(s.started)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
