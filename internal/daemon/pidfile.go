package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotRunning is returned when no live process owns the PID file.
	ErrNotRunning = errors.New("not running")
	// ErrAlreadyRunning is returned by Acquire when a live process owns the PID file.
	ErrAlreadyRunning = errors.New("already running")
)

// PIDFile records the PID of a background server.
type PIDFile struct {
	Path string
}

// NewPIDFile returns a PIDFile at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID records pid, creating the parent directory if needed.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Acquire claims the PID file for pid. A stale file left by a dead process
// is replaced.
func (p *PIDFile) Acquire(pid int) error {
	if running, ok := p.IsRunning(); ok {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, running)
	}
	return p.WritePID(pid)
}

// Stop sends a termination signal and waits up to grace for the process to
// exit, then kills it. The PID file is removed either way.
func (p *PIDFile) Stop(grace time.Duration) (int, error) {
	pid, ok := p.IsRunning()
	if !ok {
		_ = p.Remove()
		return 0, ErrNotRunning
	}
	if err := p.Signal(sigTerm); err != nil {
		return pid, fmt.Errorf("signal PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if _, alive := p.IsRunning(); !alive {
			return pid, p.Remove()
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := p.Signal(sigKill); err != nil {
		return pid, fmt.Errorf("kill PID %d: %w", pid, err)
	}
	return pid, p.Remove()
}
