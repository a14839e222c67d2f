// Package util provides helpers for virtual serial management using socat.
package util

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SocatManager manages lifecycle of socat-created virtual serial pairs.
// The simulator uses it to give the gateway and the simulated Pi a PTY each.
type SocatManager struct {
	mu     sync.Mutex
	log    *zap.Logger
	bin    string
	cmds   []*exec.Cmd
	links  []string
	closed bool
}

// NewSocatManager initializes an empty manager.
func NewSocatManager(log *zap.Logger) *SocatManager {
	return &SocatManager{log: log.Named("virt-serial"), bin: "socat"}
}

// CreatePair starts a socat process that links two PTYs (bidirectional)
// and waits until both links exist.
func (m *SocatManager) CreatePair(left, right string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("socat manager closed")
	}

	cmd := exec.Command(
		m.bin, "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start socat: %w", err)
	}
	m.log.Info("started socat", zap.Int("pid", cmd.Process.Pid), zap.String("left", left), zap.String("right", right))

	m.cmds = append(m.cmds, cmd)
	m.links = append(m.links, left, right)
	return waitForLinks(2*time.Second, left, right)
}

func waitForLinks(timeout time.Duration, paths ...string) error {
	deadline := time.Now().Add(timeout)
	for _, p := range paths {
		for {
			if _, err := os.Lstat(p); err == nil {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("socat link %s not created within %s", p, timeout)
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
	return nil
}

// Cleanup stops all socat processes and removes created links.
func (m *SocatManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	for _, cmd := range m.cmds {
		if cmd.Process != nil {
			m.log.Debug("killing socat", zap.Int("pid", cmd.Process.Pid))
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		}
	}

	for _, path := range m.links {
		if _, err := os.Lstat(path); err == nil {
			_ = os.Remove(path)
			m.log.Debug("removed link", zap.String("path", path))
		}
	}

	m.log.Info("cleanup complete", zap.Int("pairs", len(m.links)/2))
}
