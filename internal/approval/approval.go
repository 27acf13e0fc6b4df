// Package approval implements the file-based human-approval gate: a phase
// named "foo" is approved once "{plans_dir}/.approved_foo" exists.
package approval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store gates phases on the presence of an empty marker file in plansDir.
type Store struct {
	plansDir string
	// PollInterval is the fallback poll granularity when no filesystem
	// watch can be established.
	PollInterval time.Duration
}

func NewStore(plansDir string) *Store {
	return &Store{plansDir: plansDir, PollInterval: 10 * time.Second}
}

func (s *Store) markerPath(phase string) string {
	return filepath.Join(s.plansDir, ".approved_"+phase)
}

// IsApproved reports whether phase's marker file exists.
func (s *Store) IsApproved(phase string) bool {
	_, err := os.Stat(s.markerPath(phase))
	return err == nil
}

// GrantApproval creates phase's empty marker file.
func (s *Store) GrantApproval(phase string) error {
	if err := os.MkdirAll(s.plansDir, 0o755); err != nil {
		return fmt.Errorf("create plans dir: %w", err)
	}
	f, err := os.Create(s.markerPath(phase))
	if err != nil {
		return fmt.Errorf("grant approval for %s: %w", phase, err)
	}
	return f.Close()
}

// RevokeApproval removes phase's marker file, if present.
func (s *Store) RevokeApproval(phase string) error {
	err := os.Remove(s.markerPath(phase))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("revoke approval for %s: %w", phase, err)
	}
	return nil
}

// ListApprovals returns every currently-approved phase name.
func (s *Store) ListApprovals() ([]string, error) {
	entries, err := os.ReadDir(s.plansDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plans dir: %w", err)
	}
	var phases []string
	for _, e := range entries {
		if name, ok := strings.CutPrefix(e.Name(), ".approved_"); ok {
			phases = append(phases, name)
		}
	}
	sort.Strings(phases)
	return phases, nil
}

// WaitForApproval blocks until phase's marker file appears or timeoutHours
// elapses, returning whether it was approved in time. It watches plansDir
// with fsnotify when a watch can be established (most filesystems) and
// falls back to PollInterval polling otherwise — e.g. some container
// filesystems lack inotify.
func (s *Store) WaitForApproval(phase string, timeoutHours float64) bool {
	if s.IsApproved(phase) {
		return true
	}

	deadline := time.Now().Add(time.Duration(timeoutHours * float64(time.Hour)))
	events, cleanup := s.watch()
	defer cleanup()

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		if s.IsApproved(phase) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-events:
			// Re-check IsApproved on the next loop iteration.
		case <-ticker.C:
		case <-time.After(time.Until(deadline)):
		}
	}
}

func (s *Store) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return 10 * time.Second
	}
	return s.PollInterval
}

// watch attempts to establish an fsnotify watch on plansDir, returning a
// channel that fires on any filesystem event and a cleanup func. If the
// watch cannot be established, the returned channel never fires and
// polling alone drives WaitForApproval.
func (s *Store) watch() (<-chan struct{}, func()) {
	noop := func() {}
	if err := os.MkdirAll(s.plansDir, 0o755); err != nil {
		return nil, noop
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, noop
	}
	if err := watcher.Add(s.plansDir); err != nil {
		_ = watcher.Close()
		return nil, noop
	}

	events := make(chan struct{}, 1)
	go func() {
		for range watcher.Events {
			select {
			case events <- struct{}{}:
			default:
			}
		}
	}()
	return events, func() { _ = watcher.Close() }
}
