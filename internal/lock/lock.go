// Package lock implements the named, program-scoped filesystem lock
// that the Action Coordinator uses to keep a CLI invocation and the
// supervision loop from operating on the same program at once: an
// Acquire/TryAcquire/Release flock wrapper scoped to a program name,
// with a staleness window for locks left behind by a crashed holder.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/usrsvc-go/usrsvc/internal/errsx"
)

// StaleAfter is the age past which a held lock is considered
// abandoned (its holder crashed without releasing it) rather than
// busy.
const StaleAfter = 30 * time.Second

// WaitTimeout is how long Acquire will retry before giving up and
// returning ErrBusy: one staleness window plus a little margin so a
// holder that's about to finish normally gets the chance to release
// first.
const WaitTimeout = 31 * time.Second

const retryInterval = 200 * time.Millisecond

// ErrBusy is returned by Acquire when the lock is held by another,
// live process and it could not be acquired within WaitTimeout.
const ErrBusy = errsx.Error("lock busy")

// Info is the holder metadata written into the lock file, used only
// for diagnostics in log lines.
type Info struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held, named lock. Call Release when the guarded action is
// complete.
type Lock struct {
	path string
	file *os.File
}

func lockPath(dir, name string) string {
	return filepath.Join(dir, "lock_usrsvc"+name)
}

// Acquire takes the named lock rooted at dir (typically the daemon's
// config directory or $HOME), waiting up to WaitTimeout for a
// contested or stale lock to clear. Returns ErrBusy if it never
// clears.
func Acquire(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory %s: %w", dir, err)
	}
	path := lockPath(dir, name)

	deadline := time.Now().Add(WaitTimeout)
	for {
		l, err := tryAcquire(path)
		if err == nil {
			return l, nil
		}
		if !isStale(path) || !time.Now().Before(deadline) {
			if time.Now().Before(deadline) {
				time.Sleep(retryInterval)
				continue
			}
			return nil, ErrBusy
		}
		// Stale: best-effort removal, then retry the acquire
		// immediately. A concurrent racer may win the remove/recreate;
		// that's fine, the next tryAcquire will simply fail and we
		// loop again.
		os.Remove(path)
	}
}

// TryAcquire takes the lock without waiting, returning ErrBusy
// immediately if it's held (and not stale). Used by the supervision
// loop, which would rather skip a program this round than block the
// whole round on one contested lock.
func TryAcquire(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory %s: %w", dir, err)
	}
	path := lockPath(dir, name)
	l, err := tryAcquire(path)
	if err == nil {
		return l, nil
	}
	if isStale(path) {
		os.Remove(path)
		if l, err = tryAcquire(path); err == nil {
			return l, nil
		}
	}
	return nil, ErrBusy
}

func tryAcquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, ErrBusy
	}

	hostname, _ := os.Hostname()
	info := Info{PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now()}
	data, err := json.Marshal(info)
	if err == nil {
		file.Truncate(0)
		file.WriteAt(data, 0)
	}

	return &Lock{path: path, file: file}, nil
}

// isStale reports whether the lock file at path is older than
// StaleAfter. A lock file that doesn't exist isn't "stale" in the
// sense this function cares about (there's nothing to clear).
func isStale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > StaleAfter
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	os.Remove(l.path)
	l.file = nil
	return err
}

// ReadInfo reads the holder metadata from the named lock file, for
// diagnostic logging when Acquire reports ErrBusy.
func ReadInfo(dir, name string) (*Info, error) {
	data, err := os.ReadFile(lockPath(dir, name))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
