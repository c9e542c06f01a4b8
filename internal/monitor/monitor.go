// Package monitor implements the pluggable liveness checks that can
// demand a program restart: activity-file freshness and RSS ceiling.
package monitor

import (
	"context"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/errsx"
	"github.com/usrsvc-go/usrsvc/internal/procfs"
	"github.com/usrsvc-go/usrsvc/internal/program"
)

// CheckTimeout bounds a single monitor's wall-clock time so a monitor
// that stats an unresponsive filesystem can't freeze a round.
const CheckTimeout = 5 * time.Second

// Monitor is a liveness check. ShouldRestart inspects the running
// program and decides whether it must be restarted.
type Monitor interface {
	Name() string
	ShouldRestart(p *program.Program) bool
}

// ActivityFileMonitor restarts a program that hasn't touched its
// configured activity file recently enough, or whose activity file
// has disappeared entirely.
type ActivityFileMonitor struct {
	ProgramName string
	Path        string
	LimitSecs   int
}

// NewActivityFileMonitor returns nil if no activity file is
// configured for the program.
func NewActivityFileMonitor(programName, path string, limitSecs int) *ActivityFileMonitor {
	if path == "" {
		return nil
	}
	return &ActivityFileMonitor{ProgramName: programName, Path: path, LimitSecs: limitSecs}
}

func (m *ActivityFileMonitor) Name() string { return "activityfile" }

func (m *ActivityFileMonitor) ShouldRestart(_ *program.Program) bool {
	if !procfs.Exists(m.Path) {
		log.Info("restarting %s because activity file (%s) does not exist", m.ProgramName, m.Path)
		return true
	}
	mtime, err := procfs.Mtime(m.Path)
	if err != nil {
		log.Error("activityfile monitor for %s: %s", m.ProgramName, err)
		return false
	}
	threshold := time.Now().Unix() - int64(m.LimitSecs)
	if mtime < threshold {
		log.Info("restarting %s because it has not modified activity file (%s) in over %d seconds", m.ProgramName, m.Path, m.LimitSecs)
		return true
	}
	return false
}

// RSSLimitMonitor restarts a program whose resident set size exceeds
// a configured ceiling.
type RSSLimitMonitor struct {
	ProgramName string
	LimitKB     int
}

// NewRSSLimitMonitor returns nil if rss_limit is 0 (disabled).
func NewRSSLimitMonitor(programName string, limitKB int) *RSSLimitMonitor {
	if limitKB <= 0 {
		return nil
	}
	return &RSSLimitMonitor{ProgramName: programName, LimitKB: limitKB}
}

func (m *RSSLimitMonitor) Name() string { return "rss_limit" }

func (m *RSSLimitMonitor) ShouldRestart(p *program.Program) bool {
	rssKB, err := procfs.RSSKB(p.Pid)
	if err != nil {
		log.Error("rss_limit monitor for %s: %s", m.ProgramName, err)
		return false
	}
	if rssKB > m.LimitKB {
		log.Info("restarting %s because RSS size %dkB exceeds limit of %dkB", m.ProgramName, rssKB, m.LimitKB)
		return true
	}
	return false
}

// Result is the outcome of running a List against a program.
type Result struct {
	DoRestart  bool
	Triggered  string // monitor name that fired, "" if none
	NumRan     int
	RuntimeSec float64
}

// List runs its monitors in order; the first to report true
// short-circuits the rest.
type List []Monitor

// ExecuteList runs each monitor in order, bounded by CheckTimeout,
// stopping at the first restart demand. A panicking or timed-out
// monitor is logged and treated as "no restart" so one buggy check
// can't block the others.
func (l List) ExecuteList(p *program.Program) Result {
	start := time.Now()
	res := Result{}

	for _, m := range l {
		res.NumRan++
		if runBounded(m, p) {
			res.DoRestart = true
			res.Triggered = m.Name()
			break
		}
	}

	res.RuntimeSec = time.Since(start).Seconds()
	return res
}

// runBounded executes m.ShouldRestart on its own goroutine so a hung
// check (e.g. stat() against an unresponsive NFS mount) can't stall
// the round; a timeout or panic is logged and treated as false.
func runBounded(m Monitor, p *program.Program) bool {
	ctx, cancel := context.WithTimeout(context.Background(), CheckTimeout)
	defer cancel()

	result := make(chan bool, 1)
	go func() {
		defer errsx.LogPanic("monitor " + m.Name())
		result <- m.ShouldRestart(p)
	}()

	select {
	case r := <-result:
		return r
	case <-ctx.Done():
		log.Error("monitor %s timed out after %s", m.Name(), CheckTimeout)
		return false
	}
}
