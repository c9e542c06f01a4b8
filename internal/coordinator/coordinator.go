// Package coordinator implements the Action Coordinator: it wraps a
// user-initiated start/stop/restart/status action with a per-program
// named lock so the CLI and the supervision daemon never race on the
// same program, and it fans "all" actions out serially or in
// parallel, ignoring SIGINT/SIGTERM while an action is in flight.
package coordinator

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/errsx"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/lock"
)

// ActionFunc performs one named action against one program and
// returns its exit code.
type ActionFunc func(programName string) exitcode.Code

// Coordinator serializes actions against the same program name
// between this CLI process and the daemon, over lock files rooted at
// Dir.
type Coordinator struct {
	Dir string
}

// New returns a Coordinator whose lock files live under dir.
func New(dir string) *Coordinator {
	return &Coordinator{Dir: dir}
}

// RunOne acquires the named program lock (waiting up to
// lock.WaitTimeout), ignores SIGINT/SIGTERM for the duration of the
// action so a signal can't leave a program half-started, runs fn, and
// releases the lock. Returns exitcode.TryAgain if the lock could not
// be acquired.
func (c *Coordinator) RunOne(programName string, fn ActionFunc) exitcode.Code {
	correlationID := uuid.NewString()

	l, err := lock.Acquire(c.Dir, programName)
	if err != nil {
		log.Error("[%s] program %s: %s", correlationID, programName, err)
		return exitcode.TryAgain
	}
	defer l.Release()

	restore := ignoreTerminationSignals()
	defer restore()

	log.Info("[%s] running action against %s", correlationID, programName)
	return fn(programName)
}

// RunAllSerial runs fn against each name in names, in
// configuration-iteration order, aggregating per-program failures
// into a single non-zero GeneralFailure when any fail.
func (c *Coordinator) RunAllSerial(names []string, fn ActionFunc) exitcode.Code {
	var errs []error
	for _, name := range names {
		if code := c.RunOne(name, fn); code != exitcode.Success {
			errs = append(errs, fmt.Errorf("%s: %s", name, code))
		}
	}
	return aggregate(errs)
}

// RunAllParallel spawns one goroutine per program name, joins all of
// them, and aggregates exit codes the same way RunAllSerial does.
// Across programs there is no ordering guarantee. The CLI's
// "--parallel" path does not call this: internal/cli re-execs one
// usrsvc child process per program instead, and each child takes the
// single-program RunOne path.
func (c *Coordinator) RunAllParallel(names []string, fn ActionFunc) exitcode.Code {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer errsx.LogPanic("coordinator parallel action on " + name)
			if code := c.RunOne(name, fn); code != exitcode.Success {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %s", name, code))
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()

	return aggregate(errs)
}

func aggregate(errs []error) exitcode.Code {
	if len(errs) == 0 {
		return exitcode.Success
	}
	err := errsx.Many("one or more programs failed", errs...)
	log.Error("%s", err)
	return exitcode.GeneralFailure
}

// ignoreTerminationSignals installs SIG_IGN for SIGINT/SIGTERM and
// returns a function that restores the previous default disposition,
// so a signal during a user action can't leave a program
// half-started.
func ignoreTerminationSignals() func() {
	signal.Ignore(syscall.SIGINT, syscall.SIGTERM)
	return func() {
		signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	}
}
