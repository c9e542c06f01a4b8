// Package errsx contains usrsvc's error-handling helpers: a constant
// error type usable as a sentinel, a multi-error aggregator for
// fan-out actions, and a goroutine panic-recovery helper.
package errsx

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/AdguardTeam/golibs/log"
)

// Error is a constant error type usable as a sentinel.
type Error string

// Error implements the error interface for Error.
func (err Error) Error() string {
	return string(err)
}

// manyError aggregates the per-program failures of a serial or
// parallel "all" fan-out into a single error.
type manyError struct {
	message    string
	underlying []error
}

// Many wraps zero or more errors into a single error. A nil
// underlying error is skipped, so callers can build the list
// unconditionally across a loop and call Many once at the end.
func Many(message string, underlying ...error) error {
	var kept []error
	for _, e := range underlying {
		if e != nil {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &manyError{message: message, underlying: kept}
}

// Error implements the error interface for *manyError.
func (e *manyError) Error() string {
	switch len(e.underlying) {
	case 0:
		return e.message
	case 1:
		return fmt.Sprintf("%s: %s", e.message, e.underlying[0])
	default:
		b := &strings.Builder{}
		fmt.Fprintf(b, "%s: %s (and %d more)", e.message, e.underlying[0], len(e.underlying)-1)
		return b.String()
	}
}

// Unwrap implements the errors.wrapper interface for *manyError.
func (e *manyError) Unwrap() error {
	if len(e.underlying) == 0 {
		return nil
	}
	return e.underlying[0]
}

// LogPanic recovers a panic in the calling goroutine, logs it with
// prefix and the goroutine's stack trace, and swallows it. Used at the
// top of each supervision round and in worker goroutines (monitor
// checks, the config watcher, "all" fan-out workers) where a stuck or
// buggy check must not take down the daemon.
func LogPanic(prefix string) {
	if v := recover(); v != nil {
		if prefix != "" {
			log.Error("%s: recovered from panic: %v\n%s", prefix, v, debug.Stack())
			return
		}
		log.Error("recovered from panic: %v\n%s", v, debug.Stack())
	}
}
