package cli

import (
	"os"
	"os/exec"
	"sync"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/errsx"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
)

// runAllParallelProcesses realizes "all --parallel" as real child OS
// processes rather than goroutines: it re-execs the running usrsvc
// binary once per program name, each invocation scoped to a single
// non-"all" target, and joins their exit codes.
func runAllParallelProcesses(action string, names []string) exitcode.Code {
	self, err := os.Executable()
	if err != nil {
		log.Error("parallel fan-out: resolving own binary path: %s", err)
		return exitcode.GeneralFailure
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		failed  []string
		exitErr error
	)

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer errsx.LogPanic("parallel re-exec for " + name)

			cmd := exec.Command(self, "--config", GlobalOpts.ConfigPath, action, name)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr

			if err := cmd.Run(); err != nil {
				mu.Lock()
				failed = append(failed, name)
				exitErr = err
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()

	if len(failed) > 0 {
		log.Error("parallel %s: %d of %d programs failed: %v (last error: %s)", action, len(failed), len(names), failed, exitErr)
		return exitcode.GeneralFailure
	}
	return exitcode.Success
}
