// Package lifecycle implements the Process Lifecycle component: Start
// spawns a configured program and confirms it over a probation
// window, walking shell descendants to find the real worker process,
// and kills a shell wrapper left behind with no matching descendant
// rather than leaving it running; Stop sends SIGTERM, escalating to
// SIGKILL if the process outlives term_to_kill_seconds.
package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/pidfile"
	"github.com/usrsvc-go/usrsvc/internal/procfs"
)

const shellWrapperPrefix = "/bin/sh -c"

// StopResult is the outcome of a Stop call.
type StopResult string

const (
	StopNoAction   StopResult = "no action"
	StopTerminated StopResult = "terminated"
	StopKilled     StopResult = "killed"
)

// Start launches cfg.Command, waits out the probation window
// (SuccessSeconds), and on success records the live target pid and
// writes its pidfile. Never panics; every failure mode maps to one of
// the four documented return codes.
func Start(cfg *config.ProgramConfig) (exitcode.Code, int) {
	stdout, stderr, err := openOutputs(cfg)
	if err != nil {
		log.Error("program %s: %s", cfg.Name, err)
		return exitcode.InsufficientPermissions, 0
	}
	defer stdout.Close()
	if stderr != stdout {
		defer stderr.Close()
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		log.Error("program %s: opening /dev/null: %s", cfg.Name, err)
		return exitcode.InsufficientPermissions, 0
	}
	defer devnull.Close()

	useshell := cfg.Useshell
	var cmd *exec.Cmd
	if useshell {
		cmd = exec.Command("/bin/sh", "-c", cfg.Command)
	} else {
		if len(cfg.CommandArgs) == 0 {
			log.Error("program %s: command has no tokens", cfg.Name)
			return exitcode.ProgramFailedToLaunch, 0
		}
		cmd = exec.Command(cfg.CommandArgs[0], cfg.CommandArgs[1:]...)
	}

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = devnull
	cmd.Env = buildEnv(cfg)
	// File descriptors beyond 0/1/2 are not closed in the child, and
	// the child is not made a session leader.

	if err := cmd.Start(); err != nil {
		log.Error("program %s: failed to run command (%v): %s", cfg.Name, cfg.CommandArgs, err)
		return exitcode.ProgramFailedToLaunch, 0
	}

	spawnedPid := cmd.Process.Pid

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	targetPid, exitedEarly := waitForTarget(cfg, spawnedPid, exited)
	if targetPid == 0 {
		if exitedEarly {
			return exitcode.ProgramExitedUnexpectedly, 0
		}
		if useshell {
			killOrphanShell(cfg, spawnedPid)
		}
		return exitcode.ProgramFailedToLaunch, 0
	}

	if cfg.Autopid {
		if err := pidfile.Write(cfg.Pidfile, targetPid); err != nil {
			log.Error("program %s: writing pidfile: %s", cfg.Name, err)
		}
	}

	return exitcode.Success, targetPid
}

// waitForTarget polls across the probation window, identifying the
// true target pid beneath a possible shell wrapper and confirming it
// survives until the window closes. A zero target pid means failure;
// exitedEarly distinguishes "the spawned process died during the
// window" from "it lived but no matching target was ever found".
func waitForTarget(cfg *config.ProgramConfig, spawnedPid int, exited <-chan error) (targetPid int, exitedEarly bool) {
	deadline := time.Now().Add(time.Duration(cfg.SuccessSeconds * float64(time.Second)))
	pollInterval := cfg.SuccessSeconds / 5
	if pollInterval > 0.1 {
		pollInterval = 0.1
	}
	if pollInterval <= 0 {
		pollInterval = 0.01
	}
	interval := time.Duration(pollInterval * float64(time.Second))

	useshell := cfg.Useshell
	// useshell auto-demotion: some shells exec() away and become the
	// target process itself, in which case the spawned pid's own
	// cmdline never starts with "/bin/sh -c".
	if useshell {
		if cl, err := procfs.GetCmdline(spawnedPid); err == nil && !strings.HasPrefix(cl.Full, shellWrapperPrefix) {
			log.Info("program %s: useshell=true but spawned process is not a shell wrapper (cmdline %q); treating as useshell=false for this start", cfg.Name, cl.Full)
			useshell = false
		}
	}

	foundPid := 0

	for {
		select {
		case err := <-exited:
			if exitErr, ok := err.(*exec.ExitError); ok {
				log.Error("program %s: exited with code=%d", cfg.Name, exitErr.ExitCode())
			} else if err != nil {
				log.Error("program %s: exited: %s", cfg.Name, err)
			} else {
				log.Error("program %s: exited with code=0", cfg.Name)
			}
			return 0, true
		default:
		}

		if foundPid != 0 {
			if !procfs.Exists(fmt.Sprintf("/proc/%d", foundPid)) {
				foundPid = 0
			}
		}

		if foundPid == 0 {
			if !useshell {
				foundPid = spawnedPid
				if !matchesTarget(cfg, foundPid) {
					foundPid = 0
				}
			} else {
				foundPid = findShellDescendant(cfg, spawnedPid)
			}
		}

		if time.Now().After(deadline) {
			break
		}
		time.Sleep(interval)
	}

	return foundPid, false
}

func matchesTarget(cfg *config.ProgramConfig, pid int) bool {
	cl, err := procfs.GetCmdline(pid)
	if err != nil {
		return false
	}
	return cfg.ProctitleRE.MatchString(cl.Full)
}

// findShellDescendant walks the descendants of the spawned shell pid
// and returns the first one whose cmdline doesn't itself look like a
// shell wrapper and matches proctitle_re.
func findShellDescendant(cfg *config.ProgramConfig, shellPid int) int {
	candidates, err := procfs.MyPids()
	if err != nil {
		return 0
	}
	for _, pid := range procfs.Descendants(shellPid, candidates) {
		cl, err := procfs.GetCmdline(pid)
		if err != nil {
			continue
		}
		if strings.HasPrefix(cl.Full, shellWrapperPrefix) {
			continue
		}
		if cfg.ProctitleRE.MatchString(cl.Full) {
			return pid
		}
	}
	return 0
}

// killOrphanShell terminates a shell wrapper left running after a
// failed probation window, rather than leaving it orphaned.
func killOrphanShell(cfg *config.ProgramConfig, shellPid int) {
	if !procfs.Exists(fmt.Sprintf("/proc/%d", shellPid)) {
		return
	}
	log.Info("program %s: probation window ended with no matching descendant; killing orphan shell pid %d", cfg.Name, shellPid)
	syscall.Kill(shellPid, syscall.SIGKILL)
}

func openOutputs(cfg *config.ProgramConfig) (stdout, stderr *os.File, err error) {
	stdout, err = os.OpenFile(cfg.Stdout, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open stdout %s for writing: %w", cfg.Stdout, err)
	}
	if cfg.Stderr == cfg.Stdout {
		return stdout, stdout, nil
	}
	stderr, err = os.OpenFile(cfg.Stderr, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		stdout.Close()
		return nil, nil, fmt.Errorf("cannot open stderr %s for writing: %w", cfg.Stderr, err)
	}
	return stdout, stderr, nil
}

func buildEnv(cfg *config.ProgramConfig) []string {
	var env []string
	if cfg.InheritEnv {
		env = os.Environ()
	}
	overlay := make(map[string]string, len(cfg.Env))
	for k, v := range cfg.Env {
		overlay[k] = v
	}
	if len(overlay) == 0 {
		return env
	}
	// Overlay cfg.Env on top, replacing any inherited var of the same
	// name rather than appending a duplicate.
	seen := make(map[string]bool, len(overlay))
	out := make([]string, 0, len(env)+len(overlay))
	for _, kv := range env {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			out = append(out, kv)
			continue
		}
		key := kv[:eq]
		if v, ok := overlay[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
		} else {
			out = append(out, kv)
		}
	}
	for k, v := range overlay {
		if !seen[k] {
			out = append(out, k+"="+v)
		}
	}
	return out
}

// Stop sends SIGTERM to the program identified by pid (if its cmdline
// still matches proctitle_re), escalates to SIGKILL if it outlives
// cfg.TermToKillSeconds, and removes the pidfile in all cases.
func Stop(cfg *config.ProgramConfig, pid int, cmdline string) StopResult {
	result := StopNoAction

	if pid != 0 && cfg.ProctitleRE.MatchString(cmdline) {
		if err := syscall.Kill(pid, syscall.SIGTERM); err == nil {
			result = StopTerminated

			deadline := cfg.TermToKillSeconds
			pollInterval := deadline / 10
			if pollInterval > 0.1 {
				pollInterval = 0.1
			}
			if pollInterval <= 0 {
				pollInterval = 0.01
			}
			interval := time.Duration(pollInterval * float64(time.Second))
			until := time.Now().Add(time.Duration(deadline * float64(time.Second)))

			procPath := fmt.Sprintf("/proc/%d", pid)
			for procfs.Exists(procPath) && time.Now().Before(until) {
				time.Sleep(interval)
			}
			if procfs.Exists(procPath) {
				syscall.Kill(pid, syscall.SIGKILL)
				result = StopKilled
			}
		}
	}

	if err := pidfile.Remove(cfg.Pidfile); err != nil {
		log.Error("program %s: removing pidfile: %s", cfg.Name, err)
	}

	return result
}
