package identity

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/pidfile"
	"github.com/usrsvc-go/usrsvc/internal/program"
)

func baseConfig(t *testing.T, command string) *config.ProgramConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.ProgramConfig{
		Name:           "t",
		Command:        command,
		Pidfile:        filepath.Join(dir, "t.pid"),
		ScanForProcess: true,
		Autopid:        true,
		ProctitleRE:    regexp.MustCompile(regexp.QuoteMeta(command) + "$"),
	}
}

// TestStalePidfileRemoved checks that a pidfile referencing a pid
// whose cmdline no longer matches gets deleted before any other
// action: pid 99999 almost certainly doesn't exist, and even if
// something reused that number its cmdline won't match this
// proctitle_re.
func TestStalePidfileRemoved(t *testing.T) {
	cfg := baseConfig(t, "/usr/bin/sleep 60")
	require.NoError(t, pidfile.Write(cfg.Pidfile, 99999))
	cfg.ScanForProcess = false

	prog := GetRunningProgram(cfg)
	require.Nil(t, prog)

	_, err := pidfile.Read(cfg.Pidfile)
	require.Error(t, err, "stale pidfile must be removed")
}

func TestNoPidfileNoScanReturnsNil(t *testing.T) {
	cfg := baseConfig(t, "/usr/bin/sleep 60")
	cfg.ScanForProcess = false

	require.Nil(t, GetRunningProgram(cfg))
}

func TestPidfileMatchingCmdlineResolves(t *testing.T) {
	cfg := baseConfig(t, "/bin/sleep 77")
	cmd, pid := spawnSleep(t)
	defer syscall.Kill(pid, syscall.SIGKILL)

	require.NoError(t, pidfile.Write(cfg.Pidfile, pid))

	prog := GetRunningProgram(cfg)
	require.NotNil(t, prog)
	require.Equal(t, pid, prog.Pid)
	_ = cmd
}

func TestScanSkipsShellWrapper(t *testing.T) {
	cfg := baseConfig(t, "sleep 78")
	cfg.ProctitleRE = regexp.MustCompile("sleep 78$")

	// A two-command body keeps the shell resident (it can't exec away
	// the way "sh -c 'sleep 78'" would under dash), and makes the
	// wrapper's own cmdline ("/bin/sh -c sleep 78; sleep 78") match
	// the proctitle_re too. The scan must still skip it and resolve
	// to the sleep child underneath.
	shell := exec.Command("/bin/sh", "-c", "sleep 78; sleep 78")
	require.NoError(t, shell.Start())
	shellPid := shell.Process.Pid
	defer func() {
		syscall.Kill(shellPid, syscall.SIGKILL)
		shell.Wait()
	}()

	// No pidfile: scanForProgram must walk /proc itself. Wait for the
	// shell to have forked the sleep child.
	var prog *program.Program
	require.Eventually(t, func() bool {
		prog = GetRunningProgram(cfg)
		return prog != nil
	}, 2*time.Second, 50*time.Millisecond)
	defer syscall.Kill(prog.Pid, syscall.SIGKILL)

	require.NotEqual(t, shellPid, prog.Pid, "the scan must not resolve to the shell wrapper")
	require.NotContains(t, prog.Cmdline, "/bin/sh -c")
	require.Contains(t, prog.Cmdline, "sleep 78")
}

func spawnSleep(t *testing.T) (string, int) {
	t.Helper()
	p, err := os.StartProcess("/bin/sleep", []string{"/bin/sleep", "77"}, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	require.NoError(t, err)
	return "/bin/sleep 77", p.Pid
}
