package lifecycle

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/pidfile"
	"github.com/usrsvc-go/usrsvc/internal/procfs"
)

func baseConfig(t *testing.T, command string) *config.ProgramConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.ProgramConfig{
		Name:              "t",
		Command:           command,
		CommandArgs:       []string{},
		Pidfile:           filepath.Join(dir, "t.pid"),
		Stdout:            filepath.Join(dir, "t.out"),
		Stderr:            filepath.Join(dir, "t.out"),
		Useshell:          false,
		Autopid:           true,
		InheritEnv:        true,
		Env:               map[string]string{},
		SuccessSeconds:    0.5,
		TermToKillSeconds: 2,
		ProctitleRE:       regexp.MustCompile(regexp.QuoteMeta(command) + "$"),
	}
}

func TestStartSleepSucceeds(t *testing.T) {
	cfg := baseConfig(t, "/bin/sleep 60")
	cfg.CommandArgs = []string{"/bin/sleep", "60"}

	code, pid := Start(cfg)
	require.Equal(t, 0, int(code))
	require.NotZero(t, pid)
	defer func() { syscallKill(pid) }()

	data, err := os.ReadFile(cfg.Pidfile)
	require.NoError(t, err)
	require.Contains(t, string(data), itoa(pid))

	cl, err := procfs.GetCmdline(pid)
	require.NoError(t, err)
	require.True(t, cfg.ProctitleRE.MatchString(cl.Full))
}

func TestStartFalseFails(t *testing.T) {
	cfg := baseConfig(t, "/bin/false")
	cfg.CommandArgs = []string{"/bin/false"}
	cfg.SuccessSeconds = 0.3

	code, pid := Start(cfg)
	require.Equal(t, exitcode.ProgramExitedUnexpectedly, code)
	require.Zero(t, pid)
}

func TestStartMissingBinaryFailsToLaunch(t *testing.T) {
	cfg := baseConfig(t, "/no/such/binary")
	cfg.CommandArgs = []string{"/no/such/binary"}
	cfg.SuccessSeconds = 0.2

	code, pid := Start(cfg)
	require.Equal(t, exitcode.ProgramFailedToLaunch, code)
	require.Zero(t, pid)
}

func TestStopTerminatesWithinWindow(t *testing.T) {
	cfg := baseConfig(t, "/bin/sleep 60")
	cfg.CommandArgs = []string{"/bin/sleep", "60"}

	_, pid := Start(cfg)
	require.NotZero(t, pid)

	cl, err := procfs.GetCmdline(pid)
	require.NoError(t, err)

	result := Stop(cfg, pid, cl.Full)
	require.Equal(t, StopTerminated, result)

	// pidfile must be gone after a successful stop.
	_, err = pidfile.Read(cfg.Pidfile)
	require.Error(t, err)
}

func TestStopNoActionOnMismatchedCmdline(t *testing.T) {
	cfg := baseConfig(t, "/bin/sleep 60")
	result := Stop(cfg, os.Getpid(), "/usr/bin/something-else")
	require.Equal(t, StopNoAction, result)
}

func TestStartUseshellFindsTargetBeneathShell(t *testing.T) {
	cfg := baseConfig(t, "/bin/sleep 30")
	cfg.Useshell = true
	cfg.CommandArgs = []string{"/bin/sleep", "30"}
	cfg.SuccessSeconds = 1

	code, pid := Start(cfg)
	require.Equal(t, 0, int(code))
	require.NotZero(t, pid)
	defer syscallKill(pid)

	cl, err := procfs.GetCmdline(pid)
	require.NoError(t, err)
	require.NotContains(t, cl.Full, "/bin/sh -c")
	require.Contains(t, cl.Full, "sleep")
}

func TestWaitUpToBound(t *testing.T) {
	start := time.Now()
	cfg := baseConfig(t, "/bin/false")
	cfg.CommandArgs = []string{"/bin/false"}
	cfg.SuccessSeconds = 0.2
	Start(cfg)
	require.Less(t, time.Since(start), 2*time.Second)
}
