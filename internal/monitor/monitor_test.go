package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/program"
)

func TestActivityFileMonitorMissingFileRestarts(t *testing.T) {
	dir := t.TempDir()
	m := NewActivityFileMonitor("p", filepath.Join(dir, "absent"), 5)
	require.True(t, m.ShouldRestart(&program.Program{}))
}

func TestActivityFileMonitorFreshFileNoRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activity")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	m := NewActivityFileMonitor("p", path, 60)
	require.False(t, m.ShouldRestart(&program.Program{}))
}

func TestActivityFileMonitorStaleFileRestarts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activity")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	m := NewActivityFileMonitor("p", path, 5)
	require.True(t, m.ShouldRestart(&program.Program{}))
}

func TestNewActivityFileMonitorDisabledWhenEmpty(t *testing.T) {
	require.Nil(t, NewActivityFileMonitor("p", "", 5))
}

func TestNewRSSLimitMonitorDisabledWhenZero(t *testing.T) {
	require.Nil(t, NewRSSLimitMonitor("p", 0))
}

func TestRSSLimitMonitorOwnProcessUnderLimit(t *testing.T) {
	m := NewRSSLimitMonitor("p", 1<<30) // 1TB, nothing should exceed this
	require.False(t, m.ShouldRestart(&program.Program{Pid: os.Getpid()}))
}

func TestRSSLimitMonitorOwnProcessOverLimit(t *testing.T) {
	m := NewRSSLimitMonitor("p", 1)
	require.True(t, m.ShouldRestart(&program.Program{Pid: os.Getpid()}))
}

func TestExecuteListShortCircuitsOnFirstTrue(t *testing.T) {
	dir := t.TempDir()
	list := List{
		NewActivityFileMonitor("p", filepath.Join(dir, "absent"), 5),
		NewRSSLimitMonitor("p", 1),
	}
	res := list.ExecuteList(&program.Program{Pid: os.Getpid()})
	require.True(t, res.DoRestart)
	require.Equal(t, "activityfile", res.Triggered)
	require.Equal(t, 1, res.NumRan)
}

func TestExecuteListNoneFire(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activity")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	list := List{
		NewActivityFileMonitor("p", path, 60),
		NewRSSLimitMonitor("p", 1<<30),
	}
	res := list.ExecuteList(&program.Program{Pid: os.Getpid()})
	require.False(t, res.DoRestart)
	require.Equal(t, 2, res.NumRan)
}

func TestFromConfigRespectsActiveMonitors(t *testing.T) {
	cfg := &config.ProgramConfig{
		Name: "p",
		Monitoring: config.MonitoringConfig{
			ActivityFile: "",
			RSSLimit:     0,
		},
	}
	require.Empty(t, FromConfig(cfg))

	cfg.Monitoring.RSSLimit = 1024
	require.Len(t, FromConfig(cfg), 1)
}
