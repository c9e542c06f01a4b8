package supervisor

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usrsvc-go/usrsvc/internal/pidfile"
)

func writeMainConfig(t *testing.T, dir, programBlock string) string {
	t.Helper()
	path := filepath.Join(dir, "usrsvc.cfg")
	content := "[Main]\npidfile = " + filepath.Join(dir, "usrsvcd.pid") + "\n\n" + programBlock
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunRoundAutostartsEnabledProgram(t *testing.T) {
	dir := t.TempDir()
	pf := filepath.Join(dir, "sleepy.pid")
	mainFile := writeMainConfig(t, dir, `
[Program:sleepy]
command = /bin/sleep 60
useshell = false
pidfile = `+pf+`
stdout = `+filepath.Join(dir, "sleepy.out")+`
success_seconds = 0.3
`)

	s := New(mainFile, dir)
	s.runRound()

	pid, err := pidfile.Read(pf)
	require.NoError(t, err)
	require.NotZero(t, pid)
	defer syscall.Kill(pid, syscall.SIGKILL)
}

func TestRunRoundSkipsDisabledProgram(t *testing.T) {
	dir := t.TempDir()
	pf := filepath.Join(dir, "off.pid")
	mainFile := writeMainConfig(t, dir, `
[Program:off]
command = /bin/sleep 60
useshell = false
enabled = false
pidfile = `+pf+`
stdout = `+filepath.Join(dir, "off.out")+`
success_seconds = 0.3
`)

	s := New(mainFile, dir)
	s.runRound()

	_, err := pidfile.Read(pf)
	require.Error(t, err)
}

func TestRunRoundRespectsMaxRestarts(t *testing.T) {
	dir := t.TempDir()
	mainFile := writeMainConfig(t, dir, `
[Program:doomed]
command = /bin/false
useshell = false
maxrestarts = 2
restart_delay = 0
pidfile = `+filepath.Join(dir, "doomed.pid")+`
stdout = `+filepath.Join(dir, "doomed.out")+`
success_seconds = 0.1
`)

	s := New(mainFile, dir)
	for i := 0; i < 5; i++ {
		s.runRound()
	}

	require.Equal(t, 2, s.states["doomed"].attempts)
	require.True(t, s.states["doomed"].quarantineLogged)
}
