// Package supervisor implements the supervision loop: the daemon's
// round-based iteration over every configured program,
// autostart/autorestart, restart-budget enforcement, and monitor
// dispatch. Each round snapshots state, acts on it, and never blocks
// indefinitely on one target; the config directory is reparsed each
// round so edits take effect without a daemon restart.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/fsnotify/fsnotify"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/errsx"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/identity"
	"github.com/usrsvc-go/usrsvc/internal/lifecycle"
	"github.com/usrsvc-go/usrsvc/internal/lock"
	"github.com/usrsvc-go/usrsvc/internal/mailer"
	"github.com/usrsvc-go/usrsvc/internal/monitor"
	"github.com/usrsvc-go/usrsvc/internal/pidfile"
	"github.com/usrsvc-go/usrsvc/internal/program"
)

// RoundInterval is the sleep between supervision rounds.
const RoundInterval = time.Second

// programState is the daemon's in-memory, per-program bookkeeping.
// Unlike Program, this does survive across rounds: it's the restart
// budget and the timestamp used to resolve monitor_after and the
// success_seconds-equivalent "has this program been running long
// enough to trust it" question.
type programState struct {
	attempts         int
	cooldownUntil    time.Time
	runningSince     time.Time
	roundsRunning    int
	quarantineLogged bool
}

// Supervisor runs the round loop for one usrsvc configuration.
type Supervisor struct {
	MainConfigFile string
	LockDir        string
	Mailer         *mailer.Notifier

	states map[string]*programState
	// lastCfg is the most recent successfully parsed configuration,
	// supervised against when a reparse fails mid-flight.
	lastCfg *config.Config
}

// New returns a Supervisor that loads mainConfigFile fresh each round
// and coordinates per-program locks under lockDir.
func New(mainConfigFile, lockDir string) *Supervisor {
	return &Supervisor{
		MainConfigFile: mainConfigFile,
		LockDir:        lockDir,
		states:         map[string]*programState{},
	}
}

// Run acquires the daemon's own pidfile, redirects its own
// stdout/stderr per MainConfig, and loops rounds until ctx is
// canceled (on SIGTERM/SIGINT). Supervised programs are not stopped
// on shutdown; the daemon only observes and restarts, it never tears
// down on exit.
func (s *Supervisor) Run(ctx context.Context) exitcode.Code {
	cfg, err := config.Load(s.MainConfigFile)
	if err != nil {
		log.Error("%s", err)
		return exitcode.InvalidConfig
	}

	if cfg.Main.LogLevel == "debug" {
		log.SetLevel(log.DEBUG)
	}
	if err := redirectOutputs(cfg.Main); err != nil {
		log.Error("%s", err)
		return exitcode.InsufficientPermissions
	}

	if running, pid := daemonAlreadyRunning(cfg.Main.Pidfile); running {
		log.Error("usrsvcd already running as pid %d (pidfile %s)", pid, cfg.Main.Pidfile)
		return exitcode.UsrsvcdAlreadyRunning
	}
	if err := pidfile.Write(cfg.Main.Pidfile, os.Getpid()); err != nil {
		log.Error("writing daemon pidfile: %s", err)
		return exitcode.InsufficientPermissions
	}
	defer pidfile.Remove(cfg.Main.Pidfile)

	if cfg.Main.MailTo != "" {
		s.Mailer = mailer.New(cfg.Main.MailTo, cfg.Main.MailFrom)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("usrsvcd started, pid %d, config %s", os.Getpid(), s.MainConfigFile)

	configEvents := s.watchConfigDir(cfg.Main.ConfigDir)

	ticker := time.NewTicker(RoundInterval)
	defer ticker.Stop()

	s.runRound()
	for {
		select {
		case <-ctx.Done():
			log.Info("usrsvcd received shutdown signal, exiting")
			return exitcode.Success
		case <-ticker.C:
			s.runRound()
		case <-configEvents:
			log.Info("config directory changed, reparsing immediately")
			s.runRound()
		}
	}
}

// watchConfigDir returns a channel that receives a value whenever
// dir's contents change, or nil if dir is unset or cannot be watched.
// A changed config directory still waits for the next tick via
// RoundInterval in the worst case; this only shortens that wait, it
// never replaces the regular reparse.
func (s *Supervisor) watchConfigDir(dir string) <-chan struct{} {
	if dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("config watcher: %s (falling back to tick-only reparse)", err)
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		log.Error("config watcher: watching %s: %s (falling back to tick-only reparse)", dir, err)
		watcher.Close()
		return nil
	}

	events := make(chan struct{}, 1)
	go func() {
		defer errsx.LogPanic("config watcher")
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case events <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("config watcher: %s", err)
			}
		}
	}()

	return events
}

// runRound reparses the configuration and processes every enabled
// program. A panic anywhere in the round is recovered and logged so a
// bug in one program's handling can't take down the whole loop; it
// continues to the next round instead.
func (s *Supervisor) runRound() {
	defer errsx.LogPanic("supervision round")

	cfg, err := config.Load(s.MainConfigFile)
	if err != nil {
		if s.lastCfg == nil {
			log.Error("reparsing config: %s (no previous snapshot, skipping round)", err)
			return
		}
		log.Error("reparsing config: %s (supervising with previous snapshot)", err)
		cfg = s.lastCfg
	} else {
		s.lastCfg = cfg
	}

	for _, name := range cfg.Order {
		s.processProgram(cfg.Programs[name])
	}
}

func (s *Supervisor) processProgram(cfg *config.ProgramConfig) {
	if !cfg.Enabled {
		return
	}

	l, err := lock.TryAcquire(s.LockDir, cfg.Name)
	if err != nil {
		// A CLI action is presumably in flight; skip this program
		// this round rather than blocking the whole round on it.
		return
	}
	defer l.Release()

	st := s.stateFor(cfg.Name)
	prog := identity.GetRunningProgram(cfg)

	if prog == nil {
		s.handleNotRunning(cfg, st)
		return
	}

	s.handleRunning(cfg, st, prog)
}

func (s *Supervisor) stateFor(name string) *programState {
	st, ok := s.states[name]
	if !ok {
		st = &programState{}
		s.states[name] = st
	}
	return st
}

func (s *Supervisor) handleNotRunning(cfg *config.ProgramConfig, st *programState) {
	st.runningSince = time.Time{}
	st.roundsRunning = 0

	if !cfg.Autostart && !cfg.Autorestart {
		return
	}
	if time.Now().Before(st.cooldownUntil) {
		return
	}
	if cfg.MaxRestarts > 0 && st.attempts >= cfg.MaxRestarts {
		if !st.quarantineLogged {
			log.Error("program %s: quarantined after %d consecutive failed starts (maxrestarts=%d)", cfg.Name, st.attempts, cfg.MaxRestarts)
			st.quarantineLogged = true
		}
		return
	}

	code, _ := lifecycle.Start(cfg)
	if code != exitcode.Success {
		st.attempts++
		st.cooldownUntil = time.Now().Add(time.Duration(cfg.RestartDelay) * time.Second)
		log.Error("program %s: start attempt %d failed: %s", cfg.Name, st.attempts, code)
		s.notifyRestart(cfg, fmt.Sprintf("failed to start (%s), attempt %d", code, st.attempts))
		return
	}

	st.attempts = 0
	st.quarantineLogged = false
	st.runningSince = time.Now()
	log.Info("program %s: started", cfg.Name)
}

func (s *Supervisor) handleRunning(cfg *config.ProgramConfig, st *programState, prog *program.Program) {
	if st.runningSince.IsZero() {
		st.runningSince = time.Now()
	}
	st.roundsRunning++

	// Restart budget resets after one full round observed running.
	if st.roundsRunning >= 1 {
		st.attempts = 0
		st.quarantineLogged = false
	}

	if !cfg.Monitoring.Active() {
		return
	}
	runtime := time.Since(st.runningSince).Seconds()
	if cfg.Monitoring.MonitorAfter > 0 && runtime < float64(cfg.Monitoring.MonitorAfter) {
		return
	}

	list := monitor.FromConfig(cfg)
	if len(list) == 0 {
		return
	}

	result := list.ExecuteList(prog)
	if !result.DoRestart {
		return
	}

	log.Info("program %s: monitor %s triggered restart", cfg.Name, result.Triggered)
	lifecycle.Stop(cfg, prog.Pid, prog.Cmdline)
	code, _ := lifecycle.Start(cfg)
	st.attempts++
	st.runningSince = time.Now()
	st.roundsRunning = 0
	if code != exitcode.Success {
		log.Error("program %s: monitor-triggered restart failed: %s", cfg.Name, code)
	}
	s.notifyRestart(cfg, fmt.Sprintf("monitor %s triggered a restart", result.Triggered))
}

func (s *Supervisor) notifyRestart(cfg *config.ProgramConfig, reason string) {
	if s.Mailer == nil {
		return
	}
	s.Mailer.NotifyAsync(
		fmt.Sprintf("usrsvc: %s restarted", cfg.Name),
		fmt.Sprintf("Program %q was restarted: %s\n", cfg.Name, reason),
	)
}

// redirectOutputs points the daemon's own stdout/stderr at the files
// MainConfig names, if any. The literal stderr value "stdout" joins
// the two streams. Redirection happens at the fd level so both the
// logger and anything a supervised start echoes before its own
// redirection land in the configured files.
func redirectOutputs(m *config.MainConfig) error {
	if m.UsrsvcdStdout != "" {
		f, err := os.OpenFile(m.UsrsvcdStdout, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open usrsvcd_stdout %s for writing: %w", m.UsrsvcdStdout, err)
		}
		if err := syscall.Dup3(int(f.Fd()), 1, 0); err != nil {
			f.Close()
			return fmt.Errorf("redirecting stdout to %s: %w", m.UsrsvcdStdout, err)
		}
		f.Close()
	}

	switch m.UsrsvcdStderr {
	case "":
	case "stdout":
		if err := syscall.Dup3(1, 2, 0); err != nil {
			return fmt.Errorf("joining stderr to stdout: %w", err)
		}
	default:
		f, err := os.OpenFile(m.UsrsvcdStderr, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open usrsvcd_stderr %s for writing: %w", m.UsrsvcdStderr, err)
		}
		if err := syscall.Dup3(int(f.Fd()), 2, 0); err != nil {
			f.Close()
			return fmt.Errorf("redirecting stderr to %s: %w", m.UsrsvcdStderr, err)
		}
		f.Close()
	}

	return nil
}

// daemonAlreadyRunning reads an existing daemon pidfile and checks
// whether that pid is still alive.
func daemonAlreadyRunning(path string) (bool, int) {
	pid, err := pidfile.Read(path)
	if err != nil {
		return false, 0
	}
	if err := syscall.Kill(pid, 0); err != nil {
		pidfile.Remove(path)
		return false, 0
	}
	return true, pid
}

// LockDirFor derives the default lock directory from a daemon pidfile
// path: its parent directory. Both usrsvc and usrsvcd call this so
// they agree on where per-program lock files live without requiring a
// separate config key.
func LockDirFor(mainPidfile string) string {
	return filepath.Dir(mainPidfile)
}
