// Package identity resolves a ProgramConfig to the running Program it
// describes, if any: pidfile first, falling back to a process-table
// scan.
package identity

import (
	"strings"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/pidfile"
	"github.com/usrsvc-go/usrsvc/internal/procfs"
	"github.com/usrsvc-go/usrsvc/internal/program"
)

const shellWrapperPrefix = "/bin/sh -c"

// GetRunningProgram resolves cfg to its running Program, or nil if
// none is found. It never returns an error: every failure mode (a
// missing pidfile, a stale pidfile, a vanished pid during scanning) is
// logged where informative and folded into a nil result.
func GetRunningProgram(cfg *config.ProgramConfig) *program.Program {
	if prog := fromPidfile(cfg); prog != nil {
		return prog
	}

	if !cfg.ScanForProcess {
		return nil
	}
	return scanForProgram(cfg)
}

func fromPidfile(cfg *config.ProgramConfig) *program.Program {
	pid, err := pidfile.Read(cfg.Pidfile)
	if err != nil {
		return nil
	}

	cl, err := procfs.GetCmdline(pid)
	if err != nil {
		log.Info("program %s: stale pidfile %s (pid %d is not running); removing", cfg.Name, cfg.Pidfile, pid)
		if rmErr := pidfile.Remove(cfg.Pidfile); rmErr != nil {
			log.Error("program %s: removing stale pidfile: %s", cfg.Name, rmErr)
		}
		return nil
	}

	prog := program.Program{
		Pid:         pid,
		Cmdline:     cl.Full,
		Executable:  cl.Executable,
		Args:        cl.Args,
		Running:     true,
		PidfilePath: cfg.Pidfile,
	}

	if prog.ValidateProcTitle(cfg.ProctitleRE) {
		return &prog
	}

	log.Info("program %s: stale pidfile %s (pid %d, cmdline %q does not match proctitle_re); removing", cfg.Name, cfg.Pidfile, pid, cl.Full)
	if err := pidfile.Remove(cfg.Pidfile); err != nil {
		log.Error("program %s: removing stale pidfile: %s", cfg.Name, err)
	}
	return nil
}

func scanForProgram(cfg *config.ProgramConfig) *program.Program {
	pids, err := procfs.MyPids()
	if err != nil {
		log.Error("program %s: scanning /proc: %s", cfg.Name, err)
		return nil
	}

	for _, pid := range pids {
		cl, err := procfs.GetCmdline(pid)
		if err != nil {
			continue
		}
		if strings.HasPrefix(cl.Full, shellWrapperPrefix) {
			continue
		}
		if !cfg.ProctitleRE.MatchString(cl.Full) {
			continue
		}

		prog := program.Program{
			Pid:         pid,
			Cmdline:     cl.Full,
			Executable:  cl.Executable,
			Args:        cl.Args,
			Running:     true,
			PidfilePath: cfg.Pidfile,
		}
		log.Info("program %s: found running instance pid %d by process scan", cfg.Name, pid)
		if cfg.Autopid {
			if err := pidfile.Write(cfg.Pidfile, pid); err != nil {
				log.Error("program %s: writing pidfile after scan: %s", cfg.Name, err)
			}
		}
		return &prog
	}

	return nil
}
