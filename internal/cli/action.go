package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/coordinator"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/identity"
	"github.com/usrsvc-go/usrsvc/internal/lifecycle"
)

var startCmd = &cobra.Command{
	Use:   "start <program-name|all>",
	Short: "Start one or all configured programs",
	Args:  cobra.ExactArgs(1),
	RunE:  runAction("start", startOne),
}

var stopCmd = &cobra.Command{
	Use:   "stop <program-name|all>",
	Short: "Stop one or all configured programs",
	Args:  cobra.ExactArgs(1),
	RunE:  runAction("stop", stopOne),
}

var restartCmd = &cobra.Command{
	Use:   "restart <program-name|all>",
	Short: "Restart one or all configured programs",
	Args:  cobra.ExactArgs(1),
	RunE:  runAction("restart", restartOne),
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
}

// runAction builds a cobra RunE from a per-program coordinator.ActionFunc,
// dispatching to a single target or fanning the "all" target out
// serially or (with --parallel) across re-exec'd child processes, one
// per program rather than one goroutine per program, so a program's
// action can't corrupt another's process state by sharing memory.
// This is the shared shape behind start/stop/restart: only the
// per-program action differs.
func runAction(action string, fn coordinator.ActionFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		names, err := resolveTargets(cfg, args[0])
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("no programs matched")
			return nil
		}

		c := coordinator.New(lockDir(cfg))

		if args[0] != "all" {
			code := c.RunOne(names[0], fn)
			if code != exitcode.Success {
				return codeError{Code: code, Err: fmt.Errorf("%s: %s", names[0], code)}
			}
			return nil
		}

		var code exitcode.Code
		if GlobalOpts.Parallel {
			code = runAllParallelProcesses(action, names)
		} else {
			code = c.RunAllSerial(names, fn)
		}
		if code != exitcode.Success {
			return codeError{Code: code, Err: fmt.Errorf("one or more programs failed")}
		}
		return nil
	}
}

func startOne(name string) exitcode.Code {
	cfg, err := loadConfig()
	if err != nil {
		return exitcode.InvalidConfig
	}
	pcfg, ok := cfg.Programs[name]
	if !ok {
		return exitcode.ProgramUndefined
	}
	if !pcfg.Enabled {
		return exitcode.ProgramDisabled
	}

	if prog := identity.GetRunningProgram(pcfg); prog != nil {
		log.Info("program %s: already running, pid %d", name, prog.Pid)
		return exitcode.Success
	}

	code, pid := lifecycle.Start(pcfg)
	if code == exitcode.Success {
		log.Info("program %s: started, pid %d", name, pid)
	}
	return code
}

func stopOne(name string) exitcode.Code {
	cfg, err := loadConfig()
	if err != nil {
		return exitcode.InvalidConfig
	}
	pcfg, ok := cfg.Programs[name]
	if !ok {
		return exitcode.ProgramUndefined
	}
	if !pcfg.Enabled {
		return exitcode.ProgramDisabled
	}

	prog := identity.GetRunningProgram(pcfg)
	if prog == nil {
		log.Info("program %s: not running", name)
		return exitcode.Success
	}

	result := lifecycle.Stop(pcfg, prog.Pid, prog.Cmdline)
	log.Info("program %s: stop result %s", name, result)
	return exitcode.Success
}

func restartOne(name string) exitcode.Code {
	if code := stopOne(name); code != exitcode.Success {
		return code
	}
	return startOne(name)
}
