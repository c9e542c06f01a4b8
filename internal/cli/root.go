// Package cli implements the usrsvc command-line interface: one file
// per subcommand group, a package-level rootCmd, an Execute() entry
// point, and init() wiring subcommands onto it. cmd/usrsvc/main.go
// calls cli.Execute() and nothing else.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/supervisor"
)

// defaultConfigPath returns $HOME/usrsvc.cfg, falling back to a bare
// relative name if HOME is unset (e.g. under a stripped-down service
// manager).
func defaultConfigPath() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, "usrsvc.cfg")
	}
	return "usrsvc.cfg"
}

// Opts holds the flags shared by every subcommand, as a package-level
// GlobalOpts checked directly inside RunE closures rather than
// threaded through function args.
type Opts struct {
	ConfigPath string
	JSONOutput bool
	Parallel   bool
	Tag        string
}

// GlobalOpts is populated by rootCmd's persistent flags before any
// subcommand's RunE runs.
var GlobalOpts = &Opts{}

var readmeFlag bool

var rootCmd = &cobra.Command{
	Use:   "usrsvc",
	Short: "Supervise and control user-space programs",
	Long: `usrsvc starts, stops, restarts, and reports on the status of programs
defined in a usrsvc configuration file. The companion usrsvcd daemon
supervises those same programs continuously: autostarting them,
restarting them on failure, and restarting them when a configured
monitor (activity-file freshness, RSS ceiling) trips.

Run "usrsvc --readme" for the full usage document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&GlobalOpts.ConfigPath, "config", "c", defaultConfigPath(), "path to the usrsvc configuration file")
	rootCmd.PersistentFlags().BoolVar(&GlobalOpts.JSONOutput, "json", false, "emit machine-readable JSON output where supported")
	rootCmd.PersistentFlags().BoolVarP(&GlobalOpts.Parallel, "parallel", "P", false, "fan an \"all\" action out across programs concurrently instead of serially")
	rootCmd.PersistentFlags().StringVar(&GlobalOpts.Tag, "tag", "", "restrict an \"all\" action to programs carrying this tag")
	rootCmd.Flags().BoolVar(&readmeFlag, "readme", false, "print the long-form usage document and exit")
}

// Execute runs the command tree and returns the process exit code.
// Cobra's own error return is deliberately not surfaced as a Go error
// here: every failure path in this CLI is expressed as an
// exitcode.Code so scripts calling usrsvc get a stable numeric exit
// status, not a generic "error" exit(1).
func Execute() exitcode.Code {
	if readmeArgPresent() {
		printReadme()
		return exitcode.HelpMessage
	}

	if cmd, err := rootCmd.ExecuteC(); err != nil {
		code := codeFromError(err)
		log.Error("%s: %s (%s)", cmd.Name(), err, code)
		return code
	}
	if helpArgPresent() {
		return exitcode.HelpMessage
	}
	return exitcode.Success
}

func readmeArgPresent() bool {
	for _, a := range os.Args[1:] {
		if a == "--readme" {
			return true
		}
	}
	return false
}

// helpArgPresent reports whether cobra just rendered help because the
// user asked for it. Help output exits HELP_MESSAGE, not SUCCESS, so
// scripts can tell "did something" from "printed usage".
func helpArgPresent() bool {
	for _, a := range os.Args[1:] {
		if a == "--help" || a == "-h" {
			return true
		}
	}
	return false
}

func codeFromError(err error) exitcode.Code {
	if ce, ok := err.(codeError); ok {
		return ce.Code
	}
	// Cobra reports an unrecognized subcommand as "unknown command";
	// that's the INVALID_ACTION case in the exit-code contract.
	if strings.HasPrefix(err.Error(), "unknown command") {
		return exitcode.InvalidAction
	}
	return exitcode.GeneralFailure
}

// codeError lets RunE functions return a specific exitcode.Code
// alongside the human-readable message cobra prints.
type codeError struct {
	Code exitcode.Code
	Err  error
}

func (e codeError) Error() string { return e.Err.Error() }

func fail(code exitcode.Code, format string, args ...any) error {
	return codeError{Code: code, Err: fmt.Errorf(format, args...)}
}

// loadConfig parses GlobalOpts.ConfigPath, returning InvalidConfig on
// failure through the same codeError path every other action uses.
// The [Main] log_level takes effect here, so every subcommand gets
// the configured verbosity without its own setup call.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GlobalOpts.ConfigPath)
	if err != nil {
		return nil, fail(exitcode.InvalidConfig, "%s", err)
	}
	if cfg.Main.LogLevel == "debug" {
		log.SetLevel(log.DEBUG)
	}
	return cfg, nil
}

// lockDir returns the per-program lock directory for this config,
// derived the same way usrsvcd derives it: the daemon pidfile's
// parent directory, so the CLI and daemon always agree without a
// separate config key.
func lockDir(cfg *config.Config) string {
	return supervisor.LockDirFor(cfg.Main.Pidfile)
}

// resolveTargets expands a CLI program-name argument ("all" or a
// single name) against cfg, honoring GlobalOpts.Tag for "all". A
// single unrecognized name is reported as ProgramUndefined; a
// disabled single-program target is ProgramDisabled.
func resolveTargets(cfg *config.Config, name string) ([]string, error) {
	if name != "all" {
		pcfg, ok := cfg.Programs[name]
		if !ok {
			return nil, fail(exitcode.ProgramUndefined, "no such program %q", name)
		}
		if !pcfg.Enabled {
			return nil, fail(exitcode.ProgramDisabled, "program %q is disabled", name)
		}
		return []string{name}, nil
	}

	var names []string
	for _, n := range cfg.Order {
		pcfg := cfg.Programs[n]
		if GlobalOpts.Tag != "" && !hasTag(pcfg.Tags, GlobalOpts.Tag) {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
