// Package config loads and validates usrsvc's configuration: the
// top-level [Main] section and the [Program:<name>] sections gathered
// from the main file plus every *.cfg file in its config directory.
package config

import "regexp"

// MainConfig holds process-wide settings read from the [Main] section.
type MainConfig struct {
	// ConfigDir, if set, is an absolute directory scanned for
	// additional "*.cfg" program files.
	ConfigDir string
	// Pidfile is the daemon's own pidfile path.
	Pidfile string
	// UsrsvcdStdout/UsrsvcdStderr redirect the daemon's own output.
	// UsrsvcdStderr may be the literal "stdout".
	UsrsvcdStdout string
	UsrsvcdStderr string
	// LogLevel controls ambient logging verbosity ("debug" enables
	// verbose output; anything else is treated as normal).
	LogLevel string
	// MailTo/MailFrom configure the optional email notifier. A
	// non-empty MailTo enables it; an empty MailFrom falls back to
	// user@hostname.
	MailTo   string
	MailFrom string
}

// MonitoringConfig is the [[Monitoring]] subsection of a program.
type MonitoringConfig struct {
	// MonitorAfter suppresses monitoring until the program has run
	// this many seconds. 0 disables the suppression window.
	MonitorAfter int
	// ActivityFile, if non-empty, must be touched at least every
	// ActivityFileLimit seconds or the program is restarted.
	ActivityFile      string
	ActivityFileLimit int
	// RSSLimit in kilobytes; 0 disables the RSS monitor.
	RSSLimit int
}

// Active reports whether any monitor is configured for this program.
func (m MonitoringConfig) Active() bool {
	return m.ActivityFile != "" || m.RSSLimit > 0
}

// ProgramConfig is one program's full, validated contract.
type ProgramConfig struct {
	Name string

	// Command is the configured command line; CommandArgs is its
	// POSIX-shell tokenization, used to build the default
	// ProctitleRE and to exec directly when Useshell is false.
	Command     string
	CommandArgs []string

	Pidfile string

	Enabled        bool
	Autostart      bool
	Autorestart    bool
	MaxRestarts    int
	RestartDelay   int
	SuccessSeconds float64

	Autopid           bool
	Useshell          bool
	ScanForProcess    bool
	TermToKillSeconds float64

	InheritEnv bool
	Env        map[string]string

	Monitoring MonitoringConfig

	// ProctitleRE matches a candidate process's cmdline. Defaults to
	// an escaped, space-joined rendering of CommandArgs anchored at
	// the end of the line (a shebang can rewrite the executable, so
	// anchoring at the start would be unreliable).
	ProctitleRE *regexp.Regexp

	Stdout string
	Stderr string

	// Tags is a free-form set of labels usable by "status all --tag"
	// filtering. Not used by the supervision engine itself.
	Tags []string

	// defaultsRef is the name of the DefaultSettings section this
	// program referenced, if any; retained for diagnostics only.
	defaultsRef string
}

// Config is the fully parsed, merged, and validated configuration tree.
type Config struct {
	Main *MainConfig
	// Programs maps program name to its validated config.
	Programs map[string]*ProgramConfig
	// Order preserves the order programs were first encountered
	// across the main file and its config directory, for serial
	// fan-out ("action all").
	Order []string
}
