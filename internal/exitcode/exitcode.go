// Package exitcode defines the stable CLI exit-code taxonomy shared by
// usrsvc and usrsvcd.
package exitcode

// Code is a process exit status. The numeric values are a stable contract:
// scripts and monitoring systems key off of them, so existing values must
// never be renumbered.
type Code int

const (
	// Success indicates the requested action completed normally.
	Success Code = 0

	// GeneralFailure is a catch-all for action failures that don't have a
	// more specific code.
	GeneralFailure Code = 1

	// TryAgain means a lock was busy; the caller should retry shortly.
	TryAgain Code = 11

	// InvalidConfig means the configuration failed to parse or validate.
	InvalidConfig Code = 130

	// InvalidAction means the requested CLI action is not recognized.
	InvalidAction Code = 131

	// ProgramDisabled means the program's config has enabled=false.
	ProgramDisabled Code = 132

	// ProgramUndefined means the named program has no config entry.
	ProgramUndefined Code = 133

	// ProgramExitedUnexpectedly means the program died during its probation
	// window.
	ProgramExitedUnexpectedly Code = 134

	// UsrsvcdAlreadyRunning means another usrsvcd instance holds the daemon
	// pidfile.
	UsrsvcdAlreadyRunning Code = 135

	// InsufficientPermissions means stdout/stderr (or another required
	// resource) could not be opened.
	InsufficientPermissions Code = 136

	// ProgramFailedToLaunch means the spawn failed outright, or no matching
	// child was found by the end of the probation window.
	ProgramFailedToLaunch Code = 137

	// HelpMessage is returned after printing --help/--readme text.
	HelpMessage Code = 138

	// UnknownFailure is reserved for a failure that fits no other code.
	UnknownFailure Code = 254
)

var names = map[Code]string{
	Success:                   "SUCCESS",
	GeneralFailure:            "GENERAL_FAILURE",
	TryAgain:                  "TRY_AGAIN",
	InvalidConfig:             "INVALID_CONFIG",
	InvalidAction:             "INVALID_ACTION",
	ProgramDisabled:           "PROGRAM_DISABLED",
	ProgramUndefined:          "PROGRAM_UNDEFINED",
	ProgramExitedUnexpectedly: "PROGRAM_EXITED_UNEXPECTEDLY",
	UsrsvcdAlreadyRunning:     "USRSVCD_ALREADY_RUNNING",
	InsufficientPermissions:   "INSUFFICIENT_PERMISSIONS",
	ProgramFailedToLaunch:     "PROGRAM_FAILED_TO_LAUNCH",
	HelpMessage:               "HELP_MESSAGE",
	UnknownFailure:            "UNKNOWN_FAILURE",
}

// String returns the symbolic name for a return code, e.g. "SUCCESS". Unknown
// values are rendered as "UNKNOWN_FAILURE(<n>)" so a log line never silently
// drops the numeric value.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return "UNKNOWN_FAILURE(" + itoa(int(c)) + ")"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
