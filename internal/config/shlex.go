package config

import "github.com/google/shlex"

// shlexSplit tokenizes a command line with POSIX-shell quoting rules.
func shlexSplit(s string) ([]string, error) {
	return shlex.Split(s)
}
