package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var mainKnownKeys = map[string]bool{
	"config_dir":     true,
	"pidfile":        true,
	"usrsvcd_stdout": true,
	"usrsvcd_stderr": true,
	"log_level":      true,
	"mail_to":        true,
	"mail_from":      true,
}

func buildMainConfig(sec *parsedSection) (*MainConfig, error) {
	for k := range sec.values {
		if !mainKnownKeys[k] {
			return nil, fmt.Errorf("unknown config option in [Main] section: %s", k)
		}
	}
	if len(sec.sub) != 0 {
		return nil, fmt.Errorf("[Main] section does not support subsections")
	}

	m := &MainConfig{LogLevel: "info"}

	if v, ok := sec.values["config_dir"]; ok && v != "" {
		if v[0] != '/' {
			return nil, fmt.Errorf("config_dir in [Main], if defined, must be an absolute path")
		}
		m.ConfigDir = strings.TrimSuffix(v, "/")
	}

	if v, ok := sec.values["pidfile"]; ok && v != "" {
		m.Pidfile = v
	} else {
		home := os.Getenv("HOME")
		if home == "" {
			home = "/tmp"
		}
		m.Pidfile = fmt.Sprintf("%s/%d_usrsvcd.pid", home, os.Getuid())
	}

	if v, ok := sec.values["usrsvcd_stdout"]; ok && v != "" {
		if v[0] != '/' {
			return nil, fmt.Errorf("usrsvcd_stdout in [Main], if defined, must be an absolute path")
		}
		m.UsrsvcdStdout = v
	}

	if v, ok := sec.values["usrsvcd_stderr"]; ok && v != "" {
		if v != "stdout" && v[0] != '/' {
			return nil, fmt.Errorf(`usrsvcd_stderr in [Main], if defined, must be "stdout" or an absolute path`)
		}
		m.UsrsvcdStderr = v
	}

	if v, ok := sec.values["log_level"]; ok && v != "" {
		m.LogLevel = v
	}
	m.MailTo = sec.values["mail_to"]
	m.MailFrom = sec.values["mail_from"]

	return m, nil
}

var programKnownKeys = map[string]bool{
	"command":              true,
	"pidfile":              true,
	"autostart":            true,
	"autorestart":          true,
	"maxrestarts":          true,
	"restart_delay":        true,
	"autopid":              true,
	"useshell":             true,
	"proctitle_re":         true,
	"success_seconds":      true,
	"term_to_kill_seconds": true,
	"scan_for_process":     true,
	"stdout":               true,
	"stderr":               true,
	"enabled":              true,
	"inherit_env":          true,
	"defaults":             true,
	"tags":                 true,
}

// buildProgramConfig validates and coerces a parsed program section:
// required fields, boolean/int/float coercion with defaults, the
// proctitle_re auto-generation rule, and stdout/stderr path
// validation (including the parent-directory-must-exist check).
func buildProgramConfig(sec *parsedSection) (*ProgramConfig, error) {
	for k := range sec.values {
		if k == "defaults" {
			continue
		}
		if !programKnownKeys[k] {
			return nil, fmt.Errorf("unknown config options for program %q: %s", sec.name, k)
		}
	}
	for subName := range sec.sub {
		if subName != "Env" && subName != "Monitoring" {
			return nil, fmt.Errorf("unknown config options for program %q: %s", sec.name, subName)
		}
	}

	if sec.name == "" {
		return nil, fmt.Errorf("program config defined without a name")
	}

	p := &ProgramConfig{
		Name:        sec.name,
		defaultsRef: sec.values["defaults"],
	}

	p.Pidfile = sec.values["pidfile"]
	if p.Pidfile == "" || p.Pidfile[0] != '/' {
		return nil, fmt.Errorf("program %q: pidfile must be defined and must be an absolute path", sec.name)
	}

	var err error
	if p.Enabled, err = boolDefault(sec.values, "enabled", true); err != nil {
		return nil, err
	}
	if p.Autostart, err = boolDefault(sec.values, "autostart", true); err != nil {
		return nil, err
	}
	if p.Autorestart, err = boolDefault(sec.values, "autorestart", true); err != nil {
		return nil, err
	}
	if p.MaxRestarts, err = intDefault(sec.values, "maxrestarts", 0); err != nil {
		return nil, err
	}
	if p.RestartDelay, err = intDefault(sec.values, "restart_delay", 0); err != nil {
		return nil, err
	}
	if p.SuccessSeconds, err = floatDefault(sec.values, "success_seconds", 2.0); err != nil {
		return nil, err
	}
	if p.Autopid, err = boolDefault(sec.values, "autopid", true); err != nil {
		return nil, err
	}
	if p.Useshell, err = boolDefault(sec.values, "useshell", true); err != nil {
		return nil, err
	}
	if p.ScanForProcess, err = boolDefault(sec.values, "scan_for_process", true); err != nil {
		return nil, err
	}
	if p.TermToKillSeconds, err = floatDefault(sec.values, "term_to_kill_seconds", 8.0); err != nil {
		return nil, err
	}
	if p.TermToKillSeconds < 0 {
		return nil, fmt.Errorf("program %q: term_to_kill_seconds must be a positive number", sec.name)
	}
	if p.InheritEnv, err = boolDefault(sec.values, "inherit_env", true); err != nil {
		return nil, err
	}

	p.Env = cloneMap(sec.sub["Env"])
	if p.Env == nil {
		p.Env = map[string]string{}
	}

	monSec := sec.sub["Monitoring"]
	p.Monitoring, err = buildMonitoringConfig(sec.name, monSec)
	if err != nil {
		return nil, err
	}

	if tagsRaw, ok := sec.values["tags"]; ok && tagsRaw != "" {
		for _, t := range strings.Split(tagsRaw, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				p.Tags = append(p.Tags, t)
			}
		}
	}

	p.Command = sec.values["command"]
	if p.Command == "" {
		return nil, fmt.Errorf("program %q: missing command", sec.name)
	}
	p.CommandArgs, err = shlexSplit(p.Command)
	if err != nil {
		return nil, fmt.Errorf("program %q: cannot parse command %q: %w", sec.name, p.Command, err)
	}

	if reStr, ok := sec.values["proctitle_re"]; ok && reStr != "" {
		p.ProctitleRE, err = regexp.Compile(reStr)
		if err != nil {
			return nil, fmt.Errorf("program %q: invalid proctitle_re: %w", sec.name, err)
		}
	} else {
		escaped := regexp.QuoteMeta(strings.Join(p.CommandArgs, " "))
		p.ProctitleRE = regexp.MustCompile("(" + escaped + ")$")
	}

	stdout := sec.values["stdout"]
	if stdout == "" {
		return nil, fmt.Errorf("program %q: does not define a value for stdout", sec.name)
	}
	if stdout[0] != '/' {
		return nil, fmt.Errorf("program %q: invalid stdout path %q, must be absolute", sec.name, stdout)
	}
	if info, statErr := os.Stat(filepath.Dir(stdout)); statErr != nil || !info.IsDir() {
		return nil, fmt.Errorf("program %q: stdout path %q's directory %q does not exist", sec.name, stdout, filepath.Dir(stdout))
	}
	p.Stdout = stdout

	stderr := sec.values["stderr"]
	if stderr == "" || stderr == "stdout" {
		p.Stderr = stdout
	} else {
		if stderr[0] != '/' {
			return nil, fmt.Errorf("program %q: invalid stderr path %q, must be absolute", sec.name, stderr)
		}
		if info, statErr := os.Stat(filepath.Dir(stderr)); statErr != nil || !info.IsDir() {
			return nil, fmt.Errorf("program %q: stderr path %q's directory %q does not exist", sec.name, stderr, filepath.Dir(stderr))
		}
		p.Stderr = stderr
	}

	return p, nil
}

var monitoringKnownKeys = map[string]bool{
	"monitor_after":      true,
	"activityfile":       true,
	"activityfile_limit": true,
	"rss_limit":          true,
}

func buildMonitoringConfig(programName string, values map[string]string) (MonitoringConfig, error) {
	for k := range values {
		if !monitoringKnownKeys[k] {
			return MonitoringConfig{}, fmt.Errorf("program %q: unknown config options in Monitoring section: %s", programName, k)
		}
	}

	var m MonitoringConfig
	var err error
	if m.MonitorAfter, err = intDefault(values, "monitor_after", 30); err != nil {
		return MonitoringConfig{}, err
	}
	m.ActivityFile = values["activityfile"]
	if m.ActivityFile != "" && m.ActivityFile[0] != '/' {
		return MonitoringConfig{}, fmt.Errorf("program %q: activityfile must be an absolute path", programName)
	}
	if m.ActivityFileLimit, err = intDefault(values, "activityfile_limit", 120); err != nil {
		return MonitoringConfig{}, err
	}
	if m.RSSLimit, err = intDefault(values, "rss_limit", 0); err != nil {
		return MonitoringConfig{}, err
	}
	if m.RSSLimit < 0 {
		return MonitoringConfig{}, fmt.Errorf("program %q: rss_limit must be 0 or a positive integer", programName)
	}
	return m, nil
}

func boolDefault(values map[string]string, key string, def bool) (bool, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return def, nil
	}
	return parseBool(v, key)
}

func intDefault(values map[string]string, key string, def int) (int, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return def, nil
	}
	return parseInt(v, key)
}

func floatDefault(values map[string]string, key string, def float64) (float64, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return def, nil
	}
	return parseFloat(v, key)
}
