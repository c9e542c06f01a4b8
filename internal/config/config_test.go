package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadBasicProgram(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "usrsvc.cfg")
	writeFile(t, mainFile, `
[Main]
log_level = debug

[Program:webapp]
command = /usr/bin/webapp --port 8080
pidfile = `+dir+`/webapp.pid
stdout = `+dir+`/webapp.out
`)

	cfg, err := Load(mainFile)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Main.LogLevel)
	require.Contains(t, cfg.Programs, "webapp")

	p := cfg.Programs["webapp"]
	assert.Equal(t, "webapp", p.Name)
	assert.True(t, p.Enabled)
	assert.True(t, p.Autostart)
	assert.True(t, p.Useshell)
	assert.Equal(t, 2.0, p.SuccessSeconds)
	assert.Equal(t, 8.0, p.TermToKillSeconds)
	assert.Equal(t, p.Stdout, p.Stderr)
	assert.True(t, p.ProctitleRE.MatchString("/usr/bin/webapp --port 8080"))
	assert.Equal(t, []string{"webapp"}, cfg.Order)
}

func TestLoadMissingPidfileIsAbsolute(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "usrsvc.cfg")
	writeFile(t, mainFile, `
[Main]

[Program:broken]
command = /bin/true
pidfile = relative.pid
stdout = `+dir+`/broken.out
`)
	_, err := Load(mainFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pidfile")
}

func TestLoadDefaultsMerge(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "usrsvc.cfg")
	writeFile(t, mainFile, `
[Main]

[DefaultSettings:common]
autorestart = false
stdout = `+dir+`/common.out

[[Env]]
SHARED=1
ONLY_DEFAULT=yes

[Program:a]
command = /bin/true
pidfile = `+dir+`/a.pid
defaults = common

[[Env]]
SHARED=2
`)

	cfg, err := Load(mainFile)
	require.NoError(t, err)
	require.Contains(t, cfg.Programs, "a")

	a := cfg.Programs["a"]
	assert.False(t, a.Autorestart, "program should inherit autorestart=false from defaults")
	assert.Equal(t, dir+"/common.out", a.Stdout, "program should inherit stdout from defaults")
	assert.Equal(t, "2", a.Env["SHARED"], "program's own Env value should win over the default")
	assert.Equal(t, "yes", a.Env["ONLY_DEFAULT"], "default-only Env keys should still be present")
}

func TestLoadUnknownDefaultsReference(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "usrsvc.cfg")
	writeFile(t, mainFile, `
[Main]

[Program:a]
command = /bin/true
pidfile = `+dir+`/a.pid
stdout = `+dir+`/a.out
defaults = missing
`)
	_, err := Load(mainFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "usrsvc.cfg")
	writeFile(t, mainFile, `
[Main]

[Program:a]
command = /bin/true
pidfile = `+dir+`/a.pid
stdout = `+dir+`/a.out
bogus_key = 1
`)
	_, err := Load(mainFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_key")
}

func TestLoadRejectsUnknownSection(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "usrsvc.cfg")
	writeFile(t, mainFile, `
[Main]

[Prgoram:typo]
command = /bin/true
`)
	_, err := Load(mainFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Prgoram")
}

func TestMonitoringActive(t *testing.T) {
	assert.False(t, MonitoringConfig{}.Active())
	assert.True(t, MonitoringConfig{ActivityFile: "/tmp/x"}.Active())
	assert.True(t, MonitoringConfig{RSSLimit: 10}.Active())
}

func TestShlexSplit(t *testing.T) {
	toks, err := shlexSplit(`/usr/bin/app --name "hello world" 'single quoted'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/app", "--name", "hello world", "single quoted"}, toks)
}

func TestParseBoolIntFloat(t *testing.T) {
	b, err := parseBool("1", "enabled")
	require.NoError(t, err)
	assert.True(t, b)

	b, err = parseBool("false", "enabled")
	require.NoError(t, err)
	assert.False(t, b)

	_, err = parseBool("maybe", "enabled")
	assert.Error(t, err)

	n, err := parseInt("42", "maxrestarts")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	f, err := parseFloat("2.5", "success_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)
}
