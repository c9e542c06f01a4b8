package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/usrsvc-go/usrsvc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the loaded usrsvc configuration",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the fully merged, validated configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigDump,
}

func init() {
	configCmd.AddCommand(configDumpCmd)
	rootCmd.AddCommand(configCmd)
}

// yamlMain/yamlProgram are plain data mirrors of config.MainConfig/
// ProgramConfig for YAML dumping: the real structs carry a compiled
// *regexp.Regexp (ProctitleRE), which yaml.v3 cannot marshal, so the
// dump renders its source pattern as a string instead.
type yamlMain struct {
	ConfigDir     string `yaml:"config_dir,omitempty"`
	Pidfile       string `yaml:"pidfile"`
	UsrsvcdStdout string `yaml:"usrsvcd_stdout,omitempty"`
	UsrsvcdStderr string `yaml:"usrsvcd_stderr,omitempty"`
	LogLevel      string `yaml:"log_level"`
	MailTo        string `yaml:"mail_to,omitempty"`
	MailFrom      string `yaml:"mail_from,omitempty"`
}

type yamlProgram struct {
	Name              string            `yaml:"name"`
	Command           string            `yaml:"command"`
	Pidfile           string            `yaml:"pidfile"`
	Enabled           bool              `yaml:"enabled"`
	Autostart         bool              `yaml:"autostart"`
	Autorestart       bool              `yaml:"autorestart"`
	MaxRestarts       int               `yaml:"maxrestarts"`
	RestartDelay      int               `yaml:"restart_delay"`
	SuccessSeconds    float64           `yaml:"success_seconds"`
	Autopid           bool              `yaml:"autopid"`
	Useshell          bool              `yaml:"useshell"`
	ScanForProcess    bool              `yaml:"scan_for_process"`
	TermToKillSeconds float64           `yaml:"term_to_kill_seconds"`
	InheritEnv        bool              `yaml:"inherit_env"`
	Env               map[string]string `yaml:"env,omitempty"`
	ProctitleRE       string            `yaml:"proctitle_re"`
	Stdout            string            `yaml:"stdout"`
	Stderr            string            `yaml:"stderr"`
	Tags              []string          `yaml:"tags,omitempty"`
	Monitoring        yamlMonitoring    `yaml:"monitoring"`
}

type yamlMonitoring struct {
	MonitorAfter      int    `yaml:"monitor_after"`
	ActivityFile      string `yaml:"activityfile,omitempty"`
	ActivityFileLimit int    `yaml:"activityfile_limit,omitempty"`
	RSSLimit          int    `yaml:"rss_limit,omitempty"`
}

type yamlDump struct {
	Main     yamlMain      `yaml:"main"`
	Programs []yamlProgram `yaml:"programs"`
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dump := yamlDump{Main: toYAMLMain(cfg.Main)}
	for _, name := range cfg.Order {
		dump.Programs = append(dump.Programs, toYAMLProgram(cfg.Programs[name]))
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encoding config as yaml: %w", err)
	}
	return nil
}

func toYAMLMain(m *config.MainConfig) yamlMain {
	return yamlMain{
		ConfigDir:     m.ConfigDir,
		Pidfile:       m.Pidfile,
		UsrsvcdStdout: m.UsrsvcdStdout,
		UsrsvcdStderr: m.UsrsvcdStderr,
		LogLevel:      m.LogLevel,
		MailTo:        m.MailTo,
		MailFrom:      m.MailFrom,
	}
}

func toYAMLProgram(p *config.ProgramConfig) yamlProgram {
	proctitle := ""
	if p.ProctitleRE != nil {
		proctitle = p.ProctitleRE.String()
	}
	return yamlProgram{
		Name:              p.Name,
		Command:           p.Command,
		Pidfile:           p.Pidfile,
		Enabled:           p.Enabled,
		Autostart:         p.Autostart,
		Autorestart:       p.Autorestart,
		MaxRestarts:       p.MaxRestarts,
		RestartDelay:      p.RestartDelay,
		SuccessSeconds:    p.SuccessSeconds,
		Autopid:           p.Autopid,
		Useshell:          p.Useshell,
		ScanForProcess:    p.ScanForProcess,
		TermToKillSeconds: p.TermToKillSeconds,
		InheritEnv:        p.InheritEnv,
		Env:               p.Env,
		ProctitleRE:       proctitle,
		Stdout:            p.Stdout,
		Stderr:            p.Stderr,
		Tags:              p.Tags,
		Monitoring: yamlMonitoring{
			MonitorAfter:      p.Monitoring.MonitorAfter,
			ActivityFile:      p.Monitoring.ActivityFile,
			ActivityFileLimit: p.Monitoring.ActivityFileLimit,
			RSSLimit:          p.Monitoring.RSSLimit,
		},
	}
}
