package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/identity"
	"github.com/usrsvc-go/usrsvc/internal/procfs"
)

var statusCmd = &cobra.Command{
	Use:   "status <program-name|all>",
	Short: "Report whether one or all configured programs are running",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// programStatus is the JSON/table row for one program: one flat row
// per target, a Running bool, and a free-form detail string.
type programStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
	Pid     int    `json:"pid,omitempty"`
	RSSKB   int    `json:"rss_kb,omitempty"`
	Detail  string `json:"detail"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	names, err := resolveStatusTargets(cfg, args[0])
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no programs matched")
		return nil
	}

	rows := make([]programStatus, 0, len(names))
	for _, name := range names {
		rows = append(rows, statusOne(cfg.Programs[name]))
	}

	if GlobalOpts.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return err
		}
	} else {
		printStatusTable(rows)
	}

	return statusExitError(args[0], rows)
}

// statusExitError reports a single not-running enabled target as a
// general failure. "status all" never fails this way: a mix of
// running/stopped programs is the expected steady state for a
// fan-out query, not a failure.
func statusExitError(target string, rows []programStatus) error {
	if target == "all" {
		return nil
	}
	row := rows[0]
	if row.Enabled && !row.Running {
		return fail(exitcode.GeneralFailure, "program %q is not running", row.Name)
	}
	return nil
}

// resolveStatusTargets is resolveTargets without the enabled/disabled
// rejection: "status" must be able to report on a disabled program
// rather than refusing to look at it the way start/stop/restart do.
func resolveStatusTargets(cfg *config.Config, name string) ([]string, error) {
	if name != "all" {
		if _, ok := cfg.Programs[name]; !ok {
			return nil, fail(exitcode.ProgramUndefined, "no such program %q", name)
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

func statusOne(pcfg *config.ProgramConfig) programStatus {
	st := programStatus{Name: pcfg.Name, Enabled: pcfg.Enabled}

	if !pcfg.Enabled {
		st.Detail = "disabled"
		return st
	}

	prog := identity.GetRunningProgram(pcfg)
	if prog == nil {
		st.Detail = "not running"
		return st
	}

	st.Running = true
	st.Pid = prog.Pid
	st.Detail = "running"
	if rss, err := procfs.RSSKB(prog.Pid); err == nil {
		st.RSSKB = rss
	}
	return st
}

func printStatusTable(rows []programStatus) {
	fmt.Println(StyleHeader.Render(fmt.Sprintf("%-20s %-10s %-8s %-10s %s", "PROGRAM", "STATE", "PID", "RSS(KB)", "DETAIL")))
	for _, r := range rows {
		state := "stopped"
		if !r.Enabled {
			state = "disabled"
		} else if r.Running {
			state = "running"
		}
		pid := "-"
		if r.Pid != 0 {
			pid = fmt.Sprintf("%d", r.Pid)
		}
		rss := "-"
		if r.RSSKB != 0 {
			rss = fmt.Sprintf("%d", r.RSSKB)
		}
		fmt.Printf("%-20s %-10s %-8s %-10s %s\n", r.Name, GetStateStyle(state).Render(state), pid, rss, r.Detail)
	}
}
