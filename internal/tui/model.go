// Package tui implements "usrsvc watch": a live bubbletea dashboard
// over program status, polling the same identity/procfs resolution
// the CLI's "status" command uses, driven by a periodic tea.Tick and
// rendered with lipgloss panels.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/identity"
	"github.com/usrsvc-go/usrsvc/internal/procfs"
)

// pollInterval is how often the dashboard re-resolves program status.
// Independent of supervisor.RoundInterval: this is a read-only
// observer, not a supervision round.
const pollInterval = time.Second

// Row is one program's status as of the last poll.
type Row struct {
	Name    string
	Enabled bool
	Running bool
	Pid     int
	RSSKB   int
	Detail  string
}

type statusMsg struct {
	rows []Row
	at   time.Time
}

type tickMsg time.Time

// Model is the bubbletea model backing "usrsvc watch".
type Model struct {
	cfg      *config.Config
	rows     []Row
	lastPoll time.Time
	spinner  spinner.Model
	paused   bool
	quitting bool
	width    int
	height   int
}

// New returns a Model that watches every program in cfg.
func New(cfg *config.Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{cfg: cfg, spinner: s}
}

// Run launches the full-screen watch dashboard and blocks until the
// user quits.
func Run(cfg *config.Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, pollCmd(m.cfg), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			return m, nil
		}
		return m, nil

	case tickMsg:
		if m.paused {
			return m, tickCmd()
		}
		return m, tea.Batch(pollCmd(m.cfg), tickCmd())

	case statusMsg:
		m.rows = msg.rows
		m.lastPoll = msg.at
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// pollCmd resolves every configured program's running status off the
// UI goroutine, the same way internal/cli/status.go does for a single
// "usrsvc status" invocation.
func pollCmd(cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		rows := make([]Row, 0, len(cfg.Order))
		for _, name := range cfg.Order {
			pcfg := cfg.Programs[name]
			row := Row{Name: name, Enabled: pcfg.Enabled}

			if !pcfg.Enabled {
				row.Detail = "disabled"
				rows = append(rows, row)
				continue
			}

			prog := identity.GetRunningProgram(pcfg)
			if prog == nil {
				row.Detail = "not running"
				rows = append(rows, row)
				continue
			}

			row.Running = true
			row.Pid = prog.Pid
			row.Detail = "running"
			if rss, err := procfs.RSSKB(prog.Pid); err == nil {
				row.RSSKB = rss
			}
			rows = append(rows, row)
		}
		return statusMsg{rows: rows, at: time.Now()}
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mn := d / time.Minute
	d -= mn * time.Minute
	sec := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, mn, sec)
	}
	if mn > 0 {
		return fmt.Sprintf("%dm%02ds", mn, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
