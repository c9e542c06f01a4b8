package tui

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/knz/catwalk"

	"github.com/usrsvc-go/usrsvc/internal/config"
)

// staticWatch pins the dashboard's Init for golden runs: the real
// Init schedules the spinner animation and the once-a-second poll of
// /proc, neither of which renders deterministically. State changes
// are driven by the scripted key input in the test file instead.
type staticWatch struct {
	Model
}

func (s staticWatch) Init() tea.Cmd { return nil }

func (s staticWatch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := s.Model.Update(msg)
	if inner, ok := m.(Model); ok {
		s.Model = inner
	}
	return s, cmd
}

// createTestWatchModel builds a watch Model with a fixed-frame
// spinner, a pinned window size, and a poll result already in place,
// covering the running, stopped, and disabled row shapes.
func createTestWatchModel(t *testing.T) staticWatch {
	t.Helper()

	cfg := &config.Config{
		Main:     &config.MainConfig{},
		Programs: map[string]*config.ProgramConfig{},
	}

	m := New(cfg)
	m.spinner.Spinner = spinner.Spinner{Frames: []string{"*"}, FPS: time.Second}
	m.width = 80
	m.height = 24
	m.rows = []Row{
		{Name: "web", Enabled: true, Running: true, Pid: 4242, RSSKB: 5120, Detail: "running"},
		{Name: "worker", Enabled: true, Detail: "not running"},
		{Name: "legacy", Detail: "disabled"},
	}

	return staticWatch{Model: m}
}

// TestWatchDashboardStates golden-tests the dashboard view across the
// running/stopped/disabled rows and the paused/resumed title states.
// Run with -rewrite to update the golden file.
func TestWatchDashboardStates(t *testing.T) {
	catwalk.RunModel(t, "testdata/watch_dashboard", createTestWatchModel(t))
}

// TestWatchDashboardLoading golden-tests the undersized-terminal
// guard: before a usable WindowSizeMsg arrives the view is just the
// loading placeholder.
func TestWatchDashboardLoading(t *testing.T) {
	m := createTestWatchModel(t)
	m.width = 0
	m.height = 0
	catwalk.RunModel(t, "testdata/watch_dashboard_loading", m)
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{3 * time.Second, "3s"},
		{75 * time.Second, "1m15s"},
		{2*time.Hour + 4*time.Minute + 5*time.Second, "2h04m05s"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%s) = %q, want %q", c.d, got, c.want)
		}
	}
}
