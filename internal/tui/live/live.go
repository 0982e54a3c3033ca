package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"miload/internal/runner"
	"miload/internal/tui/components"
	"miload/internal/tui/styles"
)

// Model shows the totals of every process while a run is in progress.
type Model struct {
	Cfg       runner.Config
	Snapshots runner.SnapshotSet
	Total     runner.StatsSnapshot
	Progress  progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime  time.Time
	LastUpdate time.Time
	LastReqs   uint64

	Width  int
	Height int
}

func NewModel(cfg runner.Config) Model {
	return Model{
		Cfg:         cfg,
		Snapshots:   runner.SnapshotSet{},
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "Requests/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Elapsed P90 (ms)", styles.Warn),
		StartTime:   time.Now(),
		LastUpdate:  time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Percent estimates run progress: soak runs by the clock, floods by
// requests against one per simulated user.
func (m Model) Percent(now time.Time) float64 {
	var pct float64
	switch m.Cfg.Mode {
	case runner.ModeSoak:
		if m.Cfg.Duration > 0 {
			pct = float64(now.Sub(m.StartTime)) / float64(m.Cfg.Duration)
		}
	default:
		if n := m.Cfg.Processes * m.Cfg.Workers; n > 0 {
			pct = float64(m.Total.Requests) / float64(n)
		}
	}
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		m.Snapshots.Add(msg)
		total := m.Snapshots.Total()

		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}
		if total.Requests >= m.LastReqs {
			m.RpsLine.Add(uint64(float64(total.Requests-m.LastReqs) / dt))
		}
		m.LatencyLine.Add(uint64(total.P90ElapsedMs))

		m.Total = total
		m.LastReqs = total.Requests
		m.LastUpdate = now
		return m, m.Progress.SetPercent(m.Percent(now))

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 8
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	t := m.Total
	abortPct := t.AbortRate()

	col1 := fmt.Sprintf("REQ: %d\nINF: %d", t.Requests, t.Inflight)
	col2 := fmt.Sprintf("ABORT: %.2f%%\nCOUNT: %d", abortPct, t.Aborted)
	col3 := fmt.Sprintf("USERS: %d\nPROCS: %d/%d", t.Users, len(m.Snapshots), m.Cfg.Processes)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.AbortStyle(abortPct).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %d ms",
		t.P50ElapsedMs, t.P90ElapsedMs, t.P99ElapsedMs, t.MaxElapsedMs,
	)
	width := m.Width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(styles.Box.Width(width).Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())

	return s.String()
}
