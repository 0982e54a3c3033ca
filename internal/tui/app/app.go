package app

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"miload/internal/runner"
	"miload/internal/storage"
	"miload/internal/tui/history"
	"miload/internal/tui/live"
	"miload/internal/tui/result"
	"miload/internal/tui/styles"
)

type ViewID int

const (
	ViewDashboard ViewID = iota
	ViewHistory
)

type StatsMsg runner.StatsSnapshot

// DoneMsg carries the outcome of the run.
type DoneMsg struct {
	Summary *runner.RunSummary
	Err     error
}

type Model struct {
	Updates runner.StatsUpdateChan
	Cancel  context.CancelFunc

	RunActive bool
	Stopping  bool

	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	Live    live.Model
	Result  result.Model
	History history.Model

	StatusMsg string
}

func NewModel(cfg runner.Config, updates runner.StatsUpdateChan, cancel context.CancelFunc, store *storage.Store) Model {
	return Model{
		Updates:     updates,
		Cancel:      cancel,
		RunActive:   true,
		CurrentView: ViewDashboard,
		MenuItems:   []string{"Dashboard", "History"},
		Live:        live.NewModel(cfg),
		History:     history.NewModel(store),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return StatsMsg(<-sub)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.RunActive || m.Stopping {
				return m, tea.Quit
			}
			// Workers stop at their next iteration boundary.
			m.Stopping = true
			m.StatusMsg = "Stopping at the next iteration, press q again to close"
			if m.Cancel != nil {
				m.Cancel()
			}
			return m, nil

		case "tab", "ctrl+h":
			if m.CurrentView == ViewDashboard {
				m.History.Refresh()
				m.CurrentView = ViewHistory
			} else {
				m.CurrentView = ViewDashboard
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width - 8, Height: msg.Height - 6}
		m.Live, _ = m.Live.Update(inner)
		m.Result, _ = m.Result.Update(inner)
		m.History, _ = m.History.Update(inner)
		return m, nil

	case StatsMsg:
		var c tea.Cmd
		m.Live, c = m.Live.Update(runner.StatsSnapshot(msg))
		return m, tea.Batch(c, waitForUpdate(m.Updates))

	case DoneMsg:
		m.RunActive = false
		m.Stopping = false
		m.StatusMsg = ""
		m.Result = result.NewModel(msg.Summary, msg.Err)
		m.Result.Width, m.Result.Height = m.Live.Width, m.Live.Height
		m.History.Refresh()
		return m, nil
	}

	var c tea.Cmd
	switch m.CurrentView {
	case ViewDashboard:
		m.Live, c = m.Live.Update(msg)
	case ViewHistory:
		m.History, c = m.History.Update(msg)
	}
	cmds = append(cmds, c)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	var contentStr string
	switch {
	case m.CurrentView == ViewHistory:
		contentStr = m.History.View()
	case m.RunActive:
		contentStr = m.Live.View()
	default:
		contentStr = m.Result.View()
	}
	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	keys := []string{
		styles.RenderKey("Tab", "View"),
		styles.RenderKey("q", "Stop/Quit"),
	}
	footer := styles.FooterBase.Width(m.Width).Render(strings.Join(keys, "   "))

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}

// Run executes run in the background under the dashboard and returns its
// outcome. The context passed to run is cancelled when the operator stops
// the run.
func Run(ctx context.Context, cfg runner.Config, updates runner.StatsUpdateChan, store *storage.Store,
	run func(ctx context.Context) (*runner.RunSummary, error)) (*runner.RunSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(cfg, updates, cancel, store), tea.WithAltScreen())

	var (
		summary  *runner.RunSummary
		runErr   error
		finished = make(chan struct{})
	)
	go func() {
		defer close(finished)
		summary, runErr = run(ctx)
		p.Send(DoneMsg{Summary: summary, Err: runErr})
	}()

	_, err := p.Run()
	cancel()
	<-finished
	if err != nil {
		return summary, errors.Wrap(err, "running dashboard")
	}
	return summary, runErr
}

// ShowHistory opens the history table on its own.
func ShowHistory(store *storage.Store) error {
	m := historyOnly{History: history.NewModel(store)}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return errors.Wrap(err, "running history view")
}

type historyOnly struct {
	History history.Model
}

func (m historyOnly) Init() tea.Cmd {
	return nil
}

func (m historyOnly) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.History, cmd = m.History.Update(msg)
	return m, cmd
}

func (m historyOnly) View() string {
	return styles.Title.Render("Run History") + "\n\n" + m.History.View() + "\n" +
		styles.RenderKey("q", "Quit")
}
