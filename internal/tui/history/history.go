package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"miload/internal/storage"
	"miload/internal/tui/styles"
)

type Model struct {
	Store *storage.Store
	Table table.Model
	Items []storage.HistoryItem
	Err   error

	Width  int
	Height int
}

func NewModel(store *storage.Store) Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Mode", Width: 6},
		{Title: "Users", Width: 10},
		{Title: "Results", Width: 9},
		{Title: "Aborted", Width: 9},
		{Title: "Elapsed", Width: 10},
		{Title: "Users/min", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		Store: store,
		Table: t,
	}
	m.Refresh()
	return m
}

// Rows renders history items, newest first as the store returns them.
func Rows(items []storage.HistoryItem) []table.Row {
	rows := make([]table.Row, len(items))
	for i, item := range items {
		sum := item.Summary
		rows[i] = table.Row{
			item.Timestamp.Local().Format(time.RFC822),
			string(sum.Mode),
			fmt.Sprintf("%d x %d", sum.Processes, sum.Workers),
			fmt.Sprintf("%d", sum.TotalResults),
			fmt.Sprintf("%d", sum.TotalAborted),
			sum.Elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%.1f", sum.UserRate),
		}
	}
	return rows
}

func (m *Model) Refresh() {
	if m.Store == nil {
		return
	}
	m.Items, m.Err = m.Store.List()
	m.Table.SetRows(Rows(m.Items))
}

// Selected returns the highlighted run, if any.
func (m Model) Selected() *storage.HistoryItem {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.Items) {
		return nil
	}
	return &m.Items[i]
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Err != nil {
		return styles.Error.Render(fmt.Sprintf("Could not read history: %v", m.Err))
	}
	if len(m.Items) == 0 {
		return styles.Subtle.Render("No runs recorded yet.")
	}
	return styles.Box.Render(m.Table.View())
}
