package result

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"miload/internal/runner"
	"miload/internal/tui/styles"
)

// Model is the card shown once a run has finished.
type Model struct {
	Summary *runner.RunSummary
	Err     error

	Width  int
	Height int
}

func NewModel(summary *runner.RunSummary, err error) Model {
	return Model{Summary: summary, Err: err}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	if m.Summary == nil {
		s.WriteString(styles.Title.Render("Run Failed"))
		s.WriteString("\n\n")
		if m.Err != nil {
			s.WriteString(styles.Error.Render(m.Err.Error()))
		}
		s.WriteString("\n\n")
		s.WriteString(styles.Subtle.Render("Press q to quit"))
		return s.String()
	}

	sum := m.Summary
	s.WriteString(styles.Title.Render("Run Complete"))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")
	overview := fmt.Sprintf(
		"Mode:               %s\nSimultaneous users: %d (%d x %d)\nResults:            %d\nAborted:            %d\nElapsed:            %s",
		sum.Mode, sum.SimultaneousUsers, sum.Processes, sum.Workers,
		sum.TotalResults, sum.TotalAborted, sum.Elapsed.Round(time.Millisecond),
	)
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	if sum.SimulateUsers {
		s.WriteString(styles.Active.Render("Users"))
		s.WriteString("\n")
		users := fmt.Sprintf("Simulated: %d\nPer minute: %.1f", sum.TotalUsers, sum.UserRate)
		s.WriteString(styles.Box.Render(users))
		s.WriteString("\n\n")
	}

	if len(sum.Missing) > 0 {
		s.WriteString(styles.Warn.Render(fmt.Sprintf("No summary from processes %v", sum.Missing)))
		s.WriteString("\n")
	}
	if m.Err != nil {
		s.WriteString(styles.Error.Render(m.Err.Error()))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("Press q to quit"))

	return s.String()
}
