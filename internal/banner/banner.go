package banner

import (
	"miload/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
           _ __                __
   ____ _ (_) /___  ____ _____/ /
  / __ '__ \/ / / __ \/ __ '/ __  /
 / / / / / / / / /_/ / /_/ / /_/ /
/_/ /_/ /_/_/_/\____/\__,_/\__,_/ `

	return "\n" + style.Render(ascii) + "\n"
}
