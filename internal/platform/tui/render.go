package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/hexarena/internal/core"
)

// RenderScreen converts a Screen buffer to a styled string for display.
// Adjacent cells with the same colour share one style to keep the ANSI
// output short. A nil renderer uses lipgloss' default output.
func RenderScreen(r *lipgloss.Renderer, s *core.Screen) string {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	styles := map[core.Color]lipgloss.Style{}

	var sb strings.Builder
	// Pre-allocate with extra space for ANSI codes
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}
		for _, run := range s.Runs(y) {
			if run.Color == core.ColorDefault {
				sb.WriteString(run.Text)
				continue
			}
			style, ok := styles[run.Color]
			if !ok {
				style = r.NewStyle().Foreground(lipgloss.Color(run.Color))
				styles[run.Color] = style
			}
			sb.WriteString(style.Render(run.Text))
		}
	}
	return sb.String()
}
