package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/hexarena/internal/storage"
)

// Scoreboard views.
const (
	viewTop = iota
	viewRecent
	viewCount
)

var viewTitles = [viewCount]string{"BEST SURVIVORS", "RECENT RUNS"}

// ScoreboardKeyMap defines the key bindings for the scoreboard.
type ScoreboardKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextView key.Binding
	Quit     key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k ScoreboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextView, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k ScoreboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.NextView}, {k.Quit}}
}

// DefaultScoreboardKeyMap returns default key bindings.
func DefaultScoreboardKeyMap() ScoreboardKeyMap {
	return ScoreboardKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		NextView: key.NewBinding(
			key.WithKeys("tab", "left", "right", "h", "l"),
			key.WithHelp("tab", "best/recent"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ScoreboardModel is the Bubble Tea model for the high-score screen.
type ScoreboardModel struct {
	store    *storage.Store
	view     int
	table    table.Model
	help     help.Model
	keys     ScoreboardKeyMap
	empty    bool
	err      error
	width    int
	height   int
	quitting bool
}

// NewScoreboardModel creates a new scoreboard model.
func NewScoreboardModel(store *storage.Store, width, height int) ScoreboardModel {
	m := ScoreboardModel{
		store:  store,
		keys:   DefaultScoreboardKeyMap(),
		help:   help.New(),
		width:  width,
		height: height,
	}
	m.load()
	return m
}

func survivorColumns() []table.Column {
	return []table.Column{
		{Title: "Rank", Width: 5},
		{Title: "Name", Width: 18},
		{Title: "Survived", Width: 10},
		{Title: "Runs", Width: 5},
		{Title: "Last played", Width: 14},
	}
}

func runColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 6},
		{Title: "Name", Width: 18},
		{Title: "Survived", Width: 10},
		{Title: "Date", Width: 14},
	}
}

func survivorRows(entries []storage.Survivor) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{
			fmt.Sprintf("#%d", i+1),
			e.Name,
			fmt.Sprintf("%.2fs", e.Seconds),
			fmt.Sprintf("%d", e.Runs),
			formatDate(e.CreatedAt),
		}
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 02 15:04")
}

func newTable(columns []table.Column, rows []table.Row, height int, focused bool) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(focused),
		table.WithHeight(max(height, 3)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	if focused {
		s.Selected = s.Selected.
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(false)
	} else {
		s.Selected = lipgloss.NewStyle()
	}
	t.SetStyles(s)
	return t
}

// ScoresTable renders entries as a static table for overlays.
func ScoresTable(entries []storage.Survivor) string {
	if len(entries) == 0 {
		return emptyScores()
	}
	t := newTable(survivorColumns(), survivorRows(entries), len(entries)+3, false)
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Render(viewTitles[viewTop])
	return title + "\n" + t.View()
}

func emptyScores() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true).
		Padding(1, 2).
		Render("No survivals recorded yet.\nJoin the arena to set one!")
}

// load reads the current view from the store.
func (m *ScoreboardModel) load() {
	height := m.height - 8 // Leave room for title, help, and margins
	m.err = nil
	if m.store == nil {
		m.empty = true
		m.table = newTable(survivorColumns(), nil, height, true)
		return
	}

	switch m.view {
	case viewRecent:
		runs, err := m.store.RecentRuns(storage.DefaultLimit)
		m.err = err
		rows := make([]table.Row, len(runs))
		for i, r := range runs {
			rows[i] = table.Row{
				fmt.Sprintf("%d", r.ID),
				r.Name,
				fmt.Sprintf("%.2fs", r.Seconds),
				formatDate(r.CreatedAt),
			}
		}
		m.empty = len(rows) == 0
		m.table = newTable(runColumns(), rows, height, true)
	default:
		top, err := m.store.TopSurvivors(storage.DefaultLimit)
		m.err = err
		m.empty = len(top) == 0
		m.table = newTable(survivorColumns(), survivorRows(top), height, true)
	}
}

// Init initializes the scoreboard model.
func (m ScoreboardModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the scoreboard.
func (m ScoreboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.NextView):
			m.view = (m.view + 1) % viewCount
			m.load()
			return m, nil

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.load()
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the scoreboard.
func (m ScoreboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		MarginBottom(1)
	b.WriteString(titleStyle.Render(centerText(viewTitles[m.view], m.width)))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var content string
	switch {
	case m.err != nil:
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(m.err.Error())
	case m.empty:
		content = emptyScores()
	default:
		content = m.table.View()
	}
	b.WriteString(centerText(tableStyle.Render(content), m.width))

	b.WriteString("\n")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// centerText centres every line of s in width columns.
func centerText(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}

// RunScoreboard runs the high-score screen until the user quits.
func RunScoreboard(store *storage.Store, width, height int) error {
	p := tea.NewProgram(
		NewScoreboardModel(store, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
