package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/hexarena/internal/client"
	"github.com/vovakirdan/hexarena/internal/core"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
	"github.com/vovakirdan/hexarena/internal/storage"
)

// ErrDisconnected is reported when the server ends the connection.
var ErrDisconnected = errors.New("tui: disconnected from server")

// Link is the model's connection to the arena. *client.Conn implements it
// for network play, LoopLink for in-process spectators.
type Link interface {
	Messages() <-chan protocol.Message
	Send(m protocol.Message) error
	Done() <-chan struct{}
}

// Options configures a Model.
type Options struct {
	Name       string // empty watches instead of playing
	Reconciler client.Config
	InputEvery int
	FrameRate  int
	Store      *storage.Store      // optional, backs the score overlay
	Renderer   *lipgloss.Renderer // nil uses the default output
}

// messageMsg carries one server message into Update.
type messageMsg struct{ m protocol.Message }

// closedMsg reports the end of the connection.
type closedMsg struct{}

// Model is the Bubble Tea model for playing or watching the arena.
type Model struct {
	link   Link
	game   *client.Game
	opts   Options
	screen *core.Screen
	keys   KeyMap
	help   help.Model
	last   time.Time

	width, height int
	showScores    bool
	scores        []storage.Survivor
	best          float64        // own record in seconds, from Store
	bestFor       *protocol.Died // death best was loaded for
	err           error
	quitting      bool
}

// NewModel creates a model talking to the arena through link.
func NewModel(link Link, opts Options) Model {
	return Model{
		link:   link,
		game:   client.NewGame(link, opts.Reconciler, opts.InputEvery),
		opts:   opts,
		screen: core.NewScreen(80, 24),
		keys:   DefaultKeyMap(),
		help:   help.New(),
		width:  80,
		height: 24,
	}
}

// Watching reports whether the model is a spectator.
func (m Model) Watching() bool {
	return m.opts.Name == ""
}

// Game exposes the client session.
func (m Model) Game() *client.Game {
	return m.game
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

// Init subscribes to the arena and starts the frame loop.
func (m Model) Init() tea.Cmd {
	var err error
	if m.Watching() {
		err = m.game.Watch()
	} else {
		err = m.game.Join(m.opts.Name)
	}
	if err != nil {
		return func() tea.Msg { return closedMsg{} }
	}
	return tea.Batch(m.waitForMessage(), tickCmd(m.opts.FrameRate))
}

// waitForMessage returns a command that waits for the next server message.
func (m Model) waitForMessage() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg, ok := <-m.link.Messages():
			if !ok {
				return closedMsg{}
			}
			return messageMsg{msg}
		case <-m.link.Done():
			return closedMsg{}
		}
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case messageMsg:
		if err := m.game.Handle(msg.m); err != nil {
			m.err = err
		}
		m.loadBest()
		return m, m.waitForMessage()

	case closedMsg:
		if m.err == nil {
			m.err = ErrDisconnected
		}
		m.quitting = true
		return m, tea.Quit

	case TickMsg:
		return m.handleTick(time.Time(msg))
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.keys.MapKey(msg)
	if dir, ok := action.Spin(); ok {
		m.game.Turn(float64(dir))
		return m, nil
	}

	switch action {
	case core.ActionQuit:
		m.quitting = true
		return m, tea.Quit
	case core.ActionScores:
		m.showScores = !m.showScores
		if m.showScores {
			m.loadScores()
		}
	case core.ActionRejoin:
		if !m.Watching() && !m.game.Playing() {
			if err := m.game.Join(m.opts.Name); err != nil {
				m.err = err
			}
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.game.Playing() || msg.Action == tea.MouseActionRelease {
		return m, nil
	}
	own := m.game.Reconciler().Own()
	if own == nil {
		return m, nil
	}
	v := m.viewport()
	m.game.Aim(ScreenToAngle(v, own.Position, msg.X, msg.Y))
	return m, nil
}

func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	var elapsed time.Duration
	if !m.last.IsZero() {
		elapsed = now.Sub(m.last)
	}
	m.last = now
	if err := m.game.Step(elapsed); err != nil {
		m.err = err
		m.quitting = true
		return m, tea.Quit
	}
	return m, tickCmd(m.opts.FrameRate)
}

func (m *Model) loadScores() {
	if m.opts.Store == nil {
		m.scores = nil
		return
	}
	scores, err := m.opts.Store.TopSurvivors(storage.DefaultLimit)
	if err != nil {
		m.scores = nil
		return
	}
	m.scores = scores
}

// loadBest reads the player's record once per death.
func (m *Model) loadBest() {
	d := m.game.Died()
	if d == nil || d == m.bestFor || m.opts.Store == nil {
		return
	}
	m.bestFor = d
	best, err := m.opts.Store.Best(sim.SanitizeName(m.opts.Name))
	if err != nil {
		best = 0
	}
	m.best = best
}

// arenaFrame is the bordered box below the status line of a screen.
func arenaFrame(screen core.Rect) core.Rect {
	return core.NewRect(screen.X, screen.Y+1, screen.W, max(screen.H-1, 0))
}

// arenaArea is the inside of the arena frame. The help line takes the
// last terminal row.
func (m Model) arenaArea() core.Rect {
	f := arenaFrame(core.NewRect(0, 0, m.width, max(m.height-1, 0)))
	return core.NewRect(f.X+1, f.Y+1, max(f.W-2, 0), max(f.H-2, 0))
}

func (m Model) ownCell() *hex.Cell {
	if !m.game.Playing() {
		return nil
	}
	c := m.game.Cell()
	return &c
}

func (m Model) viewport() core.Viewport {
	return Camera(m.arenaArea(), m.game.Reconciler().View(), m.ownCell())
}

// View renders the current state to a string for display.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	m.screen.Resize(m.width, max(m.height-1, 0))
	rec := m.game.Reconciler()
	frame := arenaFrame(m.screen.Bounds())

	if rec.Ready() {
		DrawArena(m.screen, m.viewport(), rec.View(), m.ownCell())
	}
	m.screen.DrawBox(frame, core.ColorGray)
	m.screen.DrawText(frame.X+2, frame.Bottom()-1, " "+m.role()+" ", core.ColorGray)
	m.screen.DrawText(0, 0, m.status(), core.ColorBrightWhite)

	switch {
	case !rec.Ready():
		m.drawBanner("connecting...")
	case m.game.Died() != nil:
		m.drawBanner(m.deathText(m.game.Died()))
	case m.game.LastError() != nil && !m.game.Playing() && !m.Watching():
		m.drawBanner(m.game.LastError().Message)
	}

	out := RenderScreen(m.opts.Renderer, m.screen)
	if m.showScores {
		out = m.overlayScores()
	}
	return out + "\n" + m.help.View(m.keys)
}

func (m Model) drawBanner(text string) {
	_, y := m.screen.Bounds().Center()
	m.screen.DrawTextCentered(y, " "+text+" ", core.ColorBrightYellow)
}

func (m Model) deathText(d *protocol.Died) string {
	text := fmt.Sprintf("You survived %s.", m.survived(d.SurvivalTicks))
	if m.best > 0 {
		run := float64(d.SurvivalTicks) * m.opts.Reconciler.TickTime.Seconds()
		text += fmt.Sprintf(" Best %.1fs.", max(m.best, run))
	}
	return text + " Press r to rejoin."
}

// role labels the bottom edge of the frame.
func (m Model) role() string {
	if m.Watching() {
		return "spectator"
	}
	return sim.SanitizeName(m.opts.Name)
}

func (m Model) status() string {
	rec := m.game.Reconciler()
	parts := []string{"hexarena", fmt.Sprintf("tick %d", rec.Tick())}
	if view := rec.View(); view != nil {
		parts = append(parts, fmt.Sprintf("players %d", view.PlayerCount))
	}
	switch {
	case m.Watching():
		parts = append(parts, "watching")
	case m.game.Playing():
		parts = append(parts, "alive "+m.survived(m.game.SurvivedTicks()))
		if own := rec.Own(); own != nil {
			parts = append(parts, fmt.Sprintf("health %.0f", own.Health))
		}
	}
	if n := m.game.Resyncs(); n > 0 {
		parts = append(parts, fmt.Sprintf("resyncs %d", n))
	}
	return strings.Join(parts, "  ")
}

func (m Model) survived(ticks int) string {
	secs := float64(ticks) * m.opts.Reconciler.TickTime.Seconds()
	return fmt.Sprintf("%.1fs", secs)
}

func (m Model) overlayScores() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Render(ScoresTable(m.scores))
	return lipgloss.Place(m.width, max(m.height-1, 0), lipgloss.Center, lipgloss.Center, box)
}

// Run starts a Bubble Tea program playing or watching through link.
func Run(link Link, opts Options) (Model, error) {
	model := NewModel(link, opts)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	final, err := p.Run()
	if err != nil {
		return model, err
	}
	if fm, ok := final.(Model); ok {
		return fm, nil
	}
	return model, nil
}
