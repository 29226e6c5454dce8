package tui

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/hexarena/internal/client"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/loop"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
	"github.com/vovakirdan/hexarena/internal/storage"
)

type fakeLink struct {
	in   chan protocol.Message
	done chan struct{}
	sent []protocol.Message
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		in:   make(chan protocol.Message, 8),
		done: make(chan struct{}),
	}
}

func (l *fakeLink) Messages() <-chan protocol.Message { return l.in }
func (l *fakeLink) Done() <-chan struct{}             { return l.done }

func (l *fakeLink) Send(m protocol.Message) error {
	l.sent = append(l.sent, m)
	return nil
}

func testOptions(name string) Options {
	return Options{
		Name:       name,
		Reconciler: client.DefaultConfig(),
		InputEvery: 2,
		FrameRate:  30,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

// joinedModel returns a model that joined the centre cell of a one-player
// arena.
func joinedModel(t *testing.T) (Model, *fakeLink) {
	t.Helper()
	return joinedModelWith(t, testOptions("ada"))
}

func joinedModelWith(t *testing.T, opts Options) (Model, *fakeLink) {
	t.Helper()
	link := newFakeLink()
	m := NewModel(link, opts)
	m.Init()
	if len(link.sent) != 1 || link.sent[0] != (protocol.Join{Name: "ada"}) {
		t.Fatalf("Init sent %v, expected a join", link.sent)
	}

	s := sim.NewState(sim.DefaultParams())
	s.AddPlayer(hex.Center, sim.NewPlayer(sim.PlayerSpec{Name: "ada", Color: "rgb(1, 2, 3)", Cell: hex.Center}))
	m, _ = update(t, m, messageMsg{protocol.Joined{Cell: hex.Center}})
	m, _ = update(t, m, messageMsg{protocol.NewGameState(0, s)})
	link.sent = nil
	return m, link
}

func TestModelJoinsAndRenders(t *testing.T) {
	m, _ := joinedModel(t)
	if !m.game.Playing() {
		t.Fatal("expected to be playing after Joined")
	}
	out := m.View()
	for _, want := range []string{"@", "ada", "players 1", "alive", "┌", "┘"} {
		if !strings.Contains(out, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}

func TestModelWatchSendsWatch(t *testing.T) {
	link := newFakeLink()
	m := NewModel(link, testOptions(""))
	if !m.Watching() {
		t.Fatal("a model without a name should watch")
	}
	m.Init()
	if len(link.sent) != 1 || link.sent[0] != (protocol.Watch{}) {
		t.Errorf("Init sent %v, expected a watch", link.sent)
	}
	out := m.View()
	if !strings.Contains(out, "connecting") {
		t.Errorf("view before the first state should say connecting:\n%s", out)
	}
	if !strings.Contains(out, "spectator") {
		t.Errorf("frame is missing the spectator label:\n%s", out)
	}
}

func lastInput(t *testing.T, link *fakeLink) protocol.Input {
	t.Helper()
	for i := len(link.sent) - 1; i >= 0; i-- {
		if in, ok := link.sent[i].(protocol.Input); ok {
			return in
		}
	}
	t.Fatalf("no input sent: %v", link.sent)
	return protocol.Input{}
}

func TestModelKeySendsMomentum(t *testing.T) {
	m, link := joinedModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m, _ = update(t, m, TickMsg(time.Now()))

	in := lastInput(t, link)
	if in.Momentum == nil || *in.Momentum != 1 {
		t.Errorf("momentum = %v, expected 1", in.Momentum)
	}
}

func TestModelMouseAims(t *testing.T) {
	m, link := joinedModel(t)
	v := m.viewport()
	pos := hex.CellToPosition(hex.Center)
	cx, cy := v.Project(pos.X, pos.Y)

	m, _ = update(t, m, tea.MouseMsg{X: cx, Y: cy + 6, Action: tea.MouseActionMotion})
	m, _ = update(t, m, TickMsg(time.Now()))

	in := lastInput(t, link)
	if in.Angle == nil || math.Abs(*in.Angle-math.Pi/2) > 1e-9 {
		t.Errorf("angle = %v, expected pi/2", in.Angle)
	}
}

func TestModelDeathAndRejoin(t *testing.T) {
	m, link := joinedModel(t)
	m, _ = update(t, m, messageMsg{protocol.Died{SurvivalTicks: 150}})
	if m.game.Playing() {
		t.Fatal("still playing after Died")
	}
	if out := m.View(); !strings.Contains(out, "You survived 3.0s") {
		t.Errorf("view is missing the death banner:\n%s", out)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if len(link.sent) != 1 || link.sent[0] != (protocol.Join{Name: "ada"}) {
		t.Errorf("rejoin sent %v", link.sent)
	}
}

func TestModelDeathShowsBest(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "scores.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()
	if err := store.RecordSurvival("ada", 500); err != nil {
		t.Fatalf("RecordSurvival() failed: %v", err)
	}

	opts := testOptions("ada")
	opts.Store = store
	m, _ := joinedModelWith(t, opts)
	m, _ = update(t, m, messageMsg{protocol.Died{SurvivalTicks: 150}})
	if out := m.View(); !strings.Contains(out, "You survived 3.0s. Best 10.0s.") {
		t.Errorf("death banner is missing the record:\n%s", out)
	}

	// A run beating the stored record is its own best.
	m, _ = update(t, m, messageMsg{protocol.Joined{Cell: hex.Center}})
	m, _ = update(t, m, messageMsg{protocol.Died{SurvivalTicks: 1000}})
	if out := m.View(); !strings.Contains(out, "You survived 20.0s. Best 20.0s.") {
		t.Errorf("death banner should count the current run:\n%s", out)
	}
}

func TestModelAnswersPing(t *testing.T) {
	m, link := joinedModel(t)
	sent := time.Now().UnixNano()
	_, cmd := update(t, m, messageMsg{protocol.Ping{Sent: sent}})
	if cmd == nil {
		t.Error("expected the model to keep waiting for messages")
	}
	if len(link.sent) != 1 || link.sent[0] != (protocol.Pong{Sent: sent}) {
		t.Errorf("sent %v, expected a pong", link.sent)
	}
}

func TestModelWaitForMessage(t *testing.T) {
	link := newFakeLink()
	m := NewModel(link, testOptions("ada"))

	link.in <- protocol.Resync{}
	if got := m.waitForMessage()(); got != (messageMsg{protocol.Resync{}}) {
		t.Errorf("waitForMessage() = %v", got)
	}

	close(link.done)
	msg := m.waitForMessage()()
	if _, ok := msg.(closedMsg); !ok {
		t.Fatalf("waitForMessage() after close = %T", msg)
	}
	m, cmd := update(t, m, msg)
	if !errors.Is(m.Err(), ErrDisconnected) {
		t.Errorf("Err() = %v", m.Err())
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected the program to quit")
	}
}

func TestModelScoresOverlay(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "scores.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()
	if err := store.RecordSurvival("grace", 500); err != nil {
		t.Fatalf("RecordSurvival() failed: %v", err)
	}

	opts := testOptions("")
	opts.Store = store
	m := NewModel(newFakeLink(), opts)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	out := m.View()
	if !strings.Contains(out, "grace") || !strings.Contains(out, "10.00s") {
		t.Errorf("overlay is missing the score:\n%s", out)
	}
}

type recordingSink struct {
	connected    []loop.Conn
	received     []protocol.Message
	disconnected []loop.SessionID
}

func (s *recordingSink) Connect(c loop.Conn) { s.connected = append(s.connected, c) }
func (s *recordingSink) Receive(_ loop.SessionID, m protocol.Message) {
	s.received = append(s.received, m)
}
func (s *recordingSink) Disconnect(id loop.SessionID) { s.disconnected = append(s.disconnected, id) }

func TestLoopLink(t *testing.T) {
	sink := &recordingSink{}
	link := NewLoopLink(sink, 4)
	if len(sink.connected) != 1 || sink.connected[0].ID() != link.ID() {
		t.Fatalf("connected %v", sink.connected)
	}

	if err := link.Send(protocol.Watch{}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if len(sink.received) != 1 || sink.received[0] != (protocol.Watch{}) {
		t.Errorf("received %v", sink.received)
	}

	link.Close()
	if len(sink.disconnected) != 1 || sink.disconnected[0] != link.ID() {
		t.Errorf("disconnected %v", sink.disconnected)
	}
	if err := link.Send(protocol.Resync{}); !errors.Is(err, loop.ErrClosed) {
		t.Errorf("Send() after Close = %v, expected ErrClosed", err)
	}
}
