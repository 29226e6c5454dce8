package loop

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
)

func newTestServer(t *testing.T) *ServerContext {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HistoryTicks = 10
	cfg.DeltaEvery = 5
	cfg.Seed = 1
	return New(cfg, log.New(io.Discard))
}

func connect(s *ServerContext, id SessionID, size int) *ChannelConn {
	c := NewChannelConn(id, size)
	s.handle(connectedEvent{Conn: c})
	return c
}

func deliver(s *ServerContext, id SessionID, m protocol.Message) {
	s.handle(messageEvent{Session: id, Msg: m, At: time.Now()})
}

func received(c *ChannelConn) []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case m := <-c.Messages():
			out = append(out, m)
		default:
			return out
		}
	}
}

func join(t *testing.T, s *ServerContext, id SessionID) *ChannelConn {
	t.Helper()
	c := connect(s, id, 256)
	deliver(s, id, protocol.Join{Name: string(id)})
	s.Step()
	msgs := received(c)
	if len(msgs) < 2 {
		t.Fatalf("%s: got %d messages after joining, expected Joined and GameState", id, len(msgs))
	}
	if _, ok := msgs[0].(protocol.Joined); !ok {
		t.Fatalf("%s: first message %T, expected Joined", id, msgs[0])
	}
	return c
}

// mirror replays what a client sees: the full state, then every delta
// applied at its tick before ticking.
type mirror struct {
	state *sim.State
	tick  int
}

func (m *mirror) consume(t *testing.T, msgs []protocol.Message) {
	t.Helper()
	for _, msg := range msgs {
		switch v := msg.(type) {
		case protocol.GameState:
			m.state, m.tick = v.State(), v.Tick
			m.state.Tick()
			m.tick++
		case protocol.Delta:
			if m.state == nil {
				t.Fatal("delta before full state")
			}
			for m.tick < v.Tick {
				m.state.Tick()
				m.tick++
			}
			if v.Tick != m.tick {
				t.Fatalf("delta for tick %d arrived at tick %d", v.Tick, m.tick)
			}
			delta.Apply(m.state, v.Changes)
			m.state.Tick()
			m.tick++
		}
	}
}

func (m *mirror) catchUp(tick int) {
	for m.tick < tick {
		m.state.Tick()
		m.tick++
	}
}

func TestJoinSendsCellAndState(t *testing.T) {
	s := newTestServer(t)
	c := connect(s, "a", 16)
	deliver(s, "a", protocol.Join{Name: "<alice>"})
	s.Step()

	msgs := received(c)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, expected 2: %v", len(msgs), msgs)
	}
	joined := msgs[0].(protocol.Joined)
	if joined.Cell != hex.Center || joined.JoinTick != 0 {
		t.Errorf("Joined = %+v", joined)
	}
	g := msgs[1].(protocol.GameState)
	if g.Tick != 0 || len(g.Players) != 1 || len(g.Balls) != 1 {
		t.Fatalf("GameState tick %d, %d players, %d balls", g.Tick, len(g.Players), len(g.Balls))
	}
	if name := g.Players[0].Player.Name; name != "&lt;alice&gt;" {
		t.Errorf("name = %q, expected escaped", name)
	}
	if snap, ok := s.history.Newest(); !ok || snap.Tick != 0 || len(snap.Changes) != 2 {
		t.Errorf("snapshot of tick 0 = %+v", snap)
	}
}

func TestDeltaCadence(t *testing.T) {
	s := newTestServer(t)
	c := join(t, s, "a")
	var ticks, prevs []int
	for range 11 {
		s.Step()
	}
	for _, m := range received(c) {
		if d, ok := m.(protocol.Delta); ok {
			if len(d.Changes) != 0 {
				t.Errorf("tick %d: unexpected records %v", d.Tick, d.Changes)
			}
			ticks = append(ticks, d.Tick)
			prevs = append(prevs, d.Prev)
		}
	}
	if len(ticks) != 2 || ticks[0] != 5 || ticks[1] != 10 {
		t.Errorf("deltas at ticks %v, expected [5 10]", ticks)
	}
	// The join record went out at tick 0 to everyone but the joiner.
	if len(prevs) != 2 || prevs[0] != 0 || prevs[1] != 5 {
		t.Errorf("previous ticks %v, expected [0 5]", prevs)
	}
}

func TestSecondJoinIsBroadcast(t *testing.T) {
	s := newTestServer(t)
	a := join(t, s, "a")
	s.Step()
	s.Step()
	b := join(t, s, "b")

	var found bool
	for _, m := range received(a) {
		d, ok := m.(protocol.Delta)
		if !ok || d.Tick != 3 {
			continue
		}
		for _, ch := range d.Changes {
			if ch.Kind == delta.PlayerAdded && ch.Player.Name == "b" {
				found = true
			}
		}
	}
	if !found {
		t.Error("first player never saw the second join")
	}
	for _, m := range received(b) {
		if _, ok := m.(protocol.Delta); ok {
			t.Error("joiner received a delta for its join tick")
		}
	}
}

func TestClientMirrorsServer(t *testing.T) {
	s := newTestServer(t)
	a := join(t, s, "a")
	b := join(t, s, "b")

	var view mirror
	view.consume(t, received(b))
	for i := range 30 {
		switch i {
		case 4:
			angle := 1.0
			deliver(s, "a", protocol.Input{Tick: s.tick - 3, Angle: &angle})
		case 9:
			momentum := -1.0
			deliver(s, "b", protocol.Input{Tick: s.tick, Momentum: &momentum})
		case 15:
			connect(s, "c", 64)
			deliver(s, "c", protocol.Join{Name: "c"})
		case 20:
			s.handle(disconnectedEvent{Session: "a"})
		}
		s.Step()
		view.consume(t, received(b))
	}
	received(a)

	view.catchUp(s.tick)
	if !sim.Equal(view.state, s.state) {
		t.Fatal("client replica diverged from the server")
	}
}

func TestDisconnectKillsPlayerAndRecordsScore(t *testing.T) {
	s := newTestServer(t)
	scores := make(chan string, 4)
	s.SetScoreSink(ScoreFunc(func(name string, ticks int) error {
		scores <- name
		return nil
	}))
	a := join(t, s, "a")
	join(t, s, "b")
	for range 5 {
		s.Step()
	}
	cell := s.sessions["b"].cell
	if p := s.state.PlayerAt(cell); p == nil || !p.Alive() {
		t.Fatalf("second player missing at %v", cell)
	}
	received(a)

	s.handle(disconnectedEvent{Session: "b"})
	s.Step()

	var killed bool
	for _, m := range received(a) {
		if d, ok := m.(protocol.Delta); ok {
			for _, ch := range d.Changes {
				if ch.Kind == delta.HealthChanged && ch.Cell == cell && ch.Value == 0 {
					killed = true
				}
			}
		}
	}
	if !killed {
		t.Error("no HealthChanged(0) broadcast for the departed player")
	}
	select {
	case name := <-scores:
		if name != "b" {
			t.Errorf("score recorded for %q", name)
		}
	case <-time.After(time.Second):
		t.Error("no score recorded")
	}
}

func TestJoinRejectedWhenFull(t *testing.T) {
	s := newTestServer(t)
	for s.state.PlayerCount < hex.MaxPlayers {
		c, err := s.state.FindJoinCell()
		if err != nil {
			t.Fatalf("FindJoinCell() failed at %d players: %v", s.state.PlayerCount, err)
		}
		s.state.AddPlayer(c, sim.NewPlayer(sim.PlayerSpec{Name: "x", Cell: c}))
	}
	c := connect(s, "late", 8)
	deliver(s, "late", protocol.Join{Name: "late"})
	s.Step()

	msgs := received(c)
	if len(msgs) != 1 {
		t.Fatalf("got %v, expected a single error", msgs)
	}
	e, ok := msgs[0].(protocol.Error)
	if !ok || e.Code != protocol.CodeJoinRejected {
		t.Errorf("got %#v, expected join_rejected", msgs[0])
	}
}

func TestResyncSendsFullStateInsteadOfDelta(t *testing.T) {
	s := newTestServer(t)
	a := join(t, s, "a")
	for range 4 {
		s.Step()
	}
	received(a)
	deliver(s, "a", protocol.Resync{})
	s.Step()

	msgs := received(a)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, expected only the full state", len(msgs))
	}
	if g, ok := msgs[0].(protocol.GameState); !ok || g.Tick != 5 {
		t.Errorf("got %#v, expected GameState for tick 5", msgs[0])
	}
}

func TestWatcherReceivesStateThenDeltas(t *testing.T) {
	s := newTestServer(t)
	join(t, s, "a")
	w := connect(s, "w", 64)
	deliver(s, "w", protocol.Watch{})
	for range 6 {
		s.Step()
	}
	msgs := received(w)
	if len(msgs) != 2 {
		t.Fatalf("watcher got %d messages, expected state and one delta", len(msgs))
	}
	if _, ok := msgs[0].(protocol.GameState); !ok {
		t.Errorf("first message %T, expected GameState", msgs[0])
	}
	if d, ok := msgs[1].(protocol.Delta); !ok || d.Tick != 5 {
		t.Errorf("second message %#v, expected delta for tick 5", msgs[1])
	}
}

func TestFullQueueTriggersResync(t *testing.T) {
	s := newTestServer(t)
	a := join(t, s, "a")
	small := connect(s, "w", 1)
	deliver(s, "w", protocol.Watch{})
	s.Step()
	received(a)

	// The watcher has not read its state; the next delta cannot be queued.
	for range 4 {
		s.Step()
	}
	if !s.sessions["w"].stale {
		t.Fatal("session not marked stale after a failed send")
	}
	received(small)
	s.Step()
	msgs := received(small)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, expected one full state", len(msgs))
	}
	if _, ok := msgs[0].(protocol.GameState); !ok {
		t.Errorf("got %T, expected GameState", msgs[0])
	}
	if s.sessions["w"].stale {
		t.Error("session still stale after a successful resync")
	}
}

func TestPongSetsInputWindow(t *testing.T) {
	s := newTestServer(t)
	c := connect(s, "a", 8)
	sess := s.sessions["a"]
	if got := s.maxAge(sess); got != 10 {
		t.Errorf("maxAge without samples = %d, expected the history size", got)
	}

	now := time.Now()
	s.handleMessage("a", sess, protocol.Pong{Sent: now.Add(-100 * time.Millisecond).UnixNano()}, now)
	if sess.rtt != 100*time.Millisecond {
		t.Errorf("rtt = %v, expected 100ms", sess.rtt)
	}
	// ceil(50ms / 20ms) + 5 + 1
	if got := s.maxAge(sess); got != 9 {
		t.Errorf("maxAge = %d, expected 9", got)
	}

	deliver(s, "a", protocol.Ping{Sent: 77})
	msgs := received(c)
	if len(msgs) != 1 || msgs[0] != (protocol.Pong{Sent: 77}) {
		t.Errorf("ping answered with %v", msgs)
	}
}

func TestExcessLatencyKicks(t *testing.T) {
	s := newTestServer(t)
	s.cfg.KickOnExcessLatency = true
	c := join(t, s, "a")
	now := time.Now()
	deliver(s, "a", protocol.Pong{Sent: now.Add(-2 * time.Second).UnixNano()})

	select {
	case <-c.Done():
	default:
		t.Fatal("connection not closed")
	}
	if _, ok := s.sessions["a"]; ok {
		t.Error("session still registered")
	}
	s.Step()
	if p := s.state.PlayerAt(hex.Center); p != nil && p.Alive() {
		t.Error("kicked player still alive")
	}
}

func TestAdvance(t *testing.T) {
	s := newTestServer(t)
	tick := s.cfg.TickTime
	if rest := s.advance(3 * tick); rest != 0 || s.tick != 0 {
		t.Errorf("empty arena advanced to tick %d", s.tick)
	}

	join(t, s, "a")
	if rest := s.advance(3*tick + tick/2); rest != tick/2 || s.tick != 4 {
		t.Errorf("advance = %v, tick %d; expected remainder %v at tick 4", rest, s.tick, tick/2)
	}
	if rest := s.advance(100 * tick); rest != 0 || s.tick != 14 {
		t.Errorf("catch-up not capped: tick %d, remainder %v", s.tick, rest)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	c := NewChannelConn("a", 8)
	s.Connect(c)
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, expected context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
	// The loop is gone; enqueueing must not block.
	s.Disconnect("a")
}

func TestChannelConn(t *testing.T) {
	c := NewChannelConn("x", 1)
	if err := c.Send(protocol.Resync{}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if err := c.Send(protocol.Resync{}); !errors.Is(err, ErrSendQueueFull) {
		t.Errorf("Send() on a full queue = %v", err)
	}
	c.Close()
	c.Close()
	if err := c.Send(protocol.Resync{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close = %v", err)
	}

	r := NewRegistry()
	r.Register(c)
	if got, ok := r.Get("x"); !ok || got != Conn(c) || r.Count() != 1 {
		t.Error("registry lookup failed")
	}
	r.Unregister("x")
	if r.Count() != 0 {
		t.Error("Unregister() left the connection")
	}
}
