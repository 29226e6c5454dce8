package client

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/loop"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/transport"
)

type recorder struct {
	sent []protocol.Message
}

func (r *recorder) Send(m protocol.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

func (r *recorder) take() []protocol.Message {
	out := r.sent
	r.sent = nil
	return out
}

func joinedGame(t *testing.T) (*Game, *recorder) {
	t.Helper()
	out := &recorder{}
	g := NewGame(out, testConfig(), 2)
	if err := g.Join("ada"); err != nil {
		t.Fatal(err)
	}
	_, state := newArena(t)
	g.Handle(protocol.Joined{Cell: hex.Center, JoinTick: 0})
	g.Handle(state)
	out.take()
	return g, out
}

func TestGameSendsThrottledInputs(t *testing.T) {
	g, out := joinedGame(t)
	g.Handle(protocol.Delta{Tick: 5})

	g.Aim(1.5)
	g.Step(tickTime)
	sent := out.take()
	if len(sent) != 1 {
		t.Fatalf("sent %v, expected one input", sent)
	}
	in := sent[0].(protocol.Input)
	if in.Tick != 2 || in.Angle == nil || *in.Angle != 1.5 || in.Momentum == nil || *in.Momentum != 0 {
		t.Errorf("input = tick %d angle %v momentum %v", in.Tick, in.Angle, in.Momentum)
	}

	g.Turn(-1)
	g.Step(tickTime)
	if sent := out.take(); len(sent) != 0 {
		t.Errorf("input sent one tick after the last: %v", sent)
	}
	g.Step(tickTime)
	sent = out.take()
	if len(sent) != 1 {
		t.Fatalf("sent %v, expected the held input", sent)
	}
	if in := sent[0].(protocol.Input); in.Tick != 4 || *in.Momentum != -1 {
		t.Errorf("input = %+v", in)
	}
	g.Step(2 * tickTime)
	if sent := out.take(); len(sent) != 0 {
		t.Errorf("unchanged shield resent: %v", sent)
	}
}

func TestGameRequestsResyncOnGap(t *testing.T) {
	g, out := joinedGame(t)
	g.Handle(protocol.Delta{Tick: 7})
	sent := out.take()
	if len(sent) != 1 || sent[0] != (protocol.Resync{}) {
		t.Fatalf("sent %v, expected a resync request", sent)
	}
	if g.Resyncs() != 1 || g.Reconciler().Ready() {
		t.Errorf("resyncs %d, ready %v", g.Resyncs(), g.Reconciler().Ready())
	}
}

func TestGameAnswersPing(t *testing.T) {
	g, out := joinedGame(t)
	g.Handle(protocol.Ping{Sent: 42})
	if sent := out.take(); len(sent) != 1 || sent[0] != (protocol.Pong{Sent: 42}) {
		t.Errorf("sent %v, expected pong", sent)
	}
}

func TestGameDeath(t *testing.T) {
	g, out := joinedGame(t)
	g.Handle(protocol.Died{SurvivalTicks: 250})
	if g.Playing() {
		t.Error("still playing after death")
	}
	if g.SurvivedTicks() != 250 {
		t.Errorf("SurvivedTicks() = %d", g.SurvivedTicks())
	}
	g.Aim(1)
	g.Step(10 * tickTime)
	if sent := out.take(); len(sent) != 0 {
		t.Errorf("dead player sent %v", sent)
	}
	g.Handle(protocol.Error{Code: protocol.CodeJoinRejected, Message: "full"})
	if e := g.LastError(); e == nil || e.Code != protocol.CodeJoinRejected {
		t.Errorf("LastError() = %v", e)
	}
}

type echoSink struct {
	msgs  chan protocol.Message
	conns chan loop.Conn
}

func (s echoSink) Connect(c loop.Conn)                           { s.conns <- c }
func (s echoSink) Receive(_ loop.SessionID, m protocol.Message) { s.msgs <- m }
func (s echoSink) Disconnect(loop.SessionID)                     {}

func TestDialWebSocket(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.JSON, protocol.Binary} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sink := echoSink{msgs: make(chan protocol.Message, 4), conns: make(chan loop.Conn, 1)}
			srv := transport.NewServer(sink, transport.DefaultOptions(), log.New(io.Discard))
			hs := httptest.NewServer(srv.WebSocketHandler(ctx))
			defer hs.Close()

			c, err := Dial(ctx, "ws", "ws"+strings.TrimPrefix(hs.URL, "http"), codec)
			if err != nil {
				t.Fatalf("Dial() failed: %v", err)
			}
			defer c.Close()

			if err := c.Send(protocol.Join{Name: "ada"}); err != nil {
				t.Fatal(err)
			}
			var server loop.Conn
			select {
			case server = <-sink.conns:
			case <-time.After(3 * time.Second):
				t.Fatal("no connection")
			}
			select {
			case m := <-sink.msgs:
				if m != (protocol.Join{Name: "ada"}) {
					t.Errorf("server received %#v", m)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("server received nothing")
			}

			server.Send(protocol.Died{SurvivalTicks: 3})
			select {
			case m := <-c.Messages():
				if m != (protocol.Died{SurvivalTicks: 3}) {
					t.Errorf("client received %#v", m)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("client received nothing")
			}
		})
	}
}

func TestDialUnknownNetwork(t *testing.T) {
	if _, err := Dial(context.Background(), "carrier-pigeon", "x", protocol.JSON); err == nil {
		t.Error("Dial() accepted an unknown network")
	}
}
