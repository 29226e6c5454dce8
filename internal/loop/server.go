// Package loop runs the authoritative arena: a fixed-step simulation fed
// by an inbound queue, with lag-compensated inputs and delta broadcasts.
package loop

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/history"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// ScoreSink receives the survival time of every player that dies or
// leaves. Calls happen off the loop goroutine.
type ScoreSink interface {
	RecordSurvival(name string, survivalTicks int) error
}

// ScoreFunc adapts a function to ScoreSink.
type ScoreFunc func(name string, survivalTicks int) error

// RecordSurvival calls f.
func (f ScoreFunc) RecordSurvival(name string, survivalTicks int) error {
	return f(name, survivalTicks)
}

// session is the loop's view of one connection.
type session struct {
	conn     Conn
	name     string
	playing  bool
	watching bool
	cell     hex.Cell
	joinTick int

	rtt      time.Duration
	rttKnown bool

	// stale is set when a send failed; the session gets a full state
	// instead of deltas until one goes through.
	stale bool
}

type queuedInput struct {
	session SessionID
	msg     protocol.Input
}

type departure struct {
	name     string
	cell     hex.Cell
	joinTick int
}

// ServerContext owns the arena and everything the loop goroutine
// mutates. Other goroutines reach it only through Connect, Receive and
// Disconnect.
type ServerContext struct {
	cfg    Config
	logger *log.Logger
	scores ScoreSink
	rng    *rand.Rand

	tick      int
	lastDelta int
	state     *sim.State
	history   *history.History

	sessions    map[SessionID]*session
	joins       []SessionID
	inputs      map[hex.Cell]queuedInput
	disconnects []departure
	resyncs     map[SessionID]bool
	lastPing    time.Time

	inbox    chan event
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a server loop. A zero seed picks one from the clock.
func New(cfg Config, logger *log.Logger) *ServerContext {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cfg.DeltaEvery = max(cfg.DeltaEvery, 1)
	return &ServerContext{
		cfg:      cfg,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
		state:    sim.NewState(cfg.Params),
		history:  history.New(cfg.HistoryTicks),
		sessions: make(map[SessionID]*session),
		inputs:   make(map[hex.Cell]queuedInput),
		resyncs:  make(map[SessionID]bool),
		inbox:    make(chan event, max(cfg.InboxSize, 1)),
		done:     make(chan struct{}),
	}
}

// SetScoreSink sets the optional survival score receiver.
func (s *ServerContext) SetScoreSink(sink ScoreSink) {
	s.scores = sink
}

// Connect registers a new connection.
func (s *ServerContext) Connect(c Conn) {
	s.enqueue(connectedEvent{Conn: c})
}

// Receive hands a decoded client message to the loop.
func (s *ServerContext) Receive(id SessionID, m protocol.Message) {
	s.enqueue(messageEvent{Session: id, Msg: m, At: time.Now()})
}

// Disconnect reports that a connection ended.
func (s *ServerContext) Disconnect(id SessionID) {
	s.enqueue(disconnectedEvent{Session: id})
}

func (s *ServerContext) enqueue(ev event) {
	select {
	case s.inbox <- ev:
	case <-s.done:
	}
}

// Run drives the loop until ctx is cancelled. The ticker fires at half
// the tick time; elapsed time is converted into whole ticks and the
// remainder carried over.
func (s *ServerContext) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })

	ticker := time.NewTicker(s.cfg.TickTime / 2)
	defer ticker.Stop()

	s.logger.Info("arena loop started", "tick", s.cfg.TickTime, "history", s.history.Cap(), "delta_every", s.cfg.DeltaEvery)
	last := time.Now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			for _, sess := range s.sessions {
				sess.conn.Close()
			}
			s.logger.Info("arena loop stopped", "tick", s.tick)
			return ctx.Err()

		case ev := <-s.inbox:
			s.handle(ev)

		case now := <-ticker.C:
			s.drain()
			acc = s.advance(acc + now.Sub(last))
			last = now
			if now.Sub(s.lastPing) >= s.cfg.PingInterval {
				s.ping(now)
			}
		}
	}
}

// drain handles every queued event without blocking.
func (s *ServerContext) drain() {
	for {
		select {
		case ev := <-s.inbox:
			s.handle(ev)
		default:
			return
		}
	}
}

// advance runs the whole ticks contained in acc and returns the rest.
// An empty arena does not tick. Catch-up is capped at the history size.
func (s *ServerContext) advance(acc time.Duration) time.Duration {
	if s.state.PlayerCount == 0 && len(s.joins) == 0 {
		return 0
	}
	n := int(acc / s.cfg.TickTime)
	if limit := s.history.Cap(); n > limit {
		s.logger.Warn("loop fell behind, dropping ticks", "behind", n, "kept", limit)
		n = limit
		acc = time.Duration(n) * s.cfg.TickTime
	}
	for range n {
		s.Step()
	}
	return acc - time.Duration(n)*s.cfg.TickTime
}

func (s *ServerContext) handle(ev event) {
	switch e := ev.(type) {
	case connectedEvent:
		s.sessions[e.Conn.ID()] = &session{conn: e.Conn}
		s.logger.Info("connection opened", "session", e.Conn.ID())
	case disconnectedEvent:
		if sess, ok := s.sessions[e.Session]; ok {
			s.depart(e.Session, sess)
		}
	case messageEvent:
		sess, ok := s.sessions[e.Session]
		if !ok {
			return
		}
		s.handleMessage(e.Session, sess, e.Msg, e.At)
	}
}

func (s *ServerContext) handleMessage(id SessionID, sess *session, m protocol.Message, at time.Time) {
	switch msg := m.(type) {
	case protocol.Join:
		if sess.playing || slices.Contains(s.joins, id) {
			return
		}
		sess.name = sim.SanitizeName(msg.Name)
		s.joins = append(s.joins, id)
	case protocol.Watch:
		sess.watching = true
		s.resyncs[id] = true
	case protocol.Input:
		if !sess.playing {
			return
		}
		if prev, ok := s.inputs[sess.cell]; ok && prev.msg.Tick > msg.Tick {
			return
		}
		s.inputs[sess.cell] = queuedInput{session: id, msg: msg}
	case protocol.Resync:
		if sess.playing || sess.watching {
			s.resyncs[id] = true
		}
	case protocol.Ping:
		s.send(id, sess, protocol.Pong(msg))
	case protocol.Pong:
		s.observeLatency(id, sess, msg, at)
	default:
		s.logger.Debug("unexpected message", "session", id, "type", m.Type())
	}
}

// depart forgets a session. Its living player is killed on the next tick.
func (s *ServerContext) depart(id SessionID, sess *session) {
	delete(s.sessions, id)
	delete(s.resyncs, id)
	if sess.playing {
		s.disconnects = append(s.disconnects, departure{name: sess.name, cell: sess.cell, joinTick: sess.joinTick})
		if q, ok := s.inputs[sess.cell]; ok && q.session == id {
			delete(s.inputs, sess.cell)
		}
	}
	s.logger.Info("connection closed", "session", id, "name", sess.name)
}

func (s *ServerContext) send(id SessionID, sess *session, m protocol.Message) bool {
	err := sess.conn.Send(m)
	if err == nil {
		return true
	}
	if !sess.stale {
		s.logger.Warn("send failed, session will resync", "session", id, "type", m.Type(), "error", err)
	}
	sess.stale = true
	return false
}

func (s *ServerContext) ping(now time.Time) {
	s.lastPing = now
	for id, sess := range s.sessions {
		s.send(id, sess, protocol.Ping{Sent: now.UnixNano()})
	}
}

// observeLatency folds a pong into the session's smoothed round trip.
func (s *ServerContext) observeLatency(id SessionID, sess *session, m protocol.Pong, at time.Time) {
	sample := at.Sub(time.Unix(0, m.Sent))
	if sample < 0 {
		return
	}
	if sess.rttKnown {
		sess.rtt = (4*sess.rtt + sample) / 5
	} else {
		sess.rtt, sess.rttKnown = sample, true
	}
	if sess.rtt <= s.cfg.MaxLatency {
		return
	}
	s.logger.Warn("excess latency", "session", id, "rtt", sess.rtt, "max", s.cfg.MaxLatency)
	if s.cfg.KickOnExcessLatency {
		s.send(id, sess, protocol.Error{Code: protocol.CodeLatency, Message: "latency above " + s.cfg.MaxLatency.String()})
		sess.conn.Close()
		s.depart(id, sess)
	}
}

// maxAge is how far back the session's inputs may rewind: half its round
// trip in ticks plus one delta interval, within the history window.
func (s *ServerContext) maxAge(sess *session) int {
	n := s.history.Cap()
	if !sess.rttKnown {
		return n
	}
	oneWay := math.Ceil(float64(sess.rtt) / 2 / float64(s.cfg.TickTime))
	return min(n, int(oneWay)+s.cfg.DeltaEvery+1)
}

func (s *ServerContext) recordScore(name string, ticks int) {
	if s.scores == nil || ticks <= 0 {
		return
	}
	sink, logger := s.scores, s.logger
	go func() {
		if err := sink.RecordSurvival(name, ticks); err != nil {
			logger.Warn("could not record score", "name", name, "error", err)
		}
	}()
}
