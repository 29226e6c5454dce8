package loop

import (
	"slices"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/history"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/reconcile"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// Step runs one tick: disconnects, one join, lag-compensated inputs,
// snapshot, full states, delta broadcast, integration and death
// notices. It must be called from the loop goroutine.
func (s *ServerContext) Step() {
	var changes []delta.Change
	changes = s.killDeparted(changes)
	joined, changes := s.admitOne(changes)

	res := s.applyInputs(changes)
	s.state = res.State

	s.history.Push(history.Snapshot{
		Tick:    s.tick,
		State:   s.state.Clone(),
		Changes: slices.Concat(changes, res.PresentChanges),
	})

	full := s.sendFullStates(joined)
	records := slices.Concat(changes, res.Corrections)
	if len(records) > 0 || s.tick%s.cfg.DeltaEvery == 0 {
		s.broadcast(protocol.Delta{Tick: s.tick, Prev: s.lastDelta, Changes: records}, full)
		s.lastDelta = s.tick
	}

	ev := s.state.Tick()
	for _, c := range ev.RemovedPlayers {
		s.logger.Debug("cell cleared", "tick", s.tick, "cell", c)
	}
	s.tick++
	s.reapDead()
}

// killDeparted zeroes the health of players whose connection ended.
func (s *ServerContext) killDeparted(changes []delta.Change) []delta.Change {
	for _, d := range s.disconnects {
		p := s.state.PlayerAt(d.cell)
		if p == nil || p.JoinTick != d.joinTick || !p.Alive() {
			continue
		}
		p.Health = 0
		changes = append(changes, delta.NewHealth(d.cell, 0))
		s.recordScore(d.name, s.tick-d.joinTick)
	}
	s.disconnects = s.disconnects[:0]
	return changes
}

// admitOne places the oldest queued joiner, spawning a ball when the
// arena has too few. Only one join is attempted per tick.
func (s *ServerContext) admitOne(changes []delta.Change) (*session, []delta.Change) {
	for len(s.joins) > 0 {
		id := s.joins[0]
		s.joins = s.joins[1:]
		sess, ok := s.sessions[id]
		if !ok || sess.playing {
			continue
		}

		cell, err := s.state.FindJoinCell()
		if err != nil {
			s.logger.Info("join rejected", "session", id, "name", sess.name, "error", err)
			s.send(id, sess, protocol.Error{Code: protocol.CodeJoinRejected, Message: err.Error()})
			return nil, changes
		}

		p := sim.NewPlayer(sim.PlayerSpec{
			Name:     sess.name,
			Color:    sim.RandomColor(s.rng),
			Cell:     cell,
			JoinTick: s.tick,
		})
		s.state.AddPlayer(cell, p)
		changes = append(changes, delta.NewPlayerAdded(cell, p))

		params := s.state.Params()
		if n := s.state.BallCount; n == 0 || n < params.BallQuota(s.state.PlayerCount) {
			b := sim.NewBall(p.Position.Add(hex.Vec{X: hex.PlayerDistance / 3.0}), nil, s.rng)
			i := s.state.AddBall(b)
			changes = append(changes, delta.NewBallAdded(i, b))
		}

		sess.playing, sess.watching = true, false
		sess.cell, sess.joinTick = cell, s.tick
		s.logger.Info("player joined", "session", id, "name", sess.name, "cell", cell, "tick", s.tick)
		return sess, changes
	}
	return nil, changes
}

// applyInputs reconciles the queued shield inputs against history.
func (s *ServerContext) applyInputs(changes []delta.Change) reconcile.Result {
	if len(s.inputs) == 0 {
		return reconcile.Result{State: s.state}
	}
	inputs := make([]reconcile.Input, 0, len(s.inputs))
	for cell, q := range s.inputs {
		sess, ok := s.sessions[q.session]
		if !ok || !sess.playing || sess.cell != cell {
			continue
		}
		inputs = append(inputs, reconcile.Input{
			Cell:     cell,
			JoinTick: sess.joinTick,
			Tick:     q.msg.Tick,
			Angle:    q.msg.Angle,
			Momentum: q.msg.Momentum,
			MaxAge:   s.maxAge(sess),
		})
	}
	clear(s.inputs)

	res := reconcile.Reconcile(s.history, s.state, s.tick, changes, reconcile.Dedupe(inputs))
	for _, d := range res.Dropped {
		s.logger.Debug("input dropped", "cell", d.Input.Cell, "input_tick", d.Input.Tick, "tick", s.tick, "error", d.Err)
	}
	for _, a := range res.Applied {
		if a.Clamped {
			s.logger.Debug("input latency clamped", "cell", a.Input.Cell, "age", a.Age)
		}
	}
	return res
}

// sendFullStates sends the current state to the joiner, to sessions that
// asked for it and to sessions whose last send failed. It returns the
// sessions served, which skip this tick's delta.
func (s *ServerContext) sendFullStates(joined *session) map[SessionID]bool {
	full := make(map[SessionID]bool, len(s.resyncs)+1)
	for id := range s.resyncs {
		full[id] = true
	}
	clear(s.resyncs)
	for id, sess := range s.sessions {
		if sess.stale {
			full[id] = true
		}
	}
	if joined != nil {
		id := joined.conn.ID()
		full[id] = true
		s.send(id, joined, protocol.Joined{Cell: joined.cell, JoinTick: joined.joinTick})
	}
	if len(full) == 0 {
		return full
	}

	state := protocol.NewGameState(s.tick, s.state)
	for id := range full {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		if s.send(id, sess, state) {
			sess.stale = false
		}
	}
	return full
}

func (s *ServerContext) broadcast(d protocol.Delta, skip map[SessionID]bool) {
	for id, sess := range s.sessions {
		if skip[id] || sess.stale || !(sess.playing || sess.watching) {
			continue
		}
		s.send(id, sess, d)
	}
}

// reapDead notifies sessions whose player died or vanished and records
// their survival time.
func (s *ServerContext) reapDead() {
	for id, sess := range s.sessions {
		if !sess.playing {
			continue
		}
		p := s.state.PlayerAt(sess.cell)
		if p != nil && p.JoinTick == sess.joinTick && p.Alive() {
			continue
		}
		sess.playing, sess.watching = false, true
		ticks := s.tick - sess.joinTick
		s.send(id, sess, protocol.Died{SurvivalTicks: ticks})
		s.recordScore(sess.name, ticks)
		s.logger.Info("player died", "session", id, "name", sess.name, "survived_ticks", ticks)
	}
}
