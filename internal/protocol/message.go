// Package protocol defines the messages exchanged between the arena
// server and its clients, and the two wire encodings that carry them.
package protocol

import (
	"errors"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

var (
	// ErrUnknownMessage is returned when a frame names no known message.
	ErrUnknownMessage = errors.New("protocol: unknown message type")
	// ErrMalformed is returned when a frame cannot be parsed.
	ErrMalformed = errors.New("protocol: malformed frame")
)

// Type names a message on the wire.
type Type string

const (
	TypeJoin      Type = "join"
	TypeWatch     Type = "watch"
	TypeJoined    Type = "joined"
	TypeGameState Type = "state"
	TypeDelta     Type = "delta"
	TypeInput     Type = "input"
	TypePing      Type = "ping"
	TypePong      Type = "pong"
	TypeResync    Type = "resync"
	TypeError     Type = "error"
	TypeDied      Type = "died"
)

// Message is implemented by every wire message.
type Message interface {
	Type() Type
}

// Join asks the server for a cell. Client to server.
type Join struct {
	Name string `json:"name"`
}

// Watch subscribes a connection to the arena without a player.
type Watch struct{}

// Joined tells a client which cell it plays.
type Joined struct {
	Cell     hex.Cell `json:"cell"`
	JoinTick int      `json:"joinTick"`
}

// PlayerEntry is one occupied cell in a GameState.
type PlayerEntry struct {
	Cell   hex.Cell    `json:"cell"`
	Player *sim.Player `json:"player"`
}

// BallEntry is one ball slot in a GameState.
type BallEntry struct {
	Index int       `json:"index"`
	Ball  *sim.Ball `json:"ball"`
}

// GameState is the complete arena at Tick, after that tick's external
// changes and before its integration.
type GameState struct {
	Tick    int           `json:"tick"`
	Params  sim.Params    `json:"params"`
	Players []PlayerEntry `json:"players"`
	Balls   []BallEntry   `json:"balls"`
}

// Delta carries the change records to apply at Tick before ticking.
type Delta struct {
	Tick    int            `json:"tick"`
	Prev    int            `json:"prev"` // tick of the previous broadcast delta
	Changes []delta.Change `json:"changes"`
}

// Input is a shield command issued while the client displayed Tick.
// Nil fields leave the value unchanged.
type Input struct {
	Tick     int      `json:"tick"`
	Angle    *float64 `json:"angle,omitempty"`
	Momentum *float64 `json:"momentum,omitempty"`
}

// Ping carries the sender's clock in Unix nanoseconds; the peer echoes
// it back in a Pong.
type Ping struct {
	Sent int64 `json:"sent"`
}

// Pong echoes a Ping.
type Pong struct {
	Sent int64 `json:"sent"`
}

// Resync asks the server for a fresh GameState.
type Resync struct{}

// Error codes.
const (
	CodeJoinRejected = "join_rejected"
	CodeBadMessage   = "bad_message"
	CodeLatency      = "latency"
)

// Error reports a rejected request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// Died tells a player its cell was cleared.
type Died struct {
	SurvivalTicks int `json:"survivalTicks"`
}

func (Join) Type() Type      { return TypeJoin }
func (Watch) Type() Type     { return TypeWatch }
func (Joined) Type() Type    { return TypeJoined }
func (GameState) Type() Type { return TypeGameState }
func (Delta) Type() Type     { return TypeDelta }
func (Input) Type() Type     { return TypeInput }
func (Ping) Type() Type      { return TypePing }
func (Pong) Type() Type      { return TypePong }
func (Resync) Type() Type    { return TypeResync }
func (Error) Type() Type     { return TypeError }
func (Died) Type() Type      { return TypeDied }

// MaxBallIndex bounds ball slot indices accepted from the wire.
const MaxBallIndex = hex.CellCount

// NewGameState captures s at tick. Entities are copied.
func NewGameState(tick int, s *sim.State) GameState {
	g := GameState{
		Tick:    tick,
		Params:  s.Params(),
		Players: make([]PlayerEntry, 0, s.PlayerCount),
		Balls:   make([]BallEntry, 0, s.BallCount),
	}
	s.EachPlayer(func(c hex.Cell, p *sim.Player) {
		g.Players = append(g.Players, PlayerEntry{Cell: c, Player: p.Clone()})
	})
	for i := range s.BallSlots() {
		if b := s.Ball(i); b != nil {
			g.Balls = append(g.Balls, BallEntry{Index: i, Ball: b.Clone()})
		}
	}
	return g
}

// State rebuilds the arena. Entries outside the grid, ball indices past
// MaxBallIndex and entries without an entity are skipped.
func (g GameState) State() *sim.State {
	s := sim.NewState(g.Params)
	for _, e := range g.Players {
		if e.Player != nil && hex.InBounds(e.Cell) {
			s.AddPlayer(e.Cell, e.Player.Clone())
		}
	}
	for _, e := range g.Balls {
		if e.Ball != nil && e.Index >= 0 && e.Index <= MaxBallIndex {
			s.PutBall(e.Index, e.Ball.Clone())
		}
	}
	return s
}
