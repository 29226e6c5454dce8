package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// A binary frame is a protobuf message with a single length-delimited
// field whose number names the message type, as a oneof would encode it.
// Signed integers are zigzag varints and floats are doubles.
var typeNumbers = map[Type]protowire.Number{
	TypeJoin:      1,
	TypeWatch:     2,
	TypeJoined:    3,
	TypeGameState: 4,
	TypeDelta:     5,
	TypeInput:     6,
	TypePing:      7,
	TypePong:      8,
	TypeResync:    9,
	TypeError:     10,
	TypeDied:      11,
}

var numberTypes = func() map[protowire.Number]Type {
	m := make(map[protowire.Number]Type, len(typeNumbers))
	for t, n := range typeNumbers {
		m[n] = t
	}
	return m
}()

type binaryCodec struct{}

func (binaryCodec) Name() string { return "binary" }

func (binaryCodec) Encode(m Message) ([]byte, error) {
	num, ok := typeNumbers[m.Type()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type())
	}
	var body []byte
	switch v := m.(type) {
	case Join:
		body = appendString(body, 1, v.Name)
	case Watch, Resync:
	case Joined:
		body = appendMessage(body, 1, appendCell(nil, v.Cell))
		body = appendInt(body, 2, v.JoinTick)
	case GameState:
		body = appendGameState(body, v)
	case Delta:
		body = appendInt(body, 1, v.Tick)
		for _, ch := range v.Changes {
			body = appendMessage(body, 2, appendChange(nil, ch))
		}
		body = appendInt(body, 3, v.Prev)
	case Input:
		body = appendInt(body, 1, v.Tick)
		if v.Angle != nil {
			body = appendDouble(body, 2, *v.Angle)
		}
		if v.Momentum != nil {
			body = appendDouble(body, 3, *v.Momentum)
		}
	case Ping:
		body = appendInt64(body, 1, v.Sent)
	case Pong:
		body = appendInt64(body, 1, v.Sent)
	case Error:
		body = appendString(body, 1, v.Code)
		body = appendString(body, 2, v.Message)
	case Died:
		body = appendInt(body, 1, v.SurvivalTicks)
	default:
		return nil, fmt.Errorf("protocol: binary encoding of %T", m)
	}
	return appendMessage(nil, num, body), nil
}

func (binaryCodec) Decode(frame []byte) (Message, error) {
	var (
		msg Message
		err error
	)
	perr := parse(frame, func(f field) error {
		t, ok := numberTypes[f.num]
		if !ok {
			return fmt.Errorf("%w: field %d", ErrUnknownMessage, f.num)
		}
		if f.typ != protowire.BytesType {
			return ErrMalformed
		}
		msg, err = decodeBody(t, f.b)
		return err
	})
	if perr != nil {
		return nil, perr
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	return msg, nil
}

func decodeBody(t Type, b []byte) (Message, error) {
	switch t {
	case TypeJoin:
		var m Join
		err := parse(b, func(f field) error {
			if f.num == 1 {
				m.Name = f.str()
			}
			return nil
		})
		return m, err
	case TypeWatch:
		return Watch{}, nil
	case TypeResync:
		return Resync{}, nil
	case TypeJoined:
		var m Joined
		err := parse(b, func(f field) error {
			switch f.num {
			case 1:
				return decodeCell(f.b, &m.Cell)
			case 2:
				m.JoinTick = f.int()
			}
			return nil
		})
		return m, err
	case TypeGameState:
		return decodeGameState(b)
	case TypeDelta:
		var m Delta
		err := parse(b, func(f field) error {
			switch f.num {
			case 1:
				m.Tick = f.int()
			case 2:
				ch, err := decodeChange(f.b)
				if err != nil {
					return err
				}
				m.Changes = append(m.Changes, ch)
			case 3:
				m.Prev = f.int()
			}
			return nil
		})
		return m, err
	case TypeInput:
		var m Input
		err := parse(b, func(f field) error {
			switch f.num {
			case 1:
				m.Tick = f.int()
			case 2:
				v := f.double()
				m.Angle = &v
			case 3:
				v := f.double()
				m.Momentum = &v
			}
			return nil
		})
		return m, err
	case TypePing:
		var m Ping
		err := parse(b, func(f field) error {
			if f.num == 1 {
				m.Sent = f.int64()
			}
			return nil
		})
		return m, err
	case TypePong:
		var m Pong
		err := parse(b, func(f field) error {
			if f.num == 1 {
				m.Sent = f.int64()
			}
			return nil
		})
		return m, err
	case TypeError:
		var m Error
		err := parse(b, func(f field) error {
			switch f.num {
			case 1:
				m.Code = f.str()
			case 2:
				m.Message = f.str()
			}
			return nil
		})
		return m, err
	case TypeDied:
		var m Died
		err := parse(b, func(f field) error {
			if f.num == 1 {
				m.SurvivalTicks = f.int()
			}
			return nil
		})
		return m, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, t)
}

func appendGameState(b []byte, g GameState) []byte {
	b = appendInt(b, 1, g.Tick)
	b = appendMessage(b, 2, appendParams(nil, g.Params))
	for _, e := range g.Players {
		if e.Player == nil {
			continue
		}
		entry := appendMessage(nil, 1, appendCell(nil, e.Cell))
		entry = appendMessage(entry, 2, appendPlayer(nil, e.Player))
		b = appendMessage(b, 3, entry)
	}
	for _, e := range g.Balls {
		if e.Ball == nil {
			continue
		}
		entry := appendInt(nil, 1, e.Index)
		entry = appendMessage(entry, 2, appendBall(nil, e.Ball))
		b = appendMessage(b, 4, entry)
	}
	return b
}

func decodeGameState(b []byte) (GameState, error) {
	var g GameState
	err := parse(b, func(f field) error {
		switch f.num {
		case 1:
			g.Tick = f.int()
		case 2:
			return decodeParams(f.b, &g.Params)
		case 3:
			var e PlayerEntry
			err := parse(f.b, func(f field) error {
				switch f.num {
				case 1:
					return decodeCell(f.b, &e.Cell)
				case 2:
					e.Player = &sim.Player{}
					return decodePlayer(f.b, e.Player)
				}
				return nil
			})
			if err != nil {
				return err
			}
			g.Players = append(g.Players, e)
		case 4:
			var e BallEntry
			err := parse(f.b, func(f field) error {
				switch f.num {
				case 1:
					e.Index = f.int()
				case 2:
					e.Ball = &sim.Ball{}
					return decodeBall(f.b, e.Ball)
				}
				return nil
			})
			if err != nil {
				return err
			}
			g.Balls = append(g.Balls, e)
		}
		return nil
	})
	return g, err
}

func appendParams(b []byte, p sim.Params) []byte {
	b = appendDouble(b, 1, p.MinBallSpeed)
	b = appendDouble(b, 2, p.MaxBallSpeed)
	b = appendDouble(b, 3, p.ShieldIncrement)
	b = appendDouble(b, 4, p.ShieldBoost)
	b = appendDouble(b, 5, p.BodyDamping)
	b = appendDouble(b, 6, p.DamageFactor)
	b = appendDouble(b, 7, p.BoundSlack)
	b = appendDouble(b, 8, p.MinApproach)
	b = appendInt(b, 9, p.PlayerBallRatio)
	b = appendString(b, 10, string(p.BallBlockPolicy))
	b = appendBool(b, 11, p.RemoveTrappedBalls)
	return b
}

func decodeParams(b []byte, p *sim.Params) error {
	return parse(b, func(f field) error {
		switch f.num {
		case 1:
			p.MinBallSpeed = f.double()
		case 2:
			p.MaxBallSpeed = f.double()
		case 3:
			p.ShieldIncrement = f.double()
		case 4:
			p.ShieldBoost = f.double()
		case 5:
			p.BodyDamping = f.double()
		case 6:
			p.DamageFactor = f.double()
		case 7:
			p.BoundSlack = f.double()
		case 8:
			p.MinApproach = f.double()
		case 9:
			p.PlayerBallRatio = f.int()
		case 10:
			p.BallBlockPolicy = sim.BallBlockPolicy(f.str())
		case 11:
			p.RemoveTrappedBalls = f.v != 0
		}
		return nil
	})
}

func appendPlayer(b []byte, p *sim.Player) []byte {
	b = appendString(b, 1, p.Name)
	b = appendString(b, 2, p.Color)
	b = appendDouble(b, 3, p.Health)
	b = appendDouble(b, 4, p.ShieldAngle)
	b = appendDouble(b, 5, p.ShieldMomentum)
	var bounds uint64
	for d, active := range p.ActiveBounds {
		if active {
			bounds |= 1 << d
		}
	}
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, bounds)
	b = appendMessage(b, 7, appendVec(nil, p.Position))
	b = appendInt(b, 8, p.JoinTick)
	return b
}

func decodePlayer(b []byte, p *sim.Player) error {
	return parse(b, func(f field) error {
		switch f.num {
		case 1:
			p.Name = f.str()
		case 2:
			p.Color = f.str()
		case 3:
			p.Health = f.double()
		case 4:
			p.ShieldAngle = f.double()
		case 5:
			p.ShieldMomentum = f.double()
		case 6:
			for d := range p.ActiveBounds {
				p.ActiveBounds[d] = f.v&(1<<d) != 0
			}
		case 7:
			return decodeVec(f.b, &p.Position)
		case 8:
			p.JoinTick = f.int()
		}
		return nil
	})
}

func appendBall(b []byte, ball *sim.Ball) []byte {
	b = appendMessage(b, 1, appendVec(nil, ball.Position))
	return appendMessage(b, 2, appendVec(nil, ball.Velocity))
}

func decodeBall(b []byte, ball *sim.Ball) error {
	return parse(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeVec(f.b, &ball.Position)
		case 2:
			return decodeVec(f.b, &ball.Velocity)
		}
		return nil
	})
}

func appendChange(b []byte, ch delta.Change) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ch.Kind))
	if ch.Kind.IsPlayer() {
		b = appendMessage(b, 2, appendCell(nil, ch.Cell))
	} else {
		b = appendInt(b, 3, ch.Index)
	}
	if ch.Player != nil {
		b = appendMessage(b, 4, appendPlayer(nil, ch.Player))
	}
	if ch.Ball != nil {
		b = appendMessage(b, 5, appendBall(nil, ch.Ball))
	}
	if ch.Value != 0 {
		b = appendDouble(b, 6, ch.Value)
	}
	if ch.Vec != (hex.Vec{}) {
		b = appendMessage(b, 7, appendVec(nil, ch.Vec))
	}
	return b
}

func decodeChange(b []byte) (delta.Change, error) {
	var ch delta.Change
	err := parse(b, func(f field) error {
		switch f.num {
		case 1:
			ch.Kind = delta.Kind(f.v)
		case 2:
			return decodeCell(f.b, &ch.Cell)
		case 3:
			ch.Index = f.int()
		case 4:
			ch.Player = &sim.Player{}
			return decodePlayer(f.b, ch.Player)
		case 5:
			ch.Ball = &sim.Ball{}
			return decodeBall(f.b, ch.Ball)
		case 6:
			ch.Value = f.double()
		case 7:
			return decodeVec(f.b, &ch.Vec)
		}
		return nil
	})
	if err == nil && ch.Index > MaxBallIndex {
		err = fmt.Errorf("%w: ball index %d", ErrMalformed, ch.Index)
	}
	return ch, err
}

func appendCell(b []byte, c hex.Cell) []byte {
	b = appendInt(b, 1, c.Row)
	return appendInt(b, 2, c.Index)
}

func decodeCell(b []byte, c *hex.Cell) error {
	return parse(b, func(f field) error {
		switch f.num {
		case 1:
			c.Row = f.int()
		case 2:
			c.Index = f.int()
		}
		return nil
	})
}

func appendVec(b []byte, v hex.Vec) []byte {
	b = appendDouble(b, 1, v.X)
	return appendDouble(b, 2, v.Y)
}

func decodeVec(b []byte, v *hex.Vec) error {
	return parse(b, func(f field) error {
		switch f.num {
		case 1:
			v.X = f.double()
		case 2:
			v.Y = f.double()
		}
		return nil
	})
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	return appendInt64(b, num, int64(v))
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// field is one decoded protobuf field. Accessors of the wrong wire type
// return zero values.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

func (f field) int64() int64 {
	if f.typ != protowire.VarintType {
		return 0
	}
	return protowire.DecodeZigZag(f.v)
}

func (f field) int() int { return int(f.int64()) }

func (f field) double() float64 {
	if f.typ != protowire.Fixed64Type {
		return 0
	}
	return math.Float64frombits(f.v)
}

func (f field) str() string {
	return string(f.b)
}

// parse walks the fields of a message in order.
func parse(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
