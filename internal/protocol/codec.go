package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec turns messages into frames and back.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(frame []byte) (Message, error)
}

var (
	// JSON is the text encoding: an envelope {"t": type, "p": payload}.
	JSON Codec = jsonCodec{}
	// Binary is the protobuf wire encoding.
	Binary Codec = binaryCodec{}
)

// Detect picks the codec a peer used for frame. JSON frames start with
// '{', which is never a valid leading tag of a binary frame.
func Detect(frame []byte) Codec {
	if len(frame) > 0 && frame[0] == '{' {
		return JSON
	}
	return Binary
}

// Lookup returns the codec called name ("json" or "binary").
func Lookup(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSON, nil
	case "binary", "protobuf":
		return Binary, nil
	}
	return nil, fmt.Errorf("protocol: unknown codec %q", name)
}

// newMessage returns a zero value of the message named t.
func newMessage(t Type) (Message, error) {
	switch t {
	case TypeJoin:
		return &Join{}, nil
	case TypeWatch:
		return &Watch{}, nil
	case TypeJoined:
		return &Joined{}, nil
	case TypeGameState:
		return &GameState{}, nil
	case TypeDelta:
		return &Delta{}, nil
	case TypeInput:
		return &Input{}, nil
	case TypePing:
		return &Ping{}, nil
	case TypePong:
		return &Pong{}, nil
	case TypeResync:
		return &Resync{}, nil
	case TypeError:
		return &Error{}, nil
	case TypeDied:
		return &Died{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, t)
}

// deref turns the pointer built by newMessage back into a value.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Join:
		return *v
	case *Watch:
		return *v
	case *Joined:
		return *v
	case *GameState:
		return *v
	case *Delta:
		return *v
	case *Input:
		return *v
	case *Ping:
		return *v
	case *Pong:
		return *v
	case *Resync:
		return *v
	case *Error:
		return *v
	case *Died:
		return *v
	}
	return m
}

type envelope struct {
	Type    Type            `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type(), err)
	}
	return json.Marshal(envelope{Type: m.Type(), Payload: payload})
}

func (jsonCodec) Decode(frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m, err := newMessage(env.Type)
	if err != nil {
		return nil, err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
	}
	return deref(m), nil
}
