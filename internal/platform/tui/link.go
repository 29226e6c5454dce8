package tui

import (
	"github.com/google/uuid"

	"github.com/vovakirdan/hexarena/internal/loop"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/transport"
)

// LoopLink connects a model to an in-process arena loop without a
// network transport in between.
type LoopLink struct {
	conn *loop.ChannelConn
	sink transport.Sink
}

// NewLoopLink registers a new connection with sink. size bounds the
// buffered server messages.
func NewLoopLink(sink transport.Sink, size int) *LoopLink {
	l := &LoopLink{
		conn: loop.NewChannelConn(loop.SessionID("local-"+uuid.NewString()), size),
		sink: sink,
	}
	sink.Connect(l.conn)
	return l
}

// ID returns the session identifier.
func (l *LoopLink) ID() loop.SessionID {
	return l.conn.ID()
}

// Messages returns the server messages.
func (l *LoopLink) Messages() <-chan protocol.Message {
	return l.conn.Messages()
}

// Done is closed when either side ends the session.
func (l *LoopLink) Done() <-chan struct{} {
	return l.conn.Done()
}

// Send hands m to the loop as if it came from the network.
func (l *LoopLink) Send(m protocol.Message) error {
	select {
	case <-l.conn.Done():
		return loop.ErrClosed
	default:
	}
	l.sink.Receive(l.conn.ID(), m)
	return nil
}

// Close leaves the arena.
func (l *LoopLink) Close() {
	l.sink.Disconnect(l.conn.ID())
	l.conn.Close()
}
