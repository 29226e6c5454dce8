package loop

import (
	"time"

	"github.com/vovakirdan/hexarena/internal/protocol"
)

// event is something that happened outside the loop goroutine and is
// handed to it through the inbox.
type event interface {
	event()
}

// connectedEvent registers a new connection.
type connectedEvent struct {
	Conn Conn
}

func (connectedEvent) event() {}

// messageEvent carries a decoded client message.
type messageEvent struct {
	Session SessionID
	Msg     protocol.Message
	At      time.Time
}

func (messageEvent) event() {}

// disconnectedEvent is sent when a connection ends.
type disconnectedEvent struct {
	Session SessionID
}

func (disconnectedEvent) event() {}
