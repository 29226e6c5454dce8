package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/transport"
)

// ErrUnknownNetwork is returned for a network other than "ws" or "kcp".
var ErrUnknownNetwork = errors.New("client: unknown network")

const maxFrame = 1 << 20

// link moves frames to and from the server.
type link interface {
	read() ([]byte, error)
	write(codec protocol.Codec, b []byte) error
	close() error
}

type wsLink struct{ conn *websocket.Conn }

func (l wsLink) read() ([]byte, error) {
	_, b, err := l.conn.ReadMessage()
	return b, err
}

func (l wsLink) write(codec protocol.Codec, b []byte) error {
	kind := websocket.TextMessage
	if codec == protocol.Binary {
		kind = websocket.BinaryMessage
	}
	return l.conn.WriteMessage(kind, b)
}

func (l wsLink) close() error { return l.conn.Close() }

type streamLink struct{ conn net.Conn }

func (l streamLink) read() ([]byte, error) { return transport.ReadFrame(l.conn, maxFrame) }

func (l streamLink) write(_ protocol.Codec, b []byte) error {
	_ = l.conn.SetWriteDeadline(time.Now().Add(time.Second))
	return transport.WriteFrame(l.conn, b)
}

func (l streamLink) close() error { return l.conn.Close() }

// Conn is a client connection to an arena server. Received messages are
// delivered on Messages in order; the channel closes when the connection
// ends.
type Conn struct {
	link  link
	codec protocol.Codec
	in    chan protocol.Message

	mu      sync.Mutex
	err     error
	closed  chan struct{}
	closeMu sync.Once
}

// Dial connects to addr over network "ws" (addr is a ws:// URL) or "kcp"
// (addr is host:port), encoding with codec.
func Dial(ctx context.Context, network, addr string, codec protocol.Codec) (*Conn, error) {
	var l link
	switch network {
	case "ws", "websocket":
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("client: dial %s: %w", addr, err)
		}
		conn.SetReadLimit(maxFrame)
		l = wsLink{conn: conn}
	case "kcp":
		conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("client: dial %s: %w", addr, err)
		}
		transport.TuneKCP(conn)
		l = streamLink{conn: conn}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}

	c := &Conn{
		link:   l,
		codec:  codec,
		in:     make(chan protocol.Message, 256),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.in)
	for {
		frame, err := c.link.read()
		if err != nil {
			c.fail(err)
			return
		}
		m, err := protocol.Detect(frame).Decode(frame)
		if err != nil {
			c.fail(err)
			return
		}
		select {
		case c.in <- m:
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		select {
		case <-c.closed:
		default:
			c.err = err
		}
	}
	c.mu.Unlock()
	c.Close()
}

// Messages returns the inbound message channel.
func (c *Conn) Messages() <-chan protocol.Message {
	return c.in
}

// Send encodes and writes m. It is safe for one goroutine at a time.
func (c *Conn) Send(m protocol.Message) error {
	b, err := c.codec.Encode(m)
	if err != nil {
		return err
	}
	if err := c.link.write(c.codec, b); err != nil {
		return fmt.Errorf("client: send %s: %w", m.Type(), err)
	}
	return nil
}

// Done is closed once the connection has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Err returns the error that ended the connection, nil after Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the connection.
func (c *Conn) Close() {
	c.closeMu.Do(func() {
		close(c.closed)
		_ = c.link.close()
	})
}
