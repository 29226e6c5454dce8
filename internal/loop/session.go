package loop

import (
	"errors"
	"sync"

	"github.com/vovakirdan/hexarena/internal/protocol"
)

var (
	// ErrSendQueueFull is returned by Send when a connection cannot keep
	// up. The loop answers by resyncing the connection later.
	ErrSendQueueFull = errors.New("loop: send queue full")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("loop: connection closed")
)

// SessionID uniquely identifies a connection.
type SessionID string

// Conn is the transport-neutral handle the loop uses to talk to one
// client. Send must not block.
type Conn interface {
	ID() SessionID
	Send(m protocol.Message) error
	Close()
	Done() <-chan struct{}
}

// ChannelConn is an in-process Conn backed by a buffered channel. The
// SSH spectator and tests read from it directly.
type ChannelConn struct {
	id       SessionID
	messages chan protocol.Message
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelConn returns a connection buffering up to size messages.
func NewChannelConn(id SessionID, size int) *ChannelConn {
	if size < 1 {
		size = 64
	}
	return &ChannelConn{
		id:       id,
		messages: make(chan protocol.Message, size),
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (c *ChannelConn) ID() SessionID {
	return c.id
}

// Send queues m. Messages are never dropped silently: a full buffer
// reports ErrSendQueueFull so the caller can resync.
func (c *ChannelConn) Send(m protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.messages <- m:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Messages returns the channel to read from.
func (c *ChannelConn) Messages() <-chan protocol.Message {
	return c.messages
}

// Done returns the done channel.
func (c *ChannelConn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection as done. Safe to call multiple times.
func (c *ChannelConn) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// Registry tracks live connections across transports.
// Thread-safe for concurrent access.
type Registry struct {
	mu    sync.RWMutex
	conns map[SessionID]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[SessionID]Conn)}
}

// Register adds c.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Unregister removes the connection with id.
func (r *Registry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Get retrieves a connection by ID.
func (r *Registry) Get(id SessionID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}
