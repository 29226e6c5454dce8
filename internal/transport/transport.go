// Package transport carries protocol messages between network clients and
// the arena loop over WebSocket and KCP.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/hexarena/internal/loop"
	"github.com/vovakirdan/hexarena/internal/protocol"
)

// Sink receives connection events. *loop.ServerContext implements it.
type Sink interface {
	Connect(c loop.Conn)
	Receive(id loop.SessionID, m protocol.Message)
	Disconnect(id loop.SessionID)
}

// Options tunes every connection of a transport.
type Options struct {
	SendQueue    int           // outbound messages buffered per connection
	MaxFrame     int           // largest accepted inbound frame, in bytes
	ReadTimeout  time.Duration // connection is dropped after this much silence
	WriteTimeout time.Duration
	InputRate    float64 // sustained Input messages per second
	InputBurst   int
}

// DefaultOptions returns limits suited to a 50 Hz arena.
func DefaultOptions() Options {
	return Options{
		SendQueue:    256,
		MaxFrame:     1 << 20,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Second,
		InputRate:    60,
		InputBurst:   10,
	}
}

// framer moves whole frames over one network connection. Inbound frames
// carry their encoding; outbound frames are written in the given one.
type framer interface {
	ReadFrame() ([]byte, error)
	WriteFrame(codec protocol.Codec, b []byte) error
	Close() error
	RemoteAddr() string
}

// session is a loop.Conn over a framer. It encodes in the codec of the
// first frame the client sent.
type session struct {
	id     loop.SessionID
	f      framer
	codec  atomic.Pointer[protocol.Codec]
	out    chan protocol.Message
	done   chan struct{}
	once   sync.Once
	logger *log.Logger
}

func newSession(f framer, opts Options, logger *log.Logger) *session {
	s := &session{
		id:     loop.SessionID(uuid.NewString()),
		f:      f,
		out:    make(chan protocol.Message, max(opts.SendQueue, 1)),
		done:   make(chan struct{}),
		logger: logger,
	}
	s.codec.Store(&protocol.JSON)
	return s
}

func (s *session) ID() loop.SessionID { return s.id }

// Send queues m without blocking.
func (s *session) Send(m protocol.Message) error {
	select {
	case <-s.done:
		return loop.ErrClosed
	default:
	}
	select {
	case s.out <- m:
		return nil
	default:
		return loop.ErrSendQueueFull
	}
}

func (s *session) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.f.Close()
	})
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) writeLoop() {
	defer s.Close()
	for {
		select {
		case <-s.done:
			return
		case m := <-s.out:
			codec := *s.codec.Load()
			b, err := codec.Encode(m)
			if err != nil {
				s.logger.Error("encode failed", "session", s.id, "type", m.Type(), "error", err)
				continue
			}
			if err := s.f.WriteFrame(codec, b); err != nil {
				s.logger.Debug("write failed", "session", s.id, "error", err)
				return
			}
		}
	}
}

// Server accepts connections on any number of listeners and feeds them to
// one sink.
type Server struct {
	sink     Sink
	opts     Options
	logger   *log.Logger
	registry *loop.Registry
	wg       sync.WaitGroup
}

// NewServer creates a transport server.
func NewServer(sink Sink, opts Options, logger *log.Logger) *Server {
	return &Server{
		sink:     sink,
		opts:     opts,
		logger:   logger,
		registry: loop.NewRegistry(),
	}
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	return s.registry.Count()
}

// Wait blocks until every connection handler has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// spawn serves f on its own goroutine.
func (s *Server) spawn(ctx context.Context, f framer) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx, f)
	}()
}

// serve runs one connection until it fails, the client leaves or ctx ends.
func (s *Server) serve(ctx context.Context, f framer) {
	sess := newSession(f, s.opts, s.logger)
	s.registry.Register(sess)
	defer s.registry.Unregister(sess.id)

	s.logger.Info("client connected", "session", sess.id, "remote", f.RemoteAddr())
	s.sink.Connect(sess)
	defer s.sink.Disconnect(sess.id)
	defer sess.Close()

	go sess.writeLoop()
	stop := context.AfterFunc(ctx, sess.Close)
	defer stop()

	limiter := rate.NewLimiter(rate.Limit(s.opts.InputRate), max(s.opts.InputBurst, 1))
	first := true
	for {
		frame, err := f.ReadFrame()
		if err != nil {
			if !errors.Is(err, errClosedByPeer) {
				s.logger.Debug("read ended", "session", sess.id, "error", err)
			}
			break
		}
		codec := protocol.Detect(frame)
		if first {
			sess.codec.Store(&codec)
			first = false
		}
		m, err := codec.Decode(frame)
		if err != nil {
			s.logger.Debug("bad frame", "session", sess.id, "codec", codec.Name(), "error", err)
			_ = sess.Send(protocol.Error{Code: protocol.CodeBadMessage, Message: err.Error()})
			continue
		}
		if m.Type() == protocol.TypeInput && !limiter.Allow() {
			s.logger.Debug("input rate exceeded", "session", sess.id)
			continue
		}
		s.sink.Receive(sess.id, m)
	}
	s.logger.Info("client disconnected", "session", sess.id)
}
