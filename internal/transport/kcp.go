package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/vovakirdan/hexarena/internal/protocol"
)

// ErrFrameTooLarge is returned for a length prefix above the frame limit.
var ErrFrameTooLarge = errors.New("transport: frame too large")

var errClosedByPeer = errors.New("transport: closed by peer")

// WriteFrame writes b behind a 4-byte big-endian length prefix.
func WriteFrame(w io.Writer, b []byte) error {
	buf := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(buf, uint32(len(b)))
	copy(buf[4:], b)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame of at most limit bytes.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errClosedByPeer
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if int64(n) > int64(limit) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// streamFramer frames messages on a byte stream. The codec of each frame
// is recognised from its first byte, so no tag is needed.
type streamFramer struct {
	conn net.Conn
	opts Options
}

func (f *streamFramer) ReadFrame() ([]byte, error) {
	if f.opts.ReadTimeout > 0 {
		_ = f.conn.SetReadDeadline(time.Now().Add(f.opts.ReadTimeout))
	}
	return ReadFrame(f.conn, f.opts.MaxFrame)
}

func (f *streamFramer) WriteFrame(_ protocol.Codec, b []byte) error {
	if f.opts.WriteTimeout > 0 {
		_ = f.conn.SetWriteDeadline(time.Now().Add(f.opts.WriteTimeout))
	}
	return WriteFrame(f.conn, b)
}

func (f *streamFramer) Close() error       { return f.conn.Close() }
func (f *streamFramer) RemoteAddr() string { return f.conn.RemoteAddr().String() }

// TuneKCP switches a KCP session to stream mode with low-latency settings.
func TuneKCP(s *kcp.UDPSession) {
	s.SetStreamMode(true)
	s.SetNoDelay(1, 10, 2, 1)
	s.SetWindowSize(256, 256)
}

// ServeKCP accepts KCP sessions on addr until ctx is cancelled.
func (s *Server) ServeKCP(ctx context.Context, addr string) error {
	l, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return fmt.Errorf("transport: listen kcp %s: %w", addr, err)
	}
	return s.serveKCP(ctx, l)
}

func (s *Server) serveKCP(ctx context.Context, l *kcp.Listener) error {
	s.logger.Info("kcp listening", "addr", l.Addr().String())
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		conn, err := l.AcceptKCP()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: accept kcp: %w", err)
		}
		TuneKCP(conn)
		s.spawn(ctx, &streamFramer{conn: conn, opts: s.opts})
	}
}
