package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vovakirdan/hexarena/internal/protocol"
)

// wsFramer maps codecs onto WebSocket message types: JSON travels as
// text, the binary encoding as binary messages.
type wsFramer struct {
	conn *websocket.Conn
	opts Options
}

func newWSFramer(conn *websocket.Conn, opts Options) *wsFramer {
	conn.SetReadLimit(int64(opts.MaxFrame))
	return &wsFramer{conn: conn, opts: opts}
}

func (f *wsFramer) ReadFrame() ([]byte, error) {
	if f.opts.ReadTimeout > 0 {
		_ = f.conn.SetReadDeadline(time.Now().Add(f.opts.ReadTimeout))
	}
	for {
		kind, data, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, errClosedByPeer
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (f *wsFramer) WriteFrame(codec protocol.Codec, b []byte) error {
	if f.opts.WriteTimeout > 0 {
		_ = f.conn.SetWriteDeadline(time.Now().Add(f.opts.WriteTimeout))
	}
	kind := websocket.TextMessage
	if codec == protocol.Binary {
		kind = websocket.BinaryMessage
	}
	return f.conn.WriteMessage(kind, b)
}

func (f *wsFramer) Close() error       { return f.conn.Close() }
func (f *wsFramer) RemoteAddr() string { return f.conn.RemoteAddr().String() }

// WebSocketHandler upgrades requests and serves them until ctx ends.
func (s *Server) WebSocketHandler(ctx context.Context) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		s.serve(ctx, newWSFramer(conn, s.opts))
	})
}

// ServeWebSocket listens for WebSocket clients on addr at path until ctx
// is cancelled.
func (s *Server) ServeWebSocket(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, s.WebSocketHandler(ctx))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("websocket listening", "addr", addr, "path", path)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("transport: websocket %s: %w", addr, err)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("transport: websocket shutdown: %w", err)
		}
		return nil
	}
}
