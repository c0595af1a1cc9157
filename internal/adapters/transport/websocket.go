// Package transport implements iface.Listener over WebSocket connections
// using gorilla/websocket, with an upgrader and a connection adapter
// bridging its message-framed API onto a plain byte stream.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mues-io/muesd/iface"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type accepted struct {
	conn   io.ReadWriteCloser
	remote iface.RemoteInfo
}

// WebSocketListener serves an HTTP endpoint that upgrades every request to
// a WebSocket connection, handing each one to Accept in arrival order.
type WebSocketListener struct {
	server *http.Server
	accept chan accepted
	errs   chan error
}

// NewWebSocketListener builds an HTTP server for addr whose single handler
// upgrades every incoming request; it does not start listening. Call Serve
// in its own goroutine before calling Accept.
func NewWebSocketListener(addr string) *WebSocketListener {
	l := &WebSocketListener{
		accept: make(chan accepted),
		errs:   make(chan error, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.server = &http.Server{Addr: addr, Handler: mux}
	return l
}

// Serve runs the underlying HTTP server until it is closed. It is expected
// to run in its own goroutine alongside calls to Accept.
func (l *WebSocketListener) Serve() error {
	err := l.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts down the underlying HTTP server.
func (l *WebSocketListener) Close() error {
	return l.server.Close()
}

func (l *WebSocketListener) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	l.accept <- accepted{
		conn:   newWSConn(conn),
		remote: iface.RemoteInfo{Host: r.RemoteAddr, Addr: r.RemoteAddr},
	}
}

// Accept implements iface.Listener.
func (l *WebSocketListener) Accept(ctx context.Context) (io.ReadWriteCloser, iface.RemoteInfo, error) {
	select {
	case a := <-l.accept:
		return a.conn, a.remote, nil
	case err := <-l.errs:
		return nil, iface.RemoteInfo{}, err
	case <-ctx.Done():
		return nil, iface.RemoteInfo{}, ctx.Err()
	}
}

var _ iface.Listener = (*WebSocketListener)(nil)

// wsConn adapts a *websocket.Conn's message framing to io.ReadWriteCloser,
// reassembling across WebSocket message boundaries as needed so the
// Engine's line scanner can treat the connection as a plain byte stream.
type wsConn struct {
	conn     *websocket.Conn
	leftover []byte
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.leftover) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.leftover = data
	}
	n := copy(p, c.leftover)
	c.leftover = c.leftover[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
