package server

import (
	"net"
	"sync"

	"github.com/aeolun/chatwire/pkg/protocol"
)

// frameConn is the transport a session runs on: one text frame in, one text
// frame out. Implemented by SafeConn for TCP and by wsConn for WebSocket.
type frameConn interface {
	ReadFrame() (string, error)
	WriteFrame(text string) error
	Close() error
	RemoteAddr() net.Addr
}

// SafeConn wraps a net.Conn with automatic write synchronization. The
// session goroutine and the router both write to the same connection;
// without a mutex their frame bytes would interleave on the wire.
type SafeConn struct {
	conn net.Conn
	mu   sync.Mutex // Protects writes to conn
}

// NewSafeConn wraps a net.Conn with write synchronization.
func NewSafeConn(conn net.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteFrame encodes and sends one text frame. This is the only way to
// write to the connection; the raw conn is private.
func (sc *SafeConn) WriteFrame(text string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return protocol.WriteFrame(sc.conn, text)
}

// ReadFrame reads one text frame. Reads don't need write synchronization;
// only the owning session goroutine reads.
func (sc *SafeConn) ReadFrame() (string, error) {
	return protocol.ReadFrame(sc.conn)
}

// Close closes the underlying connection.
func (sc *SafeConn) Close() error {
	return sc.conn.Close()
}

// RemoteAddr returns the remote network address.
func (sc *SafeConn) RemoteAddr() net.Addr {
	return sc.conn.RemoteAddr()
}
