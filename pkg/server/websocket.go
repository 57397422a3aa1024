package server

import (
	"fmt"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/aeolun/chatwire/pkg/protocol"
)

// wsConn adapts a WebSocket connection to frameConn. WebSocket text
// messages already carry their own length, so each message maps directly
// onto one text frame; the binary length prefix used on raw TCP is not
// needed here.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex // Protects writes; gorilla allows one concurrent writer
}

func newWSConn(ws *websocket.Conn) *wsConn {
	ws.SetReadLimit(protocol.MaxFrameSize)
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadFrame() (string, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType != websocket.TextMessage {
			// Control frames are handled by gorilla; anything else is ignored.
			continue
		}
		if !utf8.Valid(data) {
			return "", protocol.ErrInvalidUTF8
		}
		return string(data), nil
	}
}

func (c *wsConn) WriteFrame(text string) error {
	if len(text) > protocol.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", protocol.ErrFrameTooLarge, len(text))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
