package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/chatwire/pkg/protocol"
)

// fakeServer accepts one connection and lets the test script frames.
type fakeServer struct {
	t        *testing.T
	conn     net.Conn
	accepted chan struct{}
}

func startFakeServer(t *testing.T) (*fakeServer, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	fs := &fakeServer{t: t, accepted: make(chan struct{})}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fs.conn = conn
		close(fs.accepted)
	}()

	t.Cleanup(func() {
		select {
		case <-fs.accepted:
			fs.conn.Close()
		default:
		}
	})
	return fs, ln.Addr().String()
}

func (fs *fakeServer) waitAccepted() {
	fs.t.Helper()
	select {
	case <-fs.accepted:
	case <-time.After(time.Second):
		fs.t.Fatal("server never accepted the connection")
	}
}

func (fs *fakeServer) send(text string) {
	fs.t.Helper()
	require.NoError(fs.t, protocol.WriteFrame(fs.conn, text))
}

func (fs *fakeServer) read() string {
	fs.t.Helper()
	require.NoError(fs.t, fs.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	text, err := protocol.ReadFrame(fs.conn)
	require.NoError(fs.t, err)
	return text
}

func recvFrame(t *testing.T, c *Connection) string {
	t.Helper()
	select {
	case msg := <-c.Incoming:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for incoming frame")
		return ""
	}
}

func TestConnectionAnswersContactPrompt(t *testing.T) {
	fs, addr := startFakeServer(t)

	c, err := Dial(addr, 6001)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	fs.waitAccepted()

	// LOGIN_SUCCEEDED is answered with the UDP port and never surfaces on
	// Incoming.
	fs.send("LOGIN_SUCCEEDED")
	assert.Equal(t, "6001", fs.read())

	fs.send("Welcome alice")
	assert.Equal(t, "Welcome alice", recvFrame(t, c))
	assert.Equal(t, "alice", c.Username())
}

func TestConnectionLogoutClosesDone(t *testing.T) {
	fs, addr := startFakeServer(t)

	c, err := Dial(addr, 6001)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	fs.waitAccepted()

	fs.send("Bye, alice!")
	assert.Equal(t, "Bye, alice!", recvFrame(t, c))

	fs.send("LOGOUT")
	select {
	case <-c.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after LOGOUT")
	}
}

func TestConnectionSend(t *testing.T) {
	fs, addr := startFakeServer(t)

	c, err := Dial(addr, 6001)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	fs.waitAccepted()

	require.NoError(t, c.Send("/activeuser"))
	assert.Equal(t, "/activeuser", fs.read())
}

func TestFindPeer(t *testing.T) {
	c := &Connection{
		Incoming: make(chan string, 10),
		Done:     make(chan struct{}),
	}
	c.history = []string{
		"Welcome alice",
		"01 Apr 2024 19:09:02; bob; (10.0.0.5, 52000); 6002\n" +
			"01 Apr 2024 19:09:03; carol; (10.0.0.6, 52001); 6003",
	}

	peer, ok := c.FindPeer("carol")
	require.True(t, ok)
	assert.Equal(t, PeerEndpoint{Host: "10.0.0.6", UDPPort: 6003}, peer)

	_, ok = c.FindPeer("dave")
	assert.False(t, ok)
}

func TestFindPeerPrefersNewestListing(t *testing.T) {
	c := &Connection{
		Incoming: make(chan string, 10),
		Done:     make(chan struct{}),
	}
	c.history = []string{
		"01 Apr 2024 19:09:02; bob; (10.0.0.5, 52000); 6002",
		"message sent at 01 Apr 2024 19:09:10.",
		"01 Apr 2024 19:09:20; bob; (10.0.0.9, 52044); 7000",
	}

	peer, ok := c.FindPeer("bob")
	require.True(t, ok)
	assert.Equal(t, PeerEndpoint{Host: "10.0.0.9", UDPPort: 7000}, peer)
}
