package client

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/aeolun/chatwire/pkg/protocol"
)

// Connection manages the TCP side of a chat session. A background reader
// goroutine turns server frames into events on Incoming; prompts that the
// protocol answers automatically (the contact-endpoint request after
// LOGIN_SUCCEEDED) never surface there.
type Connection struct {
	conn    net.Conn
	udpPort int

	mu       sync.Mutex // protects writes to conn
	nameMu   sync.RWMutex
	username string

	histMu  sync.RWMutex
	history []string // received frames, newest last

	// Incoming carries every frame meant for display. Done is closed when
	// the server sends the LOGOUT sentinel or the connection drops.
	Incoming chan string
	Done     chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to the server and starts the reader. udpPort is the local
// port peers can reach this client on; the connection reports it to the
// server during login.
func Dial(addr string, udpPort int) (*Connection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Connection{
		conn:     conn,
		udpPort:  udpPort,
		Incoming: make(chan string, 100),
		Done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Send writes one text frame to the server.
func (c *Connection) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteFrame(c.conn, text)
}

// Username returns the name the server welcomed us under, or "" before
// login completes.
func (c *Connection) Username() string {
	c.nameMu.RLock()
	defer c.nameMu.RUnlock()
	return c.username
}

// Close tears down the connection. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

func (c *Connection) readLoop() {
	defer c.wg.Done()
	defer close(c.Done)

	for {
		msg, err := protocol.ReadFrame(c.conn)
		if err != nil {
			return
		}

		switch {
		case msg == "LOGIN_SUCCEEDED":
			// The server wants our reachable contact endpoint before it
			// registers us.
			if err := c.Send(strconv.Itoa(c.udpPort)); err != nil {
				return
			}
		case msg == "LOGOUT":
			return
		case strings.HasPrefix(msg, "Welcome "):
			c.nameMu.Lock()
			c.username = strings.TrimPrefix(msg, "Welcome ")
			c.nameMu.Unlock()
			c.deliver(msg)
		default:
			c.deliver(msg)
		}
	}
}

func (c *Connection) deliver(msg string) {
	c.histMu.Lock()
	c.history = append(c.history, msg)
	c.histMu.Unlock()

	c.Incoming <- msg
}

// contactRegex pulls the host out of a "(host, port)" contact field.
var contactRegex = regexp.MustCompile(`\(([^,]+),\s*\d+\)`)

// PeerEndpoint is a peer's reachable address for the UDP side channel.
type PeerEndpoint struct {
	Host    string
	UDPPort int
}

// FindPeer resolves a peer's endpoint from the most recent user listing the
// server sent us. Listings are lines of "timestamp; username; (host, port);
// udpPort"; the newest frame mentioning the peer wins. Returns false when no
// listing mentions the peer, which also covers never having asked for one.
func (c *Connection) FindPeer(username string) (PeerEndpoint, bool) {
	c.histMu.RLock()
	defer c.histMu.RUnlock()

	for i := len(c.history) - 1; i >= 0; i-- {
		for _, line := range strings.Split(c.history[i], "\n") {
			fields := strings.Split(line, "; ")
			if len(fields) < 4 || fields[1] != username {
				continue
			}

			port, err := strconv.Atoi(strings.TrimSpace(fields[3]))
			if err != nil {
				continue
			}
			m := contactRegex.FindStringSubmatch(fields[2])
			if m == nil {
				continue
			}
			return PeerEndpoint{Host: m[1], UDPPort: port}, true
		}
	}
	return PeerEndpoint{}, false
}
