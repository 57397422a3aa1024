package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aeolun/chatwire/pkg/protocol"
)

// SessionState is the per-connection protocol state. Transitions are
// monotonic: Unauthenticated -> Authenticated -> Terminated. Terminated is
// final and releases every directory entry owned by the session.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateTerminated
)

// menuPrompt precedes every command read once a session is authenticated.
const menuPrompt = "/msgto /activeuser /creategroup /joingroup /groupmsg /logout /p2pvideo\nPlease enter your command:"

// Session is the server-side state for one client connection. It owns the
// connection and its read loop exclusively; only the session's own goroutine
// mutates state and username.
type Session struct {
	ID       uuid.UUID // opaque connection id
	conn     frameConn
	remote   string // remote endpoint, host:port
	state    SessionState
	username string // set once, on transition to Authenticated
	srv      *Server
}

func newSession(srv *Server, conn frameConn) *Session {
	return &Session{
		ID:     uuid.New(),
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		state:  StateUnauthenticated,
		srv:    srv,
	}
}

// identity is the connection identity lockouts are keyed by. It is the
// remote endpoint, not the username: lockout applies pre-authentication.
func (s *Session) identity() string {
	return s.remote
}

// contact formats the remote endpoint as "(host, port)" for directory
// records and user-list responses.
func (s *Session) contact() string {
	host, port, err := net.SplitHostPort(s.remote)
	if err != nil {
		return "(" + s.remote + ")"
	}
	return "(" + host + ", " + port + ")"
}

// run drives the session through its lifetime: login handshake, then the
// command loop. Any read or write failure ends the session; cleanup happens
// exactly once in terminate.
func (s *Session) run() {
	defer s.terminate()

	debugLog.Printf("session %s: new connection from %s", s.ID, s.remote)

	if err := s.authenticate(); err != nil {
		debugLog.Printf("session %s: connection lost during login: %v", s.ID, err)
		return
	}
	s.commandLoop()
}

// prompt sends a server-initiated frame and waits for the client's reply.
func (s *Session) prompt(text string) (string, error) {
	if err := s.conn.WriteFrame(text); err != nil {
		return "", err
	}
	return s.conn.ReadFrame()
}

// authenticate runs the login handshake until the session is Authenticated.
// Returns an error only for connection failures; bad credentials retry in
// place, bounded by the lockout mechanism.
func (s *Session) authenticate() error {
	for s.state == StateUnauthenticated {
		if s.srv.lockouts.IsLocked(s.identity()) {
			// Locked out: consume whatever arrives and refuse to advance.
			if _, err := s.conn.ReadFrame(); err != nil {
				return err
			}
			if err := s.conn.WriteFrame("Please try again later."); err != nil {
				return err
			}
			continue
		}

		username, err := s.prompt("Please enter username:")
		if err != nil {
			return err
		}
		password, err := s.prompt("Please enter password:")
		if err != nil {
			return err
		}

		ok, err := s.srv.credentials.Verify(username, password)
		if err != nil {
			errorLog.Printf("session %s: credential check failed: %v", s.ID, err)
			ok = false
		}
		if !ok {
			if err := s.failedLogin(); err != nil {
				return err
			}
			continue
		}

		// Verified. Ask for the client's reachable contact endpoint before
		// registering.
		reply, err := s.prompt("LOGIN_SUCCEEDED")
		if err != nil {
			return err
		}
		udpPort, perr := strconv.Atoi(strings.TrimSpace(reply))
		if perr != nil || udpPort < 1 || udpPort > 65535 {
			if err := s.conn.WriteFrame("Error: invalid contact endpoint"); err != nil {
				return err
			}
			continue
		}

		rec := &UserRecord{
			Username: username,
			Contact:  s.contact(),
			UDPPort:  udpPort,
			JoinedAt: time.Now(),
			Out:      s.conn,
		}
		if err := s.srv.directory.Register(rec); err != nil {
			// Duplicate concurrent login. Not a credential failure, so the
			// lockout counter is untouched.
			if err := s.conn.WriteFrame(fmt.Sprintf("Error: %s is already logged in", username)); err != nil {
				return err
			}
			continue
		}

		s.srv.lockouts.ClearFailures(s.identity())
		s.username = username
		s.state = StateAuthenticated
		s.srv.metrics.RecordLogin(true)
		s.srv.writeUserSnapshot()

		debugLog.Printf("session %s: user %s verified from %s", s.ID, username, s.remote)
		if err := s.conn.WriteFrame("Welcome " + username); err != nil {
			return err
		}
	}
	return nil
}

// failedLogin records one bad credential attempt and escalates to a lockout
// once the configured maximum of consecutive failures is reached.
func (s *Session) failedLogin() error {
	s.srv.metrics.RecordLogin(false)
	failures := s.srv.lockouts.RecordFailure(s.identity())

	if err := s.conn.WriteFrame("Wrong username or password"); err != nil {
		return err
	}

	if failures >= s.srv.config.MaxLoginAttempts {
		blockSecs := s.srv.config.LoginBlockSeconds
		if err := s.conn.WriteFrame(fmt.Sprintf("max attempts reached please wait for %d seconds", blockSecs)); err != nil {
			return err
		}
		s.srv.lockouts.Lock(s.identity(), time.Duration(blockSecs)*time.Second)
		s.srv.metrics.RecordLockout()
		debugLog.Printf("session %s: %s locked out for %ds", s.ID, s.identity(), blockSecs)
	}
	return nil
}

// commandLoop reads one command per cycle and dispatches it. Only the
// logout handler ends the loop deliberately; everything else ends it via
// read/write failure.
func (s *Session) commandLoop() {
	for s.state == StateAuthenticated {
		if err := s.conn.WriteFrame(menuPrompt); err != nil {
			return
		}
		line, err := s.conn.ReadFrame()
		if err != nil {
			debugLog.Printf("session %s: %s disconnected: %v", s.ID, s.username, err)
			return
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			if werr := s.conn.WriteFrame("Error, Invalid command!"); werr != nil {
				return
			}
			continue
		}

		s.srv.metrics.RecordCommand(cmd.Action)
		debugLog.Printf("%s issued %s command", s.username, cmd.Action)

		if err := s.dispatch(cmd); err != nil {
			return
		}
	}
}

// terminate finalizes the session: the directory entry is released, the
// connection closed, the session dropped from the server's table. Safe to
// reach from any state; runs exactly once per session goroutine.
func (s *Session) terminate() {
	if s.state == StateAuthenticated {
		s.srv.directory.Remove(s.username)
		s.srv.writeUserSnapshot()
		debugLog.Printf("session %s: released directory entry for %s", s.ID, s.username)
	}
	s.state = StateTerminated
	s.conn.Close()
	s.srv.sessions.remove(s.ID)
}

// sessionTable tracks live sessions so the server can close them all on
// shutdown and keep the active-session gauge current.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	metrics  *Metrics
}

func newSessionTable(metrics *Metrics) *sessionTable {
	return &sessionTable{
		sessions: make(map[uuid.UUID]*Session),
		metrics:  metrics,
	}
}

func (t *sessionTable) add(sess *Session) {
	t.mu.Lock()
	t.sessions[sess.ID] = sess
	count := len(t.sessions)
	t.mu.Unlock()

	t.metrics.RecordActiveSessions(count)
}

func (t *sessionTable) remove(id uuid.UUID) {
	t.mu.Lock()
	delete(t.sessions, id)
	count := len(t.sessions)
	t.mu.Unlock()

	t.metrics.RecordActiveSessions(count)
}

func (t *sessionTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *sessionTable) closeAll() {
	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, sess := range t.sessions {
		sessions = append(sessions, sess)
	}
	t.mu.Unlock()

	// Closing the connections makes each session goroutine fall out of its
	// read loop and clean up after itself.
	for _, sess := range sessions {
		sess.conn.Close()
	}
}
