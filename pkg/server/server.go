package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
)

// Server accepts incoming connections and spawns one Session per
// connection; it is otherwise inert. It owns the shared structures every
// session mutates (directory, group registry, lockout tracker) so nothing
// lives at package scope; lifecycle is tied to Start/Stop.
type Server struct {
	config      Config
	listener    net.Listener
	wsListener  net.Listener
	metricsLn   net.Listener
	wsServer    *http.Server
	metricsSrv  *http.Server
	directory   *Directory
	groups      *GroupRegistry
	lockouts    *LockoutTracker
	router      *MessageRouter
	credentials CredentialStore
	userLog     *AuditLog
	sessions    *sessionTable
	metrics     *Metrics
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// NewServer wires up a server from configuration. Nothing is listening
// until Start.
func NewServer(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	metrics := NewMetrics()
	directory := NewDirectory()
	directLog := NewAuditLog(filepath.Join(config.DataDir, "messagelog.txt"))
	userLog := NewAuditLog(filepath.Join(config.DataDir, "userlog.txt"))
	groups := NewGroupRegistry(func(groupName string) *AuditLog {
		return NewAuditLog(filepath.Join(config.DataDir, groupName+"_messagelog.txt"))
	})

	return &Server{
		config:      config,
		directory:   directory,
		groups:      groups,
		lockouts:    NewLockoutTracker(),
		router:      NewMessageRouter(directory, directLog, metrics),
		credentials: NewFileCredentials(config.CredentialsPath),
		userLog:     userLog,
		sessions:    newSessionTable(metrics),
		metrics:     metrics,
		shutdown:    make(chan struct{}),
	}, nil
}

// EnableDebugLogging turns on per-session debug logging to stderr.
func (s *Server) EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.LstdFlags)
	debugLog.Println("Debug logging enabled")
}

// Start begins listening for TCP (and optionally WebSocket) connections and
// starts the background loops.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.TCPPort))
	if err != nil {
		return fmt.Errorf("failed to listen on :%d: %w", s.config.TCPPort, err)
	}
	s.listener = listener
	log.Printf("Listening on %s", listener.Addr())

	if s.config.WSPort > 0 {
		if err := s.startWebSocketServer(); err != nil {
			s.listener.Close()
			return err
		}
	}

	if s.config.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			s.Stop()
			return err
		}
	}

	s.wg.Add(1)
	go s.metricsLoggingLoop()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the TCP listener's address (useful when the configured port
// is 0).
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop gracefully stops the server: no new connections, all sessions
// closed, background loops drained.
func (s *Server) Stop() error {
	log.Println("Graceful shutdown initiated...")

	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	if s.wsServer != nil {
		s.wsServer.Close()
		s.wsServer = nil
	}
	if s.metricsSrv != nil {
		s.metricsSrv.Close()
		s.metricsSrv = nil
	}

	// Closing the connections ends every session goroutine; each one
	// releases its own directory entry on the way out.
	s.sessions.closeAll()

	s.wg.Wait()
	log.Println("Graceful shutdown complete")
	return nil
}

// acceptLoop accepts incoming TCP connections until shutdown.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				errorLog.Printf("Accept error: %v", err)
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// handleConnection runs one session for the lifetime of the connection.
func (s *Server) handleConnection(conn net.Conn) {
	// Disable Nagle's algorithm for immediate sends
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	sess := newSession(s, NewSafeConn(conn))
	s.sessions.add(sess)
	sess.run()
}

// writeUserSnapshot replaces the persisted active-user snapshot with the
// directory's current contents. Called after every registration and
// removal.
func (s *Server) writeUserSnapshot() {
	if err := s.userLog.WriteSnapshot(s.directory.Snapshot()); err != nil {
		errorLog.Printf("write user snapshot: %v", err)
	}
}

// startWebSocketServer starts the HTTP listener that upgrades /ws requests
// into sessions carrying the same text frames as TCP.
func (s *Server) startWebSocketServer() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.WSPort))
	if err != nil {
		return fmt.Errorf("failed to listen on ws port :%d: %w", s.config.WSPort, err)
	}
	s.wsListener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.wsServer = &http.Server{Handler: mux}

	log.Printf("WebSocket server listening on %s (/ws)", ln.Addr())
	go func() {
		if err := s.wsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorLog.Printf("WebSocket server error: %v", err)
		}
	}()
	return nil
}

// WSAddr returns the WebSocket listener's address, or nil when disabled.
func (s *Server) WSAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errorLog.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sess := newSession(s, newWSConn(ws))
	s.sessions.add(sess)
	sess.run()
}

// startMetricsServer exposes /metrics on an internal port. Never expose it
// publicly.
func (s *Server) startMetricsServer() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.MetricsPort))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port :%d: %w", s.config.MetricsPort, err)
	}
	s.metricsLn = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsSrv = &http.Server{Handler: mux}

	log.Printf("Metrics server listening on %s (/metrics) - INTERNAL ONLY", ln.Addr())
	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorLog.Printf("Metrics server error: %v", err)
		}
	}()
	return nil
}

// metricsLoggingLoop periodically logs key runtime numbers.
func (s *Server) metricsLoggingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			log.Printf("[METRICS] Active sessions: %d, goroutines: %d",
				s.sessions.count(), runtime.NumGoroutine())
		}
	}
}
