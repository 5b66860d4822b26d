// Package dashboard provides the local HTTP/WebSocket server the web
// client talks to.
//
// The server broadcasts calendar snapshots, task board changes and
// connection status to connected WebSocket clients, and exposes a JSON
// API for every mutation so the browser never talks to Google directly.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/soulsync-app/soulsync/internal/assistant"
	"github.com/soulsync-app/soulsync/internal/bridge"
	"github.com/soulsync-app/soulsync/internal/reconcile"
	"github.com/soulsync-app/soulsync/internal/session"
	"github.com/soulsync-app/soulsync/internal/settings"
	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeEvents carries a full published events snapshot
	MessageTypeEvents MessageType = "events_snapshot"

	// MessageTypeCollection carries a full snapshot of a store collection
	MessageTypeCollection MessageType = "collection_snapshot"

	// MessageTypeStatus carries connection and sync state
	MessageTypeStatus MessageType = "status"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type       MessageType     `json:"type"`
	Collection string          `json:"collection,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Server manages WebSocket connections and the JSON API
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	reconciler *reconcile.Reconciler
	tasks      *bridge.Bridge
	store      *store.Store
	session    *session.Controller
	settings   *settings.Store
	assistant  *assistant.Assistant

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: 127.0.0.1:8787)
	Addr string

	Reconciler *reconcile.Reconciler
	Tasks      *bridge.Bridge
	Store      *store.Store
	Session    *session.Controller
	Settings   *settings.Store
	Assistant  *assistant.Assistant

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new dashboard server
func NewServer(config Config) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8787"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:       config.Addr,
		reconciler: config.Reconciler,
		tasks:      config.Tasks,
		store:      config.Store,
		session:    config.Session,
		settings:   config.Settings,
		assistant:  config.Assistant,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Message, 100),
		ctx:        ctx,
		cancel:     cancel,
		logger:     config.Logger,
	}

	s.reconciler.OnEvents(func(events []types.CalendarEvent) {
		data, err := json.Marshal(events)
		if err != nil {
			s.logger.Printf("Failed to marshal events snapshot: %v", err)
			return
		}
		s.Broadcast(Message{Type: MessageTypeEvents, Data: data})
	})
	s.reconciler.OnStatus(func(status reconcile.Status) {
		data, err := json.Marshal(status)
		if err != nil {
			return
		}
		s.Broadcast(Message{Type: MessageTypeStatus, Data: data})
	})

	return s
}

// Start begins the HTTP server, WebSocket handler and store forwarders
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.registerAPI(mux)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Forward live store snapshots to WebSocket clients
	for _, col := range []store.Collection{
		store.CollectionTasks,
		store.CollectionReflections,
		store.CollectionDinnerPlans,
	} {
		s.forwardCollection(col)
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// forwardCollection relays store change snapshots onto the broadcast channel
func (s *Server) forwardCollection(col store.Collection) {
	ch, cancel := s.store.Subscribe(col)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		for {
			select {
			case <-s.ctx.Done():
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(snap.Items)
				if err != nil {
					s.logger.Printf("Failed to marshal %s snapshot: %v", col, err)
					continue
				}
				s.Broadcast(Message{
					Type:       MessageTypeCollection,
					Collection: string(col),
					Data:       data,
				})
			}
		}
	}()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock to avoid blocking broadcasts
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Local-only server; browser client origin varies
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// New clients get the current state immediately
	s.sendInitialState(conn)

	go s.readLoop(conn)
}

// sendInitialState pushes the current snapshots to a fresh connection
func (s *Server) sendInitialState(conn *websocket.Conn) {
	write := func(msg Message) {
		msg.Timestamp = time.Now()
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Write(ctx, websocket.MessageText, data)
	}

	if status, err := json.Marshal(s.reconciler.Status()); err == nil {
		write(Message{Type: MessageTypeStatus, Data: status})
	}
	if events, err := json.Marshal(s.reconciler.Events()); err == nil {
		write(Message{Type: MessageTypeEvents, Data: events})
	}
	if tasks, err := s.tasks.Tasks(s.ctx); err == nil {
		if data, err := json.Marshal(tasks); err == nil {
			write(Message{Type: MessageTypeCollection, Collection: string(store.CollectionTasks), Data: data})
		}
	}
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Clients are listen-only; mutations go through the JSON API
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>SoulSync</title>
</head>
<body>
    <h1>SoulSync Server</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect the web client to this address for the shared calendar and board.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
