package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/streamlogic/tslsim/internal/platform/id"
)

const (
	// defaultChannelBufferSize is the buffer size for the per-session request
	// and notification channels. Buffering absorbs short bursts before
	// senders block.
	defaultChannelBufferSize = 10

	// defaultRequestTimeout bounds how long a POST waits for its JSON-RPC
	// response.
	defaultRequestTimeout = 30 * time.Second

	// defaultShutdownTimeout bounds graceful HTTP shutdown. Longer than
	// defaultRequestTimeout so in-flight requests can drain first.
	defaultShutdownTimeout = 35 * time.Second

	// sessionCleanupInterval is how often idle MCP sessions are swept.
	sessionCleanupInterval = 5 * time.Minute

	// sessionExpirationTime is how long an MCP session may stay idle before
	// the sweep closes it.
	sessionExpirationTime = 1 * time.Hour

	// sseHeartbeatInterval is how often an open SSE stream refreshes its
	// session's lastUsed stamp.
	sseHeartbeatInterval = 30 * time.Second

	// sessionReadyTimeout bounds the wait for a session's server goroutine to
	// reach its first Read before request handling continues.
	sessionReadyTimeout = 100 * time.Millisecond
)

// HTTPTransport implements mcp.Transport over HTTP. JSON-RPC requests arrive
// as POST bodies, notifications stream out over SSE, and each client carries
// a server-issued session ID so its simulation state survives across
// round-trips. Session lifecycle is explicit: idle sessions are swept so
// long-lived local clients cannot leak connections.
type HTTPTransport struct {
	addr         string
	server       *mcp.Server
	sessions     map[string]*httpSession
	sessionsMu   sync.RWMutex
	httpServer   *http.Server
	serverCtx    context.Context
	serverCancel context.CancelFunc
	serverOnceMu sync.Mutex
	serverOnce   map[string]*sync.Once
}

// httpSession tracks one MCP client across HTTP round-trips.
type httpSession struct {
	id        string
	conn      *httpConnection
	createdAt time.Time
	lastUsed  time.Time
}

// NewHTTPTransport creates an HTTP transport serving the given MCP server.
// An empty addr binds to localhost only.
func NewHTTPTransport(addr string, server *mcp.Server) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8081"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPTransport{
		addr:         addr,
		server:       server,
		sessions:     make(map[string]*httpSession),
		serverCtx:    ctx,
		serverCancel: cancel,
		serverOnce:   make(map[string]*sync.Once),
	}
}

// Connect implements mcp.Transport. Each call creates a fresh session whose
// connection waits for HTTP requests, so one client identity never bleeds
// into another's request or notification stream.
func (t *HTTPTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	sessionID := newSessionID()

	conn := &httpConnection{
		sessionID:   sessionID,
		reqChan:     make(chan jsonrpc.Message, defaultChannelBufferSize),
		notifyChan:  make(chan jsonrpc.Message, defaultChannelBufferSize),
		closed:      make(chan struct{}),
		ready:       make(chan struct{}, 1),
		pendingReqs: make(map[jsonrpc.ID]chan jsonrpc.Message),
	}

	now := time.Now()
	t.sessionsMu.Lock()
	t.sessions[sessionID] = &httpSession{
		id:        sessionID,
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
	}
	t.sessionsMu.Unlock()

	return conn, nil
}

// Start runs the HTTP server until ctx is cancelled or the listener fails.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serverCtx, t.serverCancel = context.WithCancel(ctx)

	go t.cleanupSessions(ctx)

	mux := http.NewServeMux()

	// POST /mcp/messages - JSON-RPC request/response
	mux.HandleFunc("/mcp/messages", t.handleMessages)

	// GET /mcp/sse - Server-Sent Events stream
	mux.HandleFunc("/mcp/sse", t.handleSSE)

	// GET /mcp/health - Health check endpoint
	mux.HandleFunc("/mcp/health", t.handleHealth)

	t.httpServer = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	log.Printf("serving MCP over HTTP on %s", t.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		// Stop the per-session server goroutines as well.
		t.serverCancel()
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// handleMessages handles POST /mcp/messages. The body is one JSON-RPC
// message; requests block until the matching response is written,
// notifications return immediately. Every message except initialize must
// name an existing session via the Mcp-Session-Id header.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
		return
	}

	isInitialize := false
	if req, ok := msg.(*jsonrpc.Request); ok {
		isInitialize = req.Method == "initialize"
	}

	session, ok := t.sessionForRequest(w, r, isInitialize)
	if !ok {
		return
	}

	t.touchSession(session.id)
	t.ensureServerRunning(session)

	switch v := msg.(type) {
	case *jsonrpc.Request:
		// A zero ID marks a notification in JSON-RPC 2.0.
		if v.ID == (jsonrpc.ID{}) {
			t.deliverNotification(w, r, session, msg)
			return
		}
		t.deliverRequest(w, r, session, v)
	case *jsonrpc.Response:
		http.Error(w, "Invalid message type: response", http.StatusBadRequest)
	default:
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
	}
}

// sessionForRequest resolves the Mcp-Session-Id header to a live session,
// creating one when the message is an initialize request. It writes the
// error response itself and reports false when the request cannot proceed.
func (t *HTTPTransport) sessionForRequest(w http.ResponseWriter, r *http.Request, isInitialize bool) (*httpSession, bool) {
	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	if sessionID != "" {
		t.sessionsMu.RLock()
		session := t.sessions[sessionID]
		t.sessionsMu.RUnlock()
		if session != nil {
			return session, true
		}
		if !isInitialize {
			writeSessionError(w, "Invalid session ID")
			return nil, false
		}
	}
	if !isInitialize {
		writeSessionError(w, "Invalid or missing session ID")
		return nil, false
	}

	conn, err := t.Connect(r.Context())
	if err != nil {
		log.Printf("create MCP session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return nil, false
	}

	t.sessionsMu.RLock()
	session := t.sessions[conn.SessionID()]
	t.sessionsMu.RUnlock()
	if session == nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Mcp-Session-Id", session.id)
	return session, true
}

// deliverRequest forwards one JSON-RPC request to the session's server
// goroutine and blocks until the matching response arrives or the wait
// times out.
func (t *HTTPTransport) deliverRequest(w http.ResponseWriter, r *http.Request, session *httpSession, req *jsonrpc.Request) {
	respChan := make(chan jsonrpc.Message, 1)
	session.conn.addPending(req.ID, respChan)
	defer session.conn.removePending(req.ID)

	select {
	case session.conn.reqChan <- req:
	case <-session.conn.closed:
		http.Error(w, "Session closed", http.StatusGone)
		return
	case <-r.Context().Done():
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		return
	}

	select {
	case resp := <-respChan:
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			log.Printf("encode JSON-RPC response: %v", err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("write JSON-RPC response: %v", err)
		}
	case <-session.conn.closed:
		http.Error(w, "Session closed", http.StatusGone)
	case <-r.Context().Done():
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
	case <-time.After(defaultRequestTimeout):
		http.Error(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// deliverNotification forwards a notification and acknowledges it without a
// body.
func (t *HTTPTransport) deliverNotification(w http.ResponseWriter, r *http.Request, session *httpSession, msg jsonrpc.Message) {
	select {
	case session.conn.reqChan <- msg:
	case <-session.conn.closed:
		http.Error(w, "Session closed", http.StatusGone)
		return
	case <-r.Context().Done():
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSSE handles GET /mcp/sse. The stream carries notifications and
// unmatched responses; request/reply traffic stays on the POST path.
// EventSource clients cannot set custom headers, so the session ID may also
// arrive as a query parameter.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.URL.Query().Get("session"))
	}

	var session *httpSession
	if sessionID != "" {
		t.sessionsMu.RLock()
		session = t.sessions[sessionID]
		t.sessionsMu.RUnlock()
	}
	if session == nil {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	t.touchSession(sessionID)

	// Refresh lastUsed periodically so the sweep does not reap a session
	// with an open stream.
	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.conn.closed:
			return
		case <-ticker.C:
			t.touchSession(sessionID)
		case msg := <-session.conn.notifyChan:
			t.touchSession(sessionID)

			data, err := jsonrpc.EncodeMessage(msg)
			if err != nil {
				log.Printf("encode SSE message: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// handleHealth handles GET /mcp/health for health checks.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (t *HTTPTransport) touchSession(sessionID string) {
	t.sessionsMu.Lock()
	if session := t.sessions[sessionID]; session != nil {
		session.lastUsed = time.Now()
	}
	t.sessionsMu.Unlock()
}

// cleanupSessions sweeps idle sessions until ctx is cancelled.
func (t *HTTPTransport) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionExpirationTime)

			var expired []string
			t.sessionsMu.Lock()
			for sid, session := range t.sessions {
				if session.lastUsed.Before(cutoff) {
					session.conn.Close()
					delete(t.sessions, sid)
					expired = append(expired, sid)
				}
			}
			t.sessionsMu.Unlock()

			t.serverOnceMu.Lock()
			for _, sid := range expired {
				delete(t.serverOnce, sid)
			}
			t.serverOnceMu.Unlock()
		}
	}
}

// ensureServerRunning starts the MCP server goroutine for this session once
// and waits briefly for its first Read so the message about to be delivered
// has a consumer.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}

	t.serverOnceMu.Lock()
	once := t.serverOnce[session.id]
	if once == nil {
		once = &sync.Once{}
		t.serverOnce[session.id] = once
	}
	t.serverOnceMu.Unlock()

	once.Do(func() {
		go func() {
			serverSession, err := t.server.Connect(t.serverCtx, &sessionTransport{conn: session.conn}, nil)
			if err != nil {
				log.Printf("connect MCP session %s: %v", session.id, err)
				return
			}
			_ = serverSession.Wait()
		}()
	})

	select {
	case <-session.conn.ready:
	case <-time.After(sessionReadyTimeout):
		// Readiness will be observed on the first Read instead.
	case <-t.serverCtx.Done():
	}
}

// sessionTransport hands a pre-built connection to the MCP server so one
// server session can be bound to one HTTP session.
type sessionTransport struct {
	conn mcp.Connection
}

// Connect implements mcp.Transport.
func (st *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

// httpConnection implements mcp.Connection for HTTP-based communication.
// The SDK expects a bidirectional stream, so inbound requests, outbound
// responses, and notifications map onto separate buffered channels. Data
// channels are never closed; readers and writers observe the closed signal
// instead.
type httpConnection struct {
	sessionID   string
	reqChan     chan jsonrpc.Message
	notifyChan  chan jsonrpc.Message
	closed      chan struct{}
	ready       chan struct{}
	readyOnce   sync.Once
	mu          sync.Mutex
	closedFlag  bool
	pendingReqs map[jsonrpc.ID]chan jsonrpc.Message
	pendingMu   sync.Mutex
}

// Read implements mcp.Connection. The first call signals readiness so
// request handling knows the session's server goroutine is consuming
// messages.
func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	c.readyOnce.Do(func() {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	})

	select {
	case msg := <-c.reqChan:
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection. Responses with a pending request ID are
// routed to the HTTP request waiting on them; everything else goes to the
// notification channel for SSE delivery.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}

	if resp, ok := msg.(*jsonrpc.Response); ok && resp.ID != (jsonrpc.ID{}) {
		c.pendingMu.Lock()
		respChan := c.pendingReqs[resp.ID]
		c.pendingMu.Unlock()

		if respChan != nil {
			select {
			case respChan <- msg:
				return nil
			case <-c.closed:
				return fmt.Errorf("connection closed")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		// No waiter left for this ID; deliver as a notification.
	}

	select {
	case c.notifyChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements mcp.Connection.
func (c *httpConnection) Close() error {
	c.mu.Lock()
	if c.closedFlag {
		c.mu.Unlock()
		return nil
	}
	c.closedFlag = true
	close(c.closed)
	c.mu.Unlock()

	c.pendingMu.Lock()
	c.pendingReqs = nil
	c.pendingMu.Unlock()

	return nil
}

// SessionID implements mcp.Connection.
func (c *httpConnection) SessionID() string {
	return c.sessionID
}

func (c *httpConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedFlag
}

func (c *httpConnection) addPending(reqID jsonrpc.ID, ch chan jsonrpc.Message) {
	c.pendingMu.Lock()
	if c.pendingReqs != nil {
		c.pendingReqs[reqID] = ch
	}
	c.pendingMu.Unlock()
}

func (c *httpConnection) removePending(reqID jsonrpc.ID) {
	c.pendingMu.Lock()
	if c.pendingReqs != nil {
		delete(c.pendingReqs, reqID)
	}
	c.pendingMu.Unlock()
}

// writeSessionError reports a session failure as a JSON-RPC error payload.
func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	payload := map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    -32000,
			"message": message,
		},
		"id": nil,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Session error"},"id":null}`))
		return
	}
	_, _ = w.Write(data)
}

var sessionCounter atomic.Uint64

// newSessionID returns a fresh MCP session identifier, falling back to a
// timestamp and counter pair when random bytes are unavailable.
func newSessionID() string {
	generated, err := id.NewID()
	if err != nil {
		return fmt.Sprintf("session-%d-%d", time.Now().UnixNano(), sessionCounter.Add(1))
	}
	return generated
}
