package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
)

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingPeriod      time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingPeriod:      54 * time.Second, // must be less than PongTimeout
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// WebSocketMessage is both the client command and the server push frame.
type WebSocketMessage struct {
	ID            string          `json:"id,omitempty"`
	Type          string          `json:"type"`
	ApplicationID *uuid.UUID      `json:"application_id,omitempty"`
	Event         *workflow.Event `json:"event,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

const (
	messageTypeSubscribe   = "subscribe"
	messageTypeUnsubscribe = "unsubscribe"
	messageTypeSubscribed  = "subscribed"
	messageTypeEvent       = "event"
	messageTypeError       = "error"
	messageTypeConnected   = "connected"
)

type wsClient struct {
	id    uuid.UUID
	actor authz.Actor
	conn  *websocket.Conn
	send  chan []byte
	hub   *EventHub

	mu            sync.RWMutex
	subscriptions map[uuid.UUID]struct{}
}

// wants reports whether the client should receive the event. Staff see every
// transition; applicants see their own actions and the applications they
// subscribed to.
func (c *wsClient) wants(e *workflow.Event) bool {
	if c.actor.Role != authz.RoleApplicant {
		return true
	}
	if e.ActorID == c.actor.ID {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[e.ApplicationID]
	return ok
}

// EventHub pushes committed workflow events to connected clients. It
// implements workflow.Publisher and never blocks the publishing service.
type EventHub struct {
	auth   *Authenticator
	apps   ApplicationService
	config WebSocketConfig
	logger *slog.Logger
	tracer trace.Tracer

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan *workflow.Event
	done       chan struct{}
	closeOnce  sync.Once

	mu      sync.RWMutex
	clients map[uuid.UUID]*wsClient
}

func NewEventHub(auth *Authenticator, apps ApplicationService, config WebSocketConfig, logger *slog.Logger) *EventHub {
	h := &EventHub{
		auth:       auth,
		apps:       apps,
		config:     config,
		logger:     logger,
		tracer:     otel.Tracer("api.rest.websocket"),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan *workflow.Event, 256),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID]*wsClient),
	}
	go h.run()
	return h
}

func (h *EventHub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client registered", "client_id", c.id, "user_id", c.actor.ID, "total_clients", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			h.deliver(e)

		case <-h.done:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish queues the event for delivery, dropping it when the hub is saturated.
func (h *EventHub) Publish(ctx context.Context, e *workflow.Event) {
	select {
	case h.broadcast <- e:
	case <-h.done:
	default:
		h.logger.WarnContext(ctx, "websocket broadcast buffer full, dropping event", "event_type", e.Type, "event_id", e.ID)
	}
}

// Close disconnects all clients and stops the hub.
func (h *EventHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ConnectedClients returns the number of live connections.
func (h *EventHub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) deliver(e *workflow.Event) {
	data, err := json.Marshal(WebSocketMessage{
		ID:        e.ID.String(),
		Type:      messageTypeEvent,
		Event:     e,
		Timestamp: e.OccurredAt,
	})
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wants(e) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client send buffer full", "client_id", c.id)
		}
	}
}

// ServeHTTP authenticates with the token query parameter, since browsers
// cannot set headers on the upgrade request, and upgrades the connection.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "websocket.connect")
	defer span.End()

	token := r.URL.Query().Get("token")
	if token == "" {
		if raw, err := extractToken(r); err == nil {
			token = raw
		}
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	actor, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "websocket authentication failed", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  h.config.ReadBufferSize,
		WriteBufferSize: h.config.WriteBufferSize,
		CheckOrigin:     h.config.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		id:            uuid.New(),
		actor:         actor,
		conn:          conn,
		send:          make(chan []byte, h.config.SendBuffer),
		hub:           h,
		subscriptions: make(map[uuid.UUID]struct{}),
	}
	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	if hello, err := json.Marshal(WebSocketMessage{Type: messageTypeConnected, Timestamp: time.Now().UTC()}); err == nil {
		c.send <- hello
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
	span.SetAttributes(
		attribute.String("client_id", c.id.String()),
		attribute.String("user_id", actor.ID.String()),
		attribute.String("user_role", actor.Role.String()),
	)
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err, "client_id", c.id)
			}
			return
		}
		c.handle(&msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.hub.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(msg *WebSocketMessage) {
	switch msg.Type {
	case messageTypeSubscribe:
		if msg.ApplicationID == nil {
			c.reply(WebSocketMessage{ID: msg.ID, Type: messageTypeError, Error: "application_id is required"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.hub.config.WriteTimeout)
		defer cancel()
		// visibility follows the same rules as GET /applications/{id}
		if _, err := c.hub.apps.Get(ctx, c.actor, *msg.ApplicationID); err != nil {
			c.reply(WebSocketMessage{ID: msg.ID, Type: messageTypeError, ApplicationID: msg.ApplicationID, Error: "cannot subscribe to application"})
			return
		}
		c.mu.Lock()
		c.subscriptions[*msg.ApplicationID] = struct{}{}
		c.mu.Unlock()
		c.reply(WebSocketMessage{ID: msg.ID, Type: messageTypeSubscribed, ApplicationID: msg.ApplicationID})

	case messageTypeUnsubscribe:
		if msg.ApplicationID != nil {
			c.mu.Lock()
			delete(c.subscriptions, *msg.ApplicationID)
			c.mu.Unlock()
		}

	default:
		c.reply(WebSocketMessage{ID: msg.ID, Type: messageTypeError, Error: "unknown message type"})
	}
}

// reply queues a direct message to this client.
func (c *wsClient) reply(msg WebSocketMessage) {
	msg.Timestamp = time.Now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
