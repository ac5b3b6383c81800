package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-audio/internal/device"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-audio/internal/monitor"
)

// WebSocket constants.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks WebSocket clients and fans out channel events to them.
// It satisfies the monitor's Broadcaster.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	// send is closed by the hub exactly once, by whichever of Unregister
	// and closeAll removes the client.
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}

	// clientID is the API client the ticket was issued to, empty when
	// authentication is disabled.
	clientID string

	// snapshot lists current device states for a new device.state
	// subscriber. May be nil.
	snapshot func() []device.Status
}

// Origins are checked by the CORS middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger.Component("websocket"),
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client_id", client.clientID, "clients", n)
}

// Unregister removes client and closes its send channel. Repeated calls
// are no-ops.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if present {
		close(client.send)
		h.logger.Debug("websocket client disconnected", "client_id", client.clientID, "clients", n)
	}
}

// Broadcast queues an event for every client subscribed to channel.
// Slow clients lose messages rather than stall the caller.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := eventMessage(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	recipients := h.subscribers(channel)
	for _, client := range recipients {
		client.trySend(data)
	}
	if len(recipients) > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", len(recipients))
	}
}

// subscribers copies the clients subscribed to channel so no hub lock is
// held while sending.
func (h *Hub) subscribers(channel string) []*WSClient {
	h.mu.RLock()
	all := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		all = append(all, client)
	}
	h.mu.RUnlock()

	return slices.DeleteFunc(all, func(c *WSClient) bool { return !c.isSubscribed(channel) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll drops every client; their write pumps see the closed channel
// and send a close frame.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

func secondsOr(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

func (h *Hub) pingInterval() time.Duration {
	return secondsOr(h.cfg.PingInterval, defaultPingInterval)
}

func (h *Hub) pongTimeout() time.Duration {
	return secondsOr(h.cfg.PongTimeout, defaultPongTimeout)
}

// eventMessage encodes a server-pushed event on channel.
func eventMessage(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// authorizeWS consumes the ticket of an upgrade request. With auth disabled
// every request is accepted anonymously.
func (s *Server) authorizeWS(w http.ResponseWriter, r *http.Request) (ticketEntry, bool) {
	if s.issuer == nil {
		return ticketEntry{}, true
	}
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return ticketEntry{}, false
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
	}
	return entry, ok
}

// handleWebSocket upgrades GET /ws. The ticket comes from POST /auth/ws-ticket
// so bearer tokens never appear in URLs.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.authorizeWS(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		clientID:      entry.clientID,
	}
	if s.monitor != nil {
		client.snapshot = s.monitor.Statuses
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump handles inbound frames until the connection fails, then
// unregisters the client. Any frame or pong extends the read deadline.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if limit := c.hub.cfg.MaxMessageSize; limit > 0 {
		c.conn.SetReadLimit(int64(limit))
	}
	alive := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pingInterval() + c.hub.pongTimeout()))
	}
	alive() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return alive() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.clientID, "error", err)
			}
			return
		}
		alive() //nolint:errcheck // as above
		c.handleMessage(data)
	}
}

// writePump is the only writer on the connection. It drains send and pings
// on the hub interval; a closed send channel ends the connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongTimeout())) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// wsInbound is a client frame with the payload left raw for the handler.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c *WSClient) handleMessage(data []byte) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe adds channels. The first subscription to the device state
// channel is followed by one event per known device.
func (c *WSClient) handleSubscribe(msg wsInbound) {
	channels, ok := c.parseChannels(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	_, hadState := c.subscriptions[monitor.ChannelDeviceState]
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "client_id", c.clientID, "channels", channels)
	c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	if hadState || c.snapshot == nil || !slices.Contains(channels, monitor.ChannelDeviceState) {
		return
	}
	for _, st := range c.snapshot() {
		if data, err := eventMessage(monitor.ChannelDeviceState, st); err == nil {
			c.trySend(data)
		}
	}
}

func (c *WSClient) handleUnsubscribe(msg wsInbound) {
	channels, ok := c.parseChannels(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

// parseChannels returns the channel list of a (un)subscribe frame, or
// answers with an error when it has none.
func (c *WSClient) parseChannels(msg wsInbound) ([]string, bool) {
	var sub WSSubscribePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &sub); err != nil {
			c.sendError(msg.ID, "invalid payload")
			return nil, false
		}
	}
	if len(sub.Channels) == 0 {
		c.sendError(msg.ID, "payload must list channels")
		return nil, false
	}
	return sub.Channels, true
}

// trySend queues data without blocking. A full buffer drops the message and
// a channel closed by the hub is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// reply sends a message correlated with request id.
func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.trySend(data)
	}
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
