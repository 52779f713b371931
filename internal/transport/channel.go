package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SkillXChange/internal/auth"
	"SkillXChange/internal/event"
	"SkillXChange/internal/model"
)

var (
	// tuning parameters
	writeWait    = 10 * time.Second    // time allowed to write a frame to the peer
	pongWait     = 20 * time.Second    // time allowed to read the next pong from the peer
	pingInterval = (pongWait * 9) / 10 // send pings with this period
	sendBufSize  = 256                 // outbound buffer size
	sendTimeout  = 2 * time.Second     // timeout for enqueuing outbound frames
	dialTimeout  = 10 * time.Second
)

// Handler receives the raw payload of a named server-pushed event.
type Handler func(payload json.RawMessage)

// Channel owns the single persistent websocket connection to the
// communication service. It is constructed once per Container and shared by
// reference; emissions are fire-and-forget and inbound events fan out to
// subscribers in server send order.
type Channel struct {
	url      string
	tokens   auth.TokenSource
	logger   *zap.Logger
	clientID string

	mu     sync.Mutex
	conn   *websocket.Conn
	egress chan event.Envelope
	ctx    context.Context
	cancel context.CancelFunc

	subMu   sync.RWMutex
	subs    map[string]map[int]Handler
	nextSub int
}

func NewChannel(url string, tokens auth.TokenSource, logger *zap.Logger) *Channel {
	return &Channel{
		url:      url,
		tokens:   tokens,
		logger:   logger,
		clientID: uuid.New().String(),
		subs:     make(map[string]map[int]Handler),
	}
}

// Connect dials the communication service. It is idempotent: a no-op while a
// connection is up. Without an access token it logs and returns without
// dialing; connection failures are logged, never surfaced to callers.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return
	}

	token := c.tokens.AccessToken()
	if token == "" {
		c.logger.Warn("cannot connect socket: no access token",
			zap.String("client_id", c.clientID))
		return
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(c.url, header)
	if err != nil {
		c.logger.Error("socket connection error",
			zap.String("url", c.url),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.egress = make(chan event.Envelope, sendBufSize)
	c.ctx = ctx
	c.cancel = cancel

	go c.readPump(conn, ctx)
	go c.writePump(conn, ctx, c.egress)

	c.logger.Info("socket connected",
		zap.String("url", c.url),
		zap.String("client_id", c.clientID))
}

// Disconnect tears down the connection and releases the handle. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked("disconnect requested")
}

// Connected reports whether a connection is currently held.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// JoinConversation emits a room-join signal. No acknowledgement is awaited;
// room membership is idempotent server-side, so repeat calls are safe.
func (c *Channel) JoinConversation(conversationID model.ID) {
	c.emit(event.EventJoinConversation, conversationID)
}

// SendMessage emits a message without awaiting a response. Confirmation
// arrives asynchronously as a receive_message push that echoes the persisted
// message back to the sender's open thread.
func (c *Channel) SendMessage(conversationID model.ID, content string) {
	c.emit(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conversationID,
		Content:        content,
	})
}

func (c *Channel) StartTyping(conversationID model.ID) {
	c.emit(event.EventTypingStart, event.TypingPayload{ConversationID: conversationID})
}

func (c *Channel) StopTyping(conversationID model.ID) {
	c.emit(event.EventTypingStop, event.TypingPayload{ConversationID: conversationID})
}

// Subscribe registers a handler for a named server-pushed event and returns
// the capability that removes exactly that handler. Multiple handlers per
// event are supported. Subscribing while disconnected logs a warning and
// registers nothing; events are not queued.
func (c *Channel) Subscribe(name string, handler Handler) (unsubscribe func()) {
	if !c.Connected() {
		c.logger.Warn("socket not connected, subscription dropped",
			zap.String("event", name))
		return func() {}
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextSub++
	key := c.nextSub
	if c.subs[name] == nil {
		c.subs[name] = make(map[int]Handler)
	}
	c.subs[name][key] = handler

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if handlers, ok := c.subs[name]; ok {
			delete(handlers, key)
			if len(handlers) == 0 {
				delete(c.subs, name)
			}
		}
	}
}

func (c *Channel) emit(name string, payload any) {
	env, err := event.NewEnvelope(name, payload)
	if err != nil {
		c.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}

	c.mu.Lock()
	egress := c.egress
	connected := c.conn != nil
	ctx := c.ctx
	c.mu.Unlock()

	if !connected {
		c.logger.Warn("socket not connected, event dropped", zap.String("event", name))
		return
	}

	select {
	case egress <- env:
		// enqueued
	case <-time.After(sendTimeout):
		c.logger.Warn("egress full, event dropped", zap.String("event", name))
	case <-ctx.Done():
		// connection went away while enqueuing
	}
}

func (c *Channel) readPump(conn *websocket.Conn, ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.teardownLocked("read pump exited")
		c.mu.Unlock()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var env event.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.logger.Info("socket disconnected", zap.Error(err))
					return
				}
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.logger.Warn("socket read timed out")
					return
				}
				c.logger.Error("socket read error", zap.Error(err))
				return
			}

			c.dispatch(env)
		}
	}
}

func (c *Channel) writePump(conn *websocket.Conn, ctx context.Context, egress <-chan event.Envelope) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-egress:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				c.logger.Error("socket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Error("socket ping error", zap.Error(err))
				return
			}
		}
	}
}

// dispatch fans an inbound event out to every subscriber, synchronously so a
// single connection preserves server send order.
func (c *Channel) dispatch(env event.Envelope) {
	c.subMu.RLock()
	handlers := make([]Handler, 0, len(c.subs[env.Event]))
	for _, h := range c.subs[env.Event] {
		handlers = append(handlers, h)
	}
	c.subMu.RUnlock()

	for _, h := range handlers {
		h(env.Payload)
	}
}

// teardownLocked closes the connection if one is held. Callers hold c.mu.
func (c *Channel) teardownLocked(reason string) {
	if c.conn == nil {
		return
	}
	c.cancel()
	_ = c.conn.Close()
	c.conn = nil
	c.egress = nil
	c.logger.Info("socket closed",
		zap.String("reason", reason),
		zap.String("client_id", c.clientID))
}
