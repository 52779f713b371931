package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SkillXChange/internal/event"
	"SkillXChange/internal/model"
)

var (
	writeWait      = 10 * time.Second
	pongWait       = 20 * time.Second
	pingInterval   = (pongWait * 9) / 10
	sendBufSize    = 64
	maxMessageSize = 64 * 1024
)

// Hub tracks connected stub clients and their room memberships and turns
// inbound client events into persisted state plus server pushes, the way the
// production communication service does.
type Hub struct {
	store  *Store
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	rooms   map[model.ID]map[*hubClient]struct{}
}

type hubClient struct {
	id     string
	userID model.ID
	conn   *websocket.Conn
	egress chan event.Envelope
	once   sync.Once
}

func NewHub(store *Store, logger *zap.Logger) *Hub {
	return &Hub{
		store:   store,
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
		rooms:   make(map[model.ID]map[*hubClient]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev stub only
}

// ServeWS upgrades the request and runs the client's pumps until disconnect.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID model.ID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		egress: make(chan event.Envelope, sendBufSize),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("client connected",
		zap.String("client_id", client.id),
		zap.String("user_id", userID.String()))

	go h.writePump(client)
	go h.readPump(client)
}

// Stop closes every connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
	}
}

func (h *Hub) readPump(client *hubClient) {
	defer h.removeClient(client)

	client.conn.SetReadLimit(int64(maxMessageSize))
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env event.Envelope
		if err := client.conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				h.logger.Debug("client read ended", zap.String("client_id", client.id), zap.Error(err))
			}
			return
		}
		h.handleEvent(client, env)
	}
}

func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case env, ok := <-client.egress:
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleEvent(client *hubClient, env event.Envelope) {
	switch env.Event {
	case event.EventJoinConversation:
		var conversationID model.ID
		if err := json.Unmarshal(env.Payload, &conversationID); err != nil {
			h.logger.Warn("bad join payload", zap.Error(err))
			return
		}
		h.joinRoom(client, conversationID)

	case event.EventSendMessage:
		var payload event.SendMessagePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			h.logger.Warn("bad send payload", zap.Error(err))
			return
		}
		message, err := h.store.AppendMessage(payload.ConversationID, client.userID, payload.Content)
		if err != nil {
			h.logger.Warn("message rejected", zap.Error(err))
			return
		}
		h.broadcast(payload.ConversationID, event.EventReceiveMessage, message, nil)

	case event.EventTypingStart:
		h.relayTyping(client, env.Payload, event.EventParticipantTyping)

	case event.EventTypingStop:
		h.relayTyping(client, env.Payload, event.EventParticipantStoppedTyping)

	default:
		h.logger.Debug("unknown event", zap.String("event", env.Event))
	}
}

// joinRoom is idempotent: joining a room twice leaves a single membership.
// Joining marks the conversation read for that user and pushes the receipt,
// so another open client of the same account clears its badge.
func (h *Hub) joinRoom(client *hubClient, conversationID model.ID) {
	h.mu.Lock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*hubClient]struct{})
		h.rooms[conversationID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()

	if err := h.store.MarkConversationRead(conversationID, client.userID); err != nil {
		return
	}
	h.broadcast(conversationID, event.EventMessagesRead, event.MessagesRead{
		ConversationID: conversationID,
		ReadBy:         client.userID,
	}, nil)
}

func (h *Hub) relayTyping(client *hubClient, payload json.RawMessage, outbound string) {
	var typing event.TypingPayload
	if err := json.Unmarshal(payload, &typing); err != nil {
		return
	}
	h.broadcast(typing.ConversationID, outbound, event.ParticipantTyping{
		ConversationID: typing.ConversationID,
		UserID:         client.userID,
	}, client)
}

// broadcast delivers an event to every client in a room, skipping exclude
// when set. Delivery is best-effort: a full egress drops the frame.
func (h *Hub) broadcast(conversationID model.ID, name string, payload any, exclude *hubClient) {
	env, err := event.NewEnvelope(name, payload)
	if err != nil {
		h.logger.Error("failed to encode push", zap.String("event", name), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		if client != exclude {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.egress <- env:
		default:
			h.logger.Warn("egress full, push dropped",
				zap.String("client_id", client.id),
				zap.String("event", name))
		}
	}
}

func (h *Hub) removeClient(client *hubClient) {
	h.mu.Lock()
	delete(h.clients, client)
	for id, room := range h.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
	h.mu.Unlock()
	client.close()
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.egress)
	})
}
