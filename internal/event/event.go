package event

import (
	"encoding/json"

	"SkillXChange/internal/model"
)

// Outbound events emitted by the client.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
)

// Inbound events pushed by the communication service.
const (
	EventReceiveMessage           = "receive_message"
	EventParticipantTyping        = "participant_typing"
	EventParticipantStoppedTyping = "participant_stopped_typing"
	EventMessagesRead             = "messages_read"
	EventNewNotification          = "new_notification"
	EventNotificationsUpdated     = "notifications_updated"
)

// Envelope is the wire frame for every socket event in either direction.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope for the named event.
func NewEnvelope(name string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: name, Payload: raw}, nil
}

// SendMessagePayload is the body of a send_message emission.
type SendMessagePayload struct {
	ConversationID model.ID `json:"conversationId"`
	Content        string   `json:"content"`
}

// TypingPayload is the body of typing_start and typing_stop emissions.
type TypingPayload struct {
	ConversationID model.ID `json:"conversationId"`
}

// ParticipantTyping is the body of participant_typing and
// participant_stopped_typing pushes.
type ParticipantTyping struct {
	ConversationID model.ID `json:"conversationId"`
	UserID         model.ID `json:"userId"`
}

// MessagesRead is pushed when a user's messages in a conversation were marked
// read, possibly from another client of the same account.
type MessagesRead struct {
	ConversationID model.ID `json:"conversationId"`
	ReadBy         model.ID `json:"readBy"`
}

// NotificationsUpdated is pushed when the server mutates the notification
// feed out of band, e.g. clearing entries related to an entity.
type NotificationsUpdated struct {
	Action    string   `json:"action"`
	RelatedID model.ID `json:"relatedId"`
	Type      string   `json:"type"`
}

// ActionClearRelated removes all notifications matching (relatedId, type).
const ActionClearRelated = "clear_related"
