package state

import "SkillXChange/internal/model"

// Emitter is the outbound slice of the transport channel that the state
// machines drive. All emissions are fire-and-forget.
type Emitter interface {
	JoinConversation(conversationID model.ID)
	SendMessage(conversationID model.ID, content string)
	StartTyping(conversationID model.ID)
	StopTyping(conversationID model.ID)
}
