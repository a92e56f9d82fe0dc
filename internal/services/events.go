package services

// Realtime event names as seen by clients
const (
	EventNewMessage     = "newMessage"
	EventUserTyping     = "userTyping"
	EventUserStopTyping = "userStopTyping"
	EventMessagesRead   = "messagesRead"
)

// Publisher pushes an event to one user's private channel. Implementations
// must not block the caller and give no delivery guarantee: if the user is
// offline the event is gone, and stored state stays the source of truth.
type Publisher interface {
	Publish(userID, event string, payload interface{})
}

type NewMessageEvent struct {
	ConversationID string      `json:"conversationId"`
	Message        MessageView `json:"message"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MessagesReadEvent struct {
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, interface{}) {}
