package models

// Realtime gateway event names.
const (
	EventJoinConversation        = "join_conversation"
	EventLeaveConversation       = "leave_conversation"
	EventCreateConversation      = "create_conversation"
	EventCreateGroupConversation = "create_group_conversation"
	EventSendMessage             = "send_message"
	EventMarkAsRead              = "mark_as_read"
	EventTypingStart             = "typing_start"
	EventTypingStop              = "typing_stop"

	EventConversationCreated = "conversation_created"
	EventNewMessage          = "new_message"
	EventMessagesRead        = "messages_read"
	EventUserTyping          = "user_typing"
	EventError               = "error"
)

// MessagesRead notifies a room that a participant read its messages.
type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// UserTyping is the typing indicator broadcast.
type UserTyping struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload is the scoped error event delivered to the originating
// connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
