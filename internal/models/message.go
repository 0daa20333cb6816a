package models

import "time"

// Message is a single message inside a conversation. Immutable once created
// except for the IsRead flag, which only transitions false to true.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	Content        string    `db:"content" json:"content"`
	IsRead         bool      `db:"is_read" json:"isRead"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`

	Sender *User `db:"-" json:"sender,omitempty"`
}
