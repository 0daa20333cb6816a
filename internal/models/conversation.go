package models

import "time"

// Conversation is a durable container for messages among a fixed set of
// participants. A non-group conversation has exactly two participants and a
// canonical direct key enforcing uniqueness per pair.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"isGroup"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Participants []User `db:"-" json:"participants,omitempty"`
}

// ConversationSummary is a conversation plus its most recent message, used
// by the conversation list.
type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"lastMessage,omitempty"`
}
