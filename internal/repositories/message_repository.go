package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrNotParticipant = errors.New("user is not a participant in this conversation")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID, senderID, content string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message after verifying the sender is currently a
// participant. Ordering within a conversation comes from the store's
// timestamp assignment, not from the caller.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID, senderID, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content)
         SELECT $1, $2, $3, $4
         WHERE EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$2 AND user_id=$3)
         RETURNING id, conversation_id, sender_id, content, is_read, created_at, updated_at`,
		uuid.NewString(), conversationID, senderID, content).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if checkErr := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1)`, conversationID); checkErr != nil {
			return models.Message{}, checkErr
		}
		if !exists {
			return models.Message{}, ErrConversationNotFound
		}
		return models.Message{}, ErrNotParticipant
	}
	return msg, err
}

// ListMessages returns all messages in chronological ascending order.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, conversation_id, sender_id, content, is_read, created_at, updated_at
         FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	return msgs, err
}

// MarkRead flags every unread message in the conversation not authored by
// the reader. Repeated calls update zero rows.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE, updated_at = NOW()
         WHERE conversation_id=$1 AND sender_id <> $2 AND is_read = FALSE`, conversationID, readerID)
	return err
}
