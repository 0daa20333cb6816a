package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation and participant persistence.
type ConversationRepository interface {
	FindOrCreateDirect(ctx context.Context, userA, userB string) (models.Conversation, error)
	CreateGroup(ctx context.Context, name string, participantIDs []string) (models.Conversation, error)
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// DirectKey returns the canonical pair key for a non-group conversation.
// The unique index on conversations.direct_key makes pair deduplication a
// storage-level guarantee instead of a check-then-act scan.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// FindOrCreateDirect returns the direct conversation between the two users,
// creating it together with both participant rows when absent. Concurrent
// calls for the same pair serialize on the direct_key unique index, so
// exactly one row ever exists per pair.
func (r *ConversationRepo) FindOrCreateDirect(ctx context.Context, userA, userB string) (models.Conversation, error) {
	key := DirectKey(userA, userB)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, is_group, direct_key) VALUES ($1, FALSE, $2)
         ON CONFLICT (direct_key) DO NOTHING`, uuid.NewString(), key); err != nil {
		return models.Conversation{}, err
	}

	var conv models.Conversation
	if err = tx.GetContext(ctx, &conv,
		`SELECT id, name, is_group, created_at, updated_at FROM conversations WHERE direct_key=$1`, key); err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range []string{userA, userB} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT DO NOTHING`, conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}

	conv.Participants, err = r.participants(ctx, conv.ID)
	return conv, err
}

// CreateGroup creates a group conversation and all participant rows in one
// transaction. The caller has already resolved every participant id.
func (r *ConversationRepo) CreateGroup(ctx context.Context, name string, participantIDs []string) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (id, name, is_group) VALUES ($1, $2, TRUE)
         RETURNING id, name, is_group, created_at, updated_at`, uuid.NewString(), name).
		StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range participantIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT DO NOTHING`, conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}

	conv.Participants, err = r.participants(ctx, conv.ID)
	return conv, err
}

// Get fetches a conversation with its participants.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, name, is_group, created_at, updated_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	conv.Participants, err = r.participants(ctx, conv.ID)
	return conv, err
}

// IsParticipant checks whether the user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// ListForUser returns the user's conversations with participants and the
// single most recent message, ordered by latest activity descending.
// Conversations with no messages sort last, newest created first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at
         FROM conversations c
         JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id=$1
         LEFT JOIN LATERAL (
             SELECT m.created_at FROM messages m
             WHERE m.conversation_id = c.id
             ORDER BY m.created_at DESC LIMIT 1
         ) last ON TRUE
         ORDER BY last.created_at DESC NULLS LAST, c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []models.ConversationSummary{}, nil
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	participantsByConv, err := r.participantsBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	var lastRows []models.Message
	if err := r.db.SelectContext(ctx, &lastRows,
		`SELECT DISTINCT ON (conversation_id)
             id, conversation_id, sender_id, content, is_read, created_at, updated_at
         FROM messages
         WHERE conversation_id = ANY($1)
         ORDER BY conversation_id, created_at DESC`, pq.Array(ids)); err != nil {
		return nil, err
	}
	lastByConv := make(map[string]models.Message, len(lastRows))
	for _, m := range lastRows {
		lastByConv[m.ConversationID] = m
	}

	result := make([]models.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		c.Participants = participantsByConv[c.ID]
		summary := models.ConversationSummary{Conversation: c}
		if last, ok := lastByConv[c.ID]; ok {
			msg := last
			summary.LastMessage = &msg
		}
		result = append(result, summary)
	}
	return result, nil
}

func (r *ConversationRepo) participants(ctx context.Context, conversationID string) ([]models.User, error) {
	byConv, err := r.participantsBulk(ctx, []string{conversationID})
	if err != nil {
		return nil, err
	}
	return byConv[conversationID], nil
}

type participantRow struct {
	ConversationID string `db:"conversation_id"`
	models.User
}

func (r *ConversationRepo) participantsBulk(ctx context.Context, conversationIDs []string) (map[string][]models.User, error) {
	var rows []participantRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT cp.conversation_id, u.id, u.first_name, u.last_name, u.account_type, u.profile_picture, u.created_at
         FROM conversation_participants cp
         JOIN users u ON u.id = cp.user_id
         WHERE cp.conversation_id = ANY($1)
         ORDER BY cp.conversation_id, u.id`, pq.Array(conversationIDs))
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	byConv := make(map[string][]models.User, len(conversationIDs))
	for _, row := range rows {
		byConv[row.ConversationID] = append(byConv[row.ConversationID], row.User)
	}
	return byConv, nil
}
