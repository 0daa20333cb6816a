package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

const defaultGroupName = "Group Chat"

// Service is the business-logic layer over the conversation store. All
// mutation and all authorization decisions go through it; both the realtime
// gateway and the HTTP handlers are thin callers.
type Service interface {
	StartDirect(ctx context.Context, initiatorID, recipientID string) (models.Conversation, error)
	StartGroup(ctx context.Context, initiatorID string, recipientIDs []string, name string) (models.Conversation, error)
	Send(ctx context.Context, senderID, conversationID, content string) (models.Message, error)
	MarkRead(ctx context.Context, readerID, conversationID string) error
	ConversationsFor(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	MessagesIn(ctx context.Context, conversationID, requesterID string) ([]models.Message, error)
}

type service struct {
	users   repositories.UserRepository
	convs   repositories.ConversationRepository
	msgs    repositories.MessageRepository
	emitter *telemetry.EventEmitter
}

// NewService wires the messaging service. The emitter may be nil.
func NewService(users repositories.UserRepository, convs repositories.ConversationRepository, msgs repositories.MessageRepository, emitter *telemetry.EventEmitter) Service {
	return &service{users: users, convs: convs, msgs: msgs, emitter: emitter}
}

// StartDirect resolves both users, applies the fan restriction and returns
// the existing or newly created direct conversation for the pair.
func (s *service) StartDirect(ctx context.Context, initiatorID, recipientID string) (models.Conversation, error) {
	if recipientID == "" {
		return models.Conversation{}, fmt.Errorf("%w: recipient id is missing", ErrInvalidInput)
	}
	if initiatorID == recipientID {
		return models.Conversation{}, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidInput)
	}

	initiator, err := s.users.GetUser(ctx, initiatorID)
	if err != nil {
		return models.Conversation{}, userLookupErr(err, initiatorID)
	}
	recipient, err := s.users.GetUser(ctx, recipientID)
	if err != nil {
		return models.Conversation{}, userLookupErr(err, recipientID)
	}

	if initiator.AccountType == models.AccountTypeFan && recipient.AccountType != models.AccountTypeFan {
		return models.Conversation{}, ErrPolicyViolation
	}

	conv, err := s.convs.FindOrCreateDirect(ctx, initiatorID, recipientID)
	if err != nil {
		return models.Conversation{}, err
	}

	s.emitter.Emit(ctx, "conversation_created", conv)
	return conv, nil
}

// StartGroup resolves the initiator and every recipient, applies the fan
// restriction against all of them and creates the group atomically.
func (s *service) StartGroup(ctx context.Context, initiatorID string, recipientIDs []string, name string) (models.Conversation, error) {
	recipients := dedupe(recipientIDs, initiatorID)
	if len(recipients) == 0 {
		return models.Conversation{}, fmt.Errorf("%w: recipient ids are missing", ErrInvalidInput)
	}

	initiator, err := s.users.GetUser(ctx, initiatorID)
	if err != nil {
		return models.Conversation{}, userLookupErr(err, initiatorID)
	}

	users, err := s.users.BulkUsers(ctx, recipients)
	if err != nil {
		return models.Conversation{}, err
	}
	if len(users) != len(recipients) {
		return models.Conversation{}, fmt.Errorf("%w: one or more recipients do not exist", ErrNotFound)
	}

	if initiator.AccountType == models.AccountTypeFan {
		for _, u := range users {
			if u.AccountType != models.AccountTypeFan {
				return models.Conversation{}, ErrPolicyViolation
			}
		}
	}

	if strings.TrimSpace(name) == "" {
		name = defaultGroupName
	}

	conv, err := s.convs.CreateGroup(ctx, name, append([]string{initiatorID}, recipients...))
	if err != nil {
		return models.Conversation{}, err
	}

	s.emitter.Emit(ctx, "conversation_created", conv)
	return conv, nil
}

// Send persists a message. Authorization is participantship at send time;
// the fan policy applies only when a conversation is initiated.
func (s *service) Send(ctx context.Context, senderID, conversationID, content string) (models.Message, error) {
	if conversationID == "" || strings.TrimSpace(content) == "" {
		return models.Message{}, fmt.Errorf("%w: conversation id and content are required", ErrInvalidInput)
	}

	msg, err := s.msgs.CreateMessage(ctx, conversationID, senderID, content)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			return models.Message{}, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		case errors.Is(err, repositories.ErrNotParticipant):
			return models.Message{}, ErrNotParticipant
		}
		return models.Message{}, err
	}

	if sender, err := s.users.GetUser(ctx, senderID); err == nil {
		msg.Sender = &sender
	}

	s.emitter.Emit(ctx, "message_sent", msg)
	return msg, nil
}

// MarkRead flags the reader's unread messages in the conversation. The
// reader does not need to be online, or even a participant: for a
// non-participant the update simply touches no rows.
func (s *service) MarkRead(ctx context.Context, readerID, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversation id is missing", ErrInvalidInput)
	}

	if _, err := s.convs.Get(ctx, conversationID); err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return err
	}

	if err := s.msgs.MarkRead(ctx, conversationID, readerID); err != nil {
		return err
	}

	s.emitter.Emit(ctx, "messages_read", models.MessagesRead{ConversationID: conversationID, UserID: readerID})
	return nil
}

// ConversationsFor lists the user's conversations, latest activity first.
func (s *service) ConversationsFor(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	return s.convs.ListForUser(ctx, userID)
}

// MessagesIn returns the conversation history with sender summaries. Only
// participants may read it.
func (s *service) MessagesIn(ctx context.Context, conversationID, requesterID string) ([]models.Message, error) {
	if _, err := s.convs.Get(ctx, conversationID); err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return nil, err
	}

	member, err := s.convs.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotParticipant
	}

	msgs, err := s.msgs.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.attachSenders(ctx, msgs)
}

func (s *service) attachSenders(ctx context.Context, msgs []models.Message) ([]models.Message, error) {
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}

	seen := map[string]struct{}{}
	senderIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	users, err := s.users.BulkUsers(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for i := range msgs {
		if sender, ok := byID[msgs[i].SenderID]; ok {
			u := sender
			msgs[i].Sender = &u
		}
	}
	return msgs, nil
}

func userLookupErr(err error, userID string) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return err
}

func dedupe(ids []string, exclude string) []string {
	seen := map[string]struct{}{exclude: {}}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
