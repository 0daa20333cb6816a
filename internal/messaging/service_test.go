package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

func fan(id string) models.User {
	return models.User{ID: id, AccountType: models.AccountTypeFan}
}

func player(id string) models.User {
	return models.User{ID: id, AccountType: models.AccountTypePlayer}
}

func newTestService(users *mocks.UserRepositoryMock, convs *mocks.ConversationRepositoryMock, msgs *mocks.MessageRepositoryMock) Service {
	return NewService(users, convs, msgs, nil)
}

func TestStartDirectFanToFanSucceeds(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(users, convs, new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()
	users.On("GetUser", mock.Anything, "b").Return(fan("b"), nil).Once()
	convs.On("FindOrCreateDirect", mock.Anything, "a", "b").
		Return(models.Conversation{ID: "c1", Participants: []models.User{fan("a"), fan("b")}}, nil).Once()

	conv, err := svc.StartDirect(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Len(t, conv.Participants, 2)
	users.AssertExpectations(t)
	convs.AssertExpectations(t)
}

func TestStartDirectFanToPlayerRejected(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(users, convs, new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()
	users.On("GetUser", mock.Anything, "b").Return(player("b"), nil).Once()

	_, err := svc.StartDirect(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrPolicyViolation)
	convs.AssertNotCalled(t, "FindOrCreateDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartDirectPlayerToFanAllowed(t *testing.T) {
	// The restriction only binds fan initiators.
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(users, convs, new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(player("a"), nil).Once()
	users.On("GetUser", mock.Anything, "b").Return(fan("b"), nil).Once()
	convs.On("FindOrCreateDirect", mock.Anything, "a", "b").Return(models.Conversation{ID: "c2"}, nil).Once()

	_, err := svc.StartDirect(context.Background(), "a", "b")
	require.NoError(t, err)
}

func TestStartDirectUnknownRecipient(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	svc := newTestService(users, new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()
	users.On("GetUser", mock.Anything, "ghost").Return(models.User{}, repositories.ErrUserNotFound).Once()

	_, err := svc.StartDirect(context.Background(), "a", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStartDirectWithSelfRejected(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock))

	_, err := svc.StartDirect(context.Background(), "a", "a")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStartGroupRequiresRecipients(t *testing.T) {
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock))

	_, err := svc.StartGroup(context.Background(), "a", nil, "team chat")
	require.ErrorIs(t, err, ErrInvalidInput)

	// A recipient list containing only the initiator is empty after dedup.
	_, err = svc.StartGroup(context.Background(), "a", []string{"a"}, "team chat")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStartGroupMissingRecipientAllOrNothing(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(users, convs, new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()
	users.On("BulkUsers", mock.Anything, []string{"b", "ghost"}).Return([]models.User{fan("b")}, nil).Once()

	_, err := svc.StartGroup(context.Background(), "a", []string{"b", "ghost"}, "")
	require.ErrorIs(t, err, ErrNotFound)
	convs.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartGroupFanWithNonFanRecipientRejected(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(users, convs, new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()
	users.On("BulkUsers", mock.Anything, []string{"b", "c"}).Return([]models.User{fan("b"), player("c")}, nil).Once()

	_, err := svc.StartGroup(context.Background(), "a", []string{"b", "c"}, "")
	require.ErrorIs(t, err, ErrPolicyViolation)
	convs.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartGroupDefaultsName(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(users, convs, new(mocks.MessageRepositoryMock))

	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()
	users.On("BulkUsers", mock.Anything, []string{"b"}).Return([]models.User{fan("b")}, nil).Once()
	convs.On("CreateGroup", mock.Anything, "Group Chat", []string{"a", "b"}).
		Return(models.Conversation{ID: "g1", IsGroup: true}, nil).Once()

	conv, err := svc.StartGroup(context.Background(), "a", []string{"b"}, "  ")
	require.NoError(t, err)
	assert.True(t, conv.IsGroup)
	convs.AssertExpectations(t)
}

func TestSendEmptyContentRejected(t *testing.T) {
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), msgs)

	_, err := svc.Send(context.Background(), "a", "c1", "   ")
	require.ErrorIs(t, err, ErrInvalidInput)
	msgs.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendNonParticipantRejected(t *testing.T) {
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), msgs)

	msgs.On("CreateMessage", mock.Anything, "c1", "intruder", "hi").
		Return(models.Message{}, repositories.ErrNotParticipant).Once()

	_, err := svc.Send(context.Background(), "intruder", "c1", "hi")
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendUnknownConversation(t *testing.T) {
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(new(mocks.UserRepositoryMock), new(mocks.ConversationRepositoryMock), msgs)

	msgs.On("CreateMessage", mock.Anything, "nope", "a", "hi").
		Return(models.Message{}, repositories.ErrConversationNotFound).Once()

	_, err := svc.Send(context.Background(), "a", "nope", "hi")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSendAttachesSenderAndEmitsEvent(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewEventEmitter(publisher, "messaging-service", "test")
	svc := NewService(users, new(mocks.ConversationRepositoryMock), msgs, emitter)

	msgs.On("CreateMessage", mock.Anything, "c1", "a", "hi").
		Return(models.Message{ID: "m1", ConversationID: "c1", SenderID: "a", Content: "hi"}, nil).Once()
	users.On("GetUser", mock.Anything, "a").Return(fan("a"), nil).Once()

	msg, err := svc.Send(context.Background(), "a", "c1", "hi")
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "a", msg.Sender.ID)

	published := publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "messaging.message_sent", published[0].RoutingKey)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	svc := newTestService(new(mocks.UserRepositoryMock), convs, new(mocks.MessageRepositoryMock))

	convs.On("Get", mock.Anything, "nope").Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	err := svc.MarkRead(context.Background(), "a", "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadIsDelegatedAndIdempotent(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(new(mocks.UserRepositoryMock), convs, msgs)

	convs.On("Get", mock.Anything, "c1").Return(models.Conversation{ID: "c1"}, nil).Twice()
	msgs.On("MarkRead", mock.Anything, "c1", "b").Return(nil).Twice()

	require.NoError(t, svc.MarkRead(context.Background(), "b", "c1"))
	require.NoError(t, svc.MarkRead(context.Background(), "b", "c1"))
	msgs.AssertExpectations(t)
}

func TestMessagesInNonParticipantRejected(t *testing.T) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(new(mocks.UserRepositoryMock), convs, msgs)

	convs.On("Get", mock.Anything, "c1").Return(models.Conversation{ID: "c1"}, nil).Once()
	convs.On("IsParticipant", mock.Anything, "c1", "outsider").Return(false, nil).Once()

	_, err := svc.MessagesIn(context.Background(), "c1", "outsider")
	require.ErrorIs(t, err, ErrNotParticipant)
	msgs.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestMessagesInAttachesSenders(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	svc := newTestService(users, convs, msgs)

	convs.On("Get", mock.Anything, "c1").Return(models.Conversation{ID: "c1"}, nil).Once()
	convs.On("IsParticipant", mock.Anything, "c1", "a").Return(true, nil).Once()
	msgs.On("ListMessages", mock.Anything, "c1").Return([]models.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "a", Content: "hi"},
		{ID: "m2", ConversationID: "c1", SenderID: "b", Content: "hey"},
		{ID: "m3", ConversationID: "c1", SenderID: "a", Content: "how are you"},
	}, nil).Once()
	users.On("BulkUsers", mock.Anything, []string{"a", "b"}).
		Return([]models.User{fan("a"), fan("b")}, nil).Once()

	result, err := svc.MessagesIn(context.Background(), "c1", "a")
	require.NoError(t, err)
	require.Len(t, result, 3)
	for _, m := range result {
		require.NotNil(t, m.Sender)
		assert.Equal(t, m.SenderID, m.Sender.ID)
	}
	users.AssertExpectations(t)
}
