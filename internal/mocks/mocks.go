package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, name, username, bio, avatar, passwordHash string) (models.User, error) {
	args := m.Called(ctx, name, username, bio, avatar, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SearchUsers(ctx context.Context, nameQuery string, excludeIDs []int) ([]models.PublicUser, error) {
	args := m.Called(ctx, nameQuery, excludeIDs)
	var users []models.PublicUser
	if val := args.Get(0); val != nil {
		users = val.([]models.PublicUser)
	}
	return users, args.Error(1)
}

type RequestRepositoryMock struct {
	mock.Mock
}

func (m *RequestRepositoryMock) CreateRequest(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *RequestRepositoryMock) HasPendingBetween(ctx context.Context, userA, userB int) (bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Bool(0), args.Error(1)
}

func (m *RequestRepositoryMock) GetPendingRequest(ctx context.Context, requestID int) (models.FriendRequestDetail, error) {
	args := m.Called(ctx, requestID)
	var detail models.FriendRequestDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.FriendRequestDetail)
	}
	return detail, args.Error(1)
}

func (m *RequestRepositoryMock) ListPendingForReceiver(ctx context.Context, receiverID int) ([]models.FriendRequestDetail, error) {
	args := m.Called(ctx, receiverID)
	var list []models.FriendRequestDetail
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequestDetail)
	}
	return list, args.Error(1)
}

func (m *RequestRepositoryMock) AcceptRequest(ctx context.Context, requestID int, chatName string) (models.Chat, error) {
	args := m.Called(ctx, requestID, chatName)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *RequestRepositoryMock) RejectRequest(ctx context.Context, requestID int) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (models.ChatDetail, error) {
	args := m.Called(ctx, ownerID, name, memberIDs)
	var chat models.ChatDetail
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatDetail)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID)
	var chat models.ChatDetail
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatDetail)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.ChatDetail, error) {
	args := m.Called(ctx, userID)
	var chats []models.ChatDetail
	if val := args.Get(0); val != nil {
		chats = val.([]models.ChatDetail)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsByKind(ctx context.Context, userID int, groupChat bool) ([]models.ChatDetail, error) {
	args := m.Called(ctx, userID, groupChat)
	var chats []models.ChatDetail
	if val := args.Get(0); val != nil {
		chats = val.([]models.ChatDetail)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) AddMembers(ctx context.Context, chatID int, userIDs []int, maxMembers int) ([]int, error) {
	args := m.Called(ctx, chatID, userIDs, maxMembers)
	var added []int
	if val := args.Get(0); val != nil {
		added = val.([]int)
	}
	return added, args.Error(1)
}

func (m *ChatRepositoryMock) RemoveMember(ctx context.Context, chatID int, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) RenameChat(ctx context.Context, chatID int, name string) error {
	args := m.Called(ctx, chatID, name)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

// DispatcherMock records fire-and-forget event deliveries.
type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) Dispatch(event string, userIDs []int, payload any) {
	m.Called(event, userIDs, payload)
}

// PublisherMock records collaborator event publishes.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.RequestRepository = (*RequestRepositoryMock)(nil)
var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
