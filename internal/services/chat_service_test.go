package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

const testMaxMembers = 5

func newChatService() (*ChatService, *mocks.ChatRepositoryMock, *mocks.UserRepositoryMock, *mocks.DispatcherMock, *mocks.PublisherMock) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	publisher := new(mocks.PublisherMock)
	svc := NewChatService(chats, users, dispatcher, publisher, "chat.deleted", testMaxMembers)
	return svc, chats, users, dispatcher, publisher
}

func groupChat(chatID, ownerID int, memberIDs ...int) models.ChatDetail {
	members := make([]models.PublicUser, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, models.PublicUser{ID: id})
	}
	return models.ChatDetail{
		Chat:    models.Chat{ID: chatID, Name: "crew", GroupChat: true, OwnerID: ownerID},
		Members: members,
	}
}

func usersFor(ids ...int) []models.User {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, models.User{ID: id})
	}
	return users
}

func TestCreateGroup(t *testing.T) {
	svc, chats, users, dispatcher, _ := newChatService()

	users.On("GetUsers", mock.Anything, []int{1, 2, 3}).Return(usersFor(1, 2, 3), nil)
	chats.On("CreateGroupChat", mock.Anything, 1, "crew", []int{1, 2, 3}).
		Return(groupChat(40, 1, 1, 2, 3), nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 3}, nil).Return()

	chat, err := svc.CreateGroup(context.Background(), 1, "crew", []int{2, 3})

	require.NoError(t, err)
	assert.Equal(t, 40, chat.ID)
	assert.Equal(t, 1, chat.OwnerID)
	dispatcher.AssertExpectations(t)
}

func TestCreateGroupDeduplicatesCreator(t *testing.T) {
	svc, chats, users, dispatcher, _ := newChatService()

	users.On("GetUsers", mock.Anything, []int{1, 2, 3}).Return(usersFor(1, 2, 3), nil)
	chats.On("CreateGroupChat", mock.Anything, 1, "crew", []int{1, 2, 3}).
		Return(groupChat(40, 1, 1, 2, 3), nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 3}, nil).Return()

	_, err := svc.CreateGroup(context.Background(), 1, "crew", []int{2, 1, 3, 2})

	require.NoError(t, err)
	chats.AssertExpectations(t)
}

func TestCreateGroupTooSmall(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	_, err := svc.CreateGroup(context.Background(), 1, "crew", []int{2})

	assert.Equal(t, KindGroupTooSmall, KindOf(err))
	chats.AssertNotCalled(t, "CreateGroupChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupOverCapacity(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	_, err := svc.CreateGroup(context.Background(), 1, "crew", []int{2, 3, 4, 5, 6})

	assert.Equal(t, KindGroupFull, KindOf(err))
	chats.AssertNotCalled(t, "CreateGroupChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupUnknownMember(t *testing.T) {
	svc, chats, users, _, _ := newChatService()

	users.On("GetUsers", mock.Anything, []int{1, 2, 99}).Return(usersFor(1, 2), nil)

	_, err := svc.CreateGroup(context.Background(), 1, "crew", []int{2, 99})

	assert.Equal(t, KindUserNotFound, KindOf(err))
	chats.AssertNotCalled(t, "CreateGroupChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMembersNotifiesNewcomersOnly(t *testing.T) {
	svc, chats, users, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)
	users.On("GetUsers", mock.Anything, []int{4}).Return(usersFor(4), nil)
	chats.On("AddMembers", mock.Anything, 40, []int{4}, testMaxMembers).Return([]int{4}, nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{4}, nil).Return()

	added, err := svc.AddMembers(context.Background(), 40, 1, []int{2, 4})

	require.NoError(t, err)
	assert.Equal(t, []int{4}, added)
	dispatcher.AssertExpectations(t)
}

func TestAddMembersAllPresentIsNoop(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	added, err := svc.AddMembers(context.Background(), 40, 1, []int{2, 3})

	require.NoError(t, err)
	assert.Empty(t, added)
	chats.AssertNotCalled(t, "AddMembers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMembersOwnerOnly(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	_, err := svc.AddMembers(context.Background(), 40, 2, []int{4})

	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestAddMembersWouldExceedCapacity(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)

	_, err := svc.AddMembers(context.Background(), 40, 1, []int{5, 6})

	assert.Equal(t, KindGroupFull, KindOf(err))
	chats.AssertNotCalled(t, "AddMembers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMembersRacedCapacity(t *testing.T) {
	// Another writer filled the group between the read and the insert.
	svc, chats, users, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)
	users.On("GetUsers", mock.Anything, []int{4}).Return(usersFor(4), nil)
	chats.On("AddMembers", mock.Anything, 40, []int{4}, testMaxMembers).
		Return(nil, repositories.ErrGroupFull)

	_, err := svc.AddMembers(context.Background(), 40, 1, []int{4})

	assert.Equal(t, KindGroupFull, KindOf(err))
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMembersOnDirectChat(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 10).Return(models.ChatDetail{
		Chat:    models.Chat{ID: 10, GroupChat: false},
		Members: []models.PublicUser{{ID: 1}, {ID: 2}},
	}, nil)

	_, err := svc.AddMembers(context.Background(), 10, 1, []int{3})

	assert.Equal(t, KindNotGroupChat, KindOf(err))
}

func TestRemoveMemberNotifiesRemainingAndTarget(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)
	chats.On("RemoveMember", mock.Anything, 40, 3).Return(nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 4}, nil).Return()
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{3}, nil).Return()

	err := svc.RemoveMember(context.Background(), 40, 1, 3)

	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestRemoveMemberOwnerOnly(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)

	err := svc.RemoveMember(context.Background(), 40, 2, 3)

	assert.Equal(t, KindUnauthorized, KindOf(err))
	chats.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMemberSelf(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)

	err := svc.RemoveMember(context.Background(), 40, 1, 1)

	assert.Equal(t, KindSelfOperation, KindOf(err))
}

func TestRemoveMemberNotAMember(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)

	err := svc.RemoveMember(context.Background(), 40, 1, 9)

	assert.Equal(t, KindUserNotFound, KindOf(err))
}

func TestRemoveMemberAtMinimumSize(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	err := svc.RemoveMember(context.Background(), 40, 1, 3)

	assert.Equal(t, KindGroupTooSmall, KindOf(err))
	chats.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeaveGroup(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)
	chats.On("RemoveMember", mock.Anything, 40, 3).Return(nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 4}, nil).Return()

	err := svc.LeaveGroup(context.Background(), 40, 3)

	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestLeaveGroupByOwner(t *testing.T) {
	// The workflow hands the store only the departing owner. Picking the
	// successor from the read taken before the store lock would let two
	// concurrent departures install a member who has already left, so the
	// store chooses the earliest-joined survivor inside its transaction.
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)
	chats.On("RemoveMember", mock.Anything, 40, 1).Return(nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{2, 3, 4}, nil).Return()

	err := svc.LeaveGroup(context.Background(), 40, 1)

	require.NoError(t, err)
	chats.AssertExpectations(t)
	chats.AssertNumberOfCalls(t, "RemoveMember", 1)
}

func TestLeaveGroupAtMinimumSize(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	err := svc.LeaveGroup(context.Background(), 40, 2)

	assert.Equal(t, KindGroupTooSmall, KindOf(err))
	chats.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeaveGroupNonMember(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3, 4), nil)

	err := svc.LeaveGroup(context.Background(), 40, 9)

	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestDeleteGroupChatPublishesCleanup(t *testing.T) {
	svc, chats, _, dispatcher, publisher := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)
	chats.On("DeleteChat", mock.Anything, 40).Return(nil)
	publisher.On("Publish", mock.Anything, "chat.deleted", mock.MatchedBy(func(event ChatDeletedEvent) bool {
		return event.ChatID == 40 && event.DeletedBy == 1
	})).Return(nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 3}, nil).Return()

	err := svc.DeleteChat(context.Background(), 40, 1)

	require.NoError(t, err)
	publisher.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestDeleteGroupChatOwnerOnly(t *testing.T) {
	svc, chats, _, _, publisher := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	err := svc.DeleteChat(context.Background(), 40, 2)

	assert.Equal(t, KindUnauthorized, KindOf(err))
	chats.AssertNotCalled(t, "DeleteChat", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteDirectChatByEitherMember(t *testing.T) {
	svc, chats, _, dispatcher, publisher := newChatService()

	chats.On("GetChat", mock.Anything, 10).Return(models.ChatDetail{
		Chat:    models.Chat{ID: 10, GroupChat: false},
		Members: []models.PublicUser{{ID: 1}, {ID: 2}},
	}, nil)
	chats.On("DeleteChat", mock.Anything, 10).Return(nil)
	publisher.On("Publish", mock.Anything, "chat.deleted", mock.Anything).Return(nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2}, nil).Return()

	err := svc.DeleteChat(context.Background(), 10, 2)

	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestDeleteChatSurvivesPublishFailure(t *testing.T) {
	svc, chats, _, dispatcher, publisher := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)
	chats.On("DeleteChat", mock.Anything, 40).Return(nil)
	publisher.On("Publish", mock.Anything, "chat.deleted", mock.Anything).
		Return(errors.New("broker unavailable"))
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 3}, nil).Return()

	err := svc.DeleteChat(context.Background(), 40, 1)

	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestRenameGroup(t *testing.T) {
	svc, chats, _, dispatcher, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)
	chats.On("RenameChat", mock.Anything, 40, "new crew").Return(nil)
	dispatcher.On("Dispatch", models.EventRefetchChats, []int{1, 2, 3}, nil).Return()

	err := svc.RenameGroup(context.Background(), 40, 1, "new crew")

	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestRenameGroupOwnerOnly(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	err := svc.RenameGroup(context.Background(), 40, 3, "new crew")

	assert.Equal(t, KindUnauthorized, KindOf(err))
	chats.AssertNotCalled(t, "RenameChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatDetailsMembersOnly(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 40).Return(groupChat(40, 1, 1, 2, 3), nil)

	_, err := svc.GetChatDetails(context.Background(), 40, 9)

	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestGetChatDetailsUnknownChat(t *testing.T) {
	svc, chats, _, _, _ := newChatService()

	chats.On("GetChat", mock.Anything, 404).Return(models.ChatDetail{}, repositories.ErrChatNotFound)

	_, err := svc.GetChatDetails(context.Background(), 404, 1)

	assert.Equal(t, KindChatNotFound, KindOf(err))
}
