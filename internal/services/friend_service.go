package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

// Dispatcher delivers a typed event to the connected sessions of the given
// users. Delivery is fire-and-forget: workflows never block on it and their
// results never depend on it.
type Dispatcher interface {
	Dispatch(event string, userIDs []int, payload any)
}

// FriendService orchestrates the friend-request lifecycle and the reads
// derived from the 1:1 chat graph.
type FriendService struct {
	users      repositories.UserRepository
	requests   repositories.RequestRepository
	chats      repositories.ChatRepository
	dispatcher Dispatcher
}

// NewFriendService constructs a FriendService.
func NewFriendService(users repositories.UserRepository, requests repositories.RequestRepository, chats repositories.ChatRepository, dispatcher Dispatcher) *FriendService {
	return &FriendService{users: users, requests: requests, chats: chats, dispatcher: dispatcher}
}

// SendRequest creates a pending friend request and notifies the receiver.
// The duplicate check here is an optimization; the store's uniqueness
// constraint on the unordered pair is the ground truth under concurrency.
func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID int) error {
	if senderID == receiverID {
		return failure(KindSelfOperation, "cannot send a friend request to yourself")
	}

	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return failure(KindUserNotFound, "user %d not found", receiverID)
		}
		return err
	}

	pending, err := s.requests.HasPendingBetween(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	if pending {
		return failure(KindDuplicateRequest, "a friend request between these users is already pending")
	}

	if _, err := s.requests.CreateRequest(ctx, senderID, receiverID); err != nil {
		if errors.Is(err, repositories.ErrDuplicateRequest) {
			return failure(KindDuplicateRequest, "a friend request between these users is already pending")
		}
		return err
	}

	s.dispatcher.Dispatch(models.EventNewRequest, []int{receiverID}, nil)
	return nil
}

// ResolveRequest accepts or rejects a pending request. Only the receiver may
// resolve it. Acceptance creates the 1:1 chat and the request transition in
// one atomic store operation; rejection is silent beyond the direct response.
func (s *FriendService) ResolveRequest(ctx context.Context, requestID, resolverID int, accept bool) (models.Resolution, error) {
	req, err := s.requests.GetPendingRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return models.Resolution{}, failure(KindRequestNotFound, "friend request %d not found", requestID)
		}
		return models.Resolution{}, err
	}

	if req.ReceiverID != resolverID {
		return models.Resolution{}, failure(KindUnauthorized, "only the receiver may resolve this request")
	}

	if !accept {
		if err := s.requests.RejectRequest(ctx, requestID); err != nil {
			if errors.Is(err, repositories.ErrRequestNotFound) {
				return models.Resolution{}, failure(KindRequestNotFound, "friend request %d not found", requestID)
			}
			return models.Resolution{}, err
		}
		return models.Resolution{Accepted: false}, nil
	}

	chatName := fmt.Sprintf("%s-%s", req.Sender.Name, req.Receiver.Name)
	chat, err := s.requests.AcceptRequest(ctx, requestID, chatName)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return models.Resolution{}, failure(KindRequestNotFound, "friend request %d not found", requestID)
		}
		return models.Resolution{}, err
	}

	s.dispatcher.Dispatch(models.EventRefetchChats, []int{req.SenderID, req.ReceiverID}, nil)
	return models.Resolution{Accepted: true, SenderID: req.SenderID, ChatID: chat.ID}, nil
}

// ListIncomingRequests returns the pending requests addressed to the user,
// sender display fields expanded.
func (s *FriendService) ListIncomingRequests(ctx context.Context, userID int) ([]models.FriendRequestDetail, error) {
	return s.requests.ListPendingForReceiver(ctx, userID)
}

// ListFriends derives the friend list from the user's 1:1 chats. When
// excludeChatID is non-zero, friends already in that chat are filtered out.
func (s *FriendService) ListFriends(ctx context.Context, userID, excludeChatID int) ([]models.PublicUser, error) {
	directChats, err := s.chats.ListChatsByKind(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	friends := lo.FilterMap(directChats, func(chat models.ChatDetail, _ int) (models.PublicUser, bool) {
		return chat.OtherMember(userID)
	})

	if excludeChatID == 0 {
		return friends, nil
	}

	chat, err := s.chats.GetChat(ctx, excludeChatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return nil, failure(KindChatNotFound, "chat %d not found", excludeChatID)
		}
		return nil, err
	}

	return lo.Filter(friends, func(friend models.PublicUser, _ int) bool {
		return !chat.HasMember(friend.ID)
	}), nil
}

// SearchUsers returns users whose name matches the query, hiding the caller
// and everyone already sharing a 1:1 chat with them.
func (s *FriendService) SearchUsers(ctx context.Context, userID int, nameQuery string) ([]models.PublicUser, error) {
	directChats, err := s.chats.ListChatsByKind(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	exclude := []int{userID}
	for _, chat := range directChats {
		exclude = append(exclude, chat.MemberIDs()...)
	}

	return s.users.SearchUsers(ctx, nameQuery, lo.Uniq(exclude))
}
