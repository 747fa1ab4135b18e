package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/samber/lo"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

// Publisher emits collaborator events, message-store cleanup among them.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// ChatDeletedEvent asks the message store to purge a deleted chat's
// messages and attachments.
type ChatDeletedEvent struct {
	ChatID     int       `json:"chat_id"`
	DeletedBy  int       `json:"deleted_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChatService orchestrates group creation, membership mutation and chat
// deletion. Group size stays within [models.MinGroupMembers, maxMembers]
// for every interleaving: the checks here are optimizations, the chat store
// re-validates under its per-chat lock.
type ChatService struct {
	chats      repositories.ChatRepository
	users      repositories.UserRepository
	dispatcher Dispatcher
	publisher  Publisher
	cleanupKey string
	maxMembers int
}

// NewChatService constructs a ChatService.
func NewChatService(chats repositories.ChatRepository, users repositories.UserRepository, dispatcher Dispatcher, publisher Publisher, cleanupKey string, maxMembers int) *ChatService {
	return &ChatService{
		chats:      chats,
		users:      users,
		dispatcher: dispatcher,
		publisher:  publisher,
		cleanupKey: cleanupKey,
		maxMembers: maxMembers,
	}
}

// CreateGroup creates a group chat owned by the creator. The member set is
// the creator plus memberIDs, deduplicated, and must satisfy the group size
// bounds including the creator.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.ChatDetail, error) {
	members := lo.Uniq(append([]int{creatorID}, memberIDs...))
	if len(members) < models.MinGroupMembers {
		return models.ChatDetail{}, failure(KindGroupTooSmall, "a group chat needs at least %d members", models.MinGroupMembers)
	}
	if len(members) > s.maxMembers {
		return models.ChatDetail{}, failure(KindGroupFull, "a group chat may have at most %d members", s.maxMembers)
	}

	if err := s.ensureUsersExist(ctx, members); err != nil {
		return models.ChatDetail{}, err
	}

	chat, err := s.chats.CreateGroupChat(ctx, creatorID, name, members)
	if err != nil {
		return models.ChatDetail{}, err
	}

	s.dispatcher.Dispatch(models.EventRefetchChats, members, nil)
	return chat, nil
}

// AddMembers adds users to a group chat. Owner only. Returns the ids that
// were actually added (already-present users are skipped).
func (s *ChatService) AddMembers(ctx context.Context, chatID, requesterID int, newMemberIDs []int) ([]int, error) {
	chat, err := s.getGroupChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.OwnerID != requesterID {
		return nil, failure(KindUnauthorized, "only the group owner may add members")
	}

	newcomers := lo.Without(lo.Uniq(newMemberIDs), chat.MemberIDs()...)
	if len(newcomers) == 0 {
		return []int{}, nil
	}
	if len(chat.Members)+len(newcomers) > s.maxMembers {
		return nil, failure(KindGroupFull, "a group chat may have at most %d members", s.maxMembers)
	}

	if err := s.ensureUsersExist(ctx, newcomers); err != nil {
		return nil, err
	}

	added, err := s.chats.AddMembers(ctx, chatID, newcomers, s.maxMembers)
	if err != nil {
		return nil, s.translate(err, chatID)
	}

	s.dispatcher.Dispatch(models.EventRefetchChats, added, nil)
	return added, nil
}

// RemoveMember removes a user from a group chat. Owner only; self-removal
// must go through LeaveGroup, which any member may use.
func (s *ChatService) RemoveMember(ctx context.Context, chatID, requesterID, targetID int) error {
	chat, err := s.getGroupChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.OwnerID != requesterID {
		return failure(KindUnauthorized, "only the group owner may remove members")
	}
	if targetID == requesterID {
		return failure(KindSelfOperation, "use leave to remove yourself from the group")
	}
	if !chat.HasMember(targetID) {
		return failure(KindUserNotFound, "user %d is not a member of this chat", targetID)
	}
	if len(chat.Members)-1 < models.MinGroupMembers {
		return failure(KindGroupTooSmall, "a group chat needs at least %d members", models.MinGroupMembers)
	}

	if err := s.chats.RemoveMember(ctx, chatID, targetID); err != nil {
		return s.translate(err, chatID)
	}

	remaining := lo.Without(chat.MemberIDs(), targetID)
	s.dispatcher.Dispatch(models.EventRefetchChats, remaining, nil)
	s.dispatcher.Dispatch(models.EventRefetchChats, []int{targetID}, nil)
	return nil
}

// LeaveGroup removes the caller from a group chat. Leaving at the minimum
// size fails rather than dissolving the group. When the owner leaves, the
// store reassigns ownership to the earliest-joined remaining member under
// the chat lock, so a concurrent departure cannot install a gone successor.
func (s *ChatService) LeaveGroup(ctx context.Context, chatID, userID int) error {
	chat, err := s.getGroupChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(userID) {
		return failure(KindUnauthorized, "you are not a member of this chat")
	}
	if len(chat.Members)-1 < models.MinGroupMembers {
		return failure(KindGroupTooSmall, "a group chat needs at least %d members", models.MinGroupMembers)
	}

	if err := s.chats.RemoveMember(ctx, chatID, userID); err != nil {
		return s.translate(err, chatID)
	}

	remaining := lo.Without(chat.MemberIDs(), userID)
	s.dispatcher.Dispatch(models.EventRefetchChats, remaining, nil)
	return nil
}

// DeleteChat removes a chat: group chats by their owner, 1:1 chats by either
// member. Message cleanup is delegated to the message store via an event.
func (s *ChatService) DeleteChat(ctx context.Context, chatID, requesterID int) error {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.GroupChat {
		if chat.OwnerID != requesterID {
			return failure(KindUnauthorized, "only the group owner may delete this chat")
		}
	} else if !chat.HasMember(requesterID) {
		return failure(KindUnauthorized, "you are not a member of this chat")
	}

	if err := s.chats.DeleteChat(ctx, chatID); err != nil {
		return s.translate(err, chatID)
	}

	if s.publisher != nil {
		event := ChatDeletedEvent{ChatID: chatID, DeletedBy: requesterID, OccurredAt: time.Now().UTC()}
		if err := s.publisher.Publish(ctx, s.cleanupKey, event); err != nil {
			log.Printf("chat cleanup publish failed: chat_id=%d err=%v", chatID, err)
		}
	}

	s.dispatcher.Dispatch(models.EventRefetchChats, chat.MemberIDs(), nil)
	return nil
}

// RenameGroup updates a group chat's display name. Owner only.
func (s *ChatService) RenameGroup(ctx context.Context, chatID, requesterID int, name string) error {
	chat, err := s.getGroupChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.OwnerID != requesterID {
		return failure(KindUnauthorized, "only the group owner may rename this chat")
	}

	if err := s.chats.RenameChat(ctx, chatID, name); err != nil {
		return s.translate(err, chatID)
	}

	s.dispatcher.Dispatch(models.EventRefetchChats, chat.MemberIDs(), nil)
	return nil
}

// GetChatDetails returns an expanded chat, members only.
func (s *ChatService) GetChatDetails(ctx context.Context, chatID, requesterID int) (models.ChatDetail, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	if !chat.HasMember(requesterID) {
		return models.ChatDetail{}, failure(KindUnauthorized, "you are not a member of this chat")
	}
	return chat, nil
}

// ListChats returns all chats that include the user.
func (s *ChatService) ListChats(ctx context.Context, userID int) ([]models.ChatDetail, error) {
	return s.chats.ListChats(ctx, userID)
}

// ListGroups returns the group chats that include the user.
func (s *ChatService) ListGroups(ctx context.Context, userID int) ([]models.ChatDetail, error) {
	return s.chats.ListChatsByKind(ctx, userID, true)
}

func (s *ChatService) getChat(ctx context.Context, chatID int) (models.ChatDetail, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return models.ChatDetail{}, failure(KindChatNotFound, "chat %d not found", chatID)
		}
		return models.ChatDetail{}, err
	}
	return chat, nil
}

func (s *ChatService) getGroupChat(ctx context.Context, chatID int) (models.ChatDetail, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	if !chat.GroupChat {
		return models.ChatDetail{}, failure(KindNotGroupChat, "chat %d is not a group chat", chatID)
	}
	return chat, nil
}

func (s *ChatService) ensureUsersExist(ctx context.Context, userIDs []int) error {
	users, err := s.users.GetUsers(ctx, userIDs)
	if err != nil {
		return err
	}
	if len(users) != len(userIDs) {
		known := make(map[int]struct{}, len(users))
		for _, u := range users {
			known[u.ID] = struct{}{}
		}
		for _, id := range userIDs {
			if _, ok := known[id]; !ok {
				return failure(KindUserNotFound, "user %d not found", id)
			}
		}
	}
	return nil
}

// translate maps store-level rejections to the same typed failures the
// workflow pre-checks produce.
func (s *ChatService) translate(err error, chatID int) error {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		return failure(KindChatNotFound, "chat %d not found", chatID)
	case errors.Is(err, repositories.ErrGroupFull):
		return failure(KindGroupFull, "a group chat may have at most %d members", s.maxMembers)
	case errors.Is(err, repositories.ErrGroupTooSmall):
		return failure(KindGroupTooSmall, "a group chat needs at least %d members", models.MinGroupMembers)
	case errors.Is(err, repositories.ErrNotMember):
		return failure(KindUserNotFound, "user is not a member of chat %d", chatID)
	default:
		return err
	}
}
