package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrNotMember     = errors.New("user is not a chat member")
	ErrGroupFull     = errors.New("group chat is full")
	ErrGroupTooSmall = errors.New("group chat cannot drop below minimum size")
)

// ChatRepository abstracts chat and membership persistence. Membership
// mutations are serialized per chat with a row-level lock so the size
// invariant holds under concurrent calls.
type ChatRepository interface {
	CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (models.ChatDetail, error)
	GetChat(ctx context.Context, chatID int) (models.ChatDetail, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatDetail, error)
	ListChatsByKind(ctx context.Context, userID int, groupChat bool) ([]models.ChatDetail, error)
	AddMembers(ctx context.Context, chatID int, userIDs []int, maxMembers int) ([]int, error)
	RemoveMember(ctx context.Context, chatID int, userID int) error
	RenameChat(ctx context.Context, chatID int, name string) error
	DeleteChat(ctx context.Context, chatID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateGroupChat creates a group and its members atomically. memberIDs must
// already include the owner; insertion order fixes the join sequence used for
// ownership transfer.
func (r *ChatRepo) CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (models.ChatDetail, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatDetail{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (name, group_chat, owner_id) VALUES ($1, TRUE, $2)
         RETURNING id, name, group_chat, owner_id, created_at`, name, ownerID).
		Scan(&chat.ID, &chat.Name, &chat.GroupChat, &chat.OwnerID, &chat.CreatedAt); err != nil {
		return models.ChatDetail{}, err
	}

	for _, userID := range memberIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, userID); err != nil {
			return models.ChatDetail{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.ChatDetail{}, err
	}
	return r.GetChat(ctx, chat.ID)
}

// GetChat fetches a chat expanded with its members in join order.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.ChatDetail, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, name, group_chat, owner_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatDetail{}, ErrChatNotFound
	}
	if err != nil {
		return models.ChatDetail{}, err
	}

	members, err := r.chatMembers(ctx, chatID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	return models.ChatDetail{Chat: chat, Members: members}, nil
}

// ListChats returns all chats that include the user, members expanded.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatDetail, error) {
	return r.listChats(ctx,
		`SELECT c.id, c.name, c.group_chat, c.owner_id, c.created_at FROM chats c
         JOIN chat_members cm ON cm.chat_id = c.id
         WHERE cm.user_id=$1 ORDER BY c.created_at DESC`, userID)
}

// ListChatsByKind returns the user's chats filtered by the group flag.
func (r *ChatRepo) ListChatsByKind(ctx context.Context, userID int, groupChat bool) ([]models.ChatDetail, error) {
	return r.listChats(ctx,
		`SELECT c.id, c.name, c.group_chat, c.owner_id, c.created_at FROM chats c
         JOIN chat_members cm ON cm.chat_id = c.id
         WHERE cm.user_id=$1 AND c.group_chat=$2 ORDER BY c.created_at DESC`, userID, groupChat)
}

func (r *ChatRepo) listChats(ctx context.Context, query string, args ...any) ([]models.ChatDetail, error) {
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, args...); err != nil {
		return nil, err
	}

	result := make([]models.ChatDetail, 0, len(chats))
	for _, chat := range chats {
		members, err := r.chatMembers(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, models.ChatDetail{Chat: chat, Members: members})
	}
	return result, nil
}

func (r *ChatRepo) chatMembers(ctx context.Context, chatID int) ([]models.PublicUser, error) {
	var members []models.PublicUser
	err := r.db.SelectContext(ctx, &members,
		`SELECT u.id, u.name, u.avatar FROM chat_members cm
         JOIN users u ON u.id = cm.user_id
         WHERE cm.chat_id=$1 ORDER BY cm.id ASC`, chatID)
	return members, err
}

// AddMembers inserts the given users into the chat, skipping existing
// members, and returns the ids actually added. The chat row is locked for
// the duration so concurrent mutations cannot race past the size bound.
func (r *ChatRepo) AddMembers(ctx context.Context, chatID int, userIDs []int, maxMembers int) ([]int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = lockChat(ctx, tx, chatID); err != nil {
		return nil, err
	}

	var currentIDs []int
	if err = tx.SelectContext(ctx, &currentIDs,
		`SELECT user_id FROM chat_members WHERE chat_id=$1`, chatID); err != nil {
		return nil, err
	}
	current := make(map[int]struct{}, len(currentIDs))
	for _, id := range currentIDs {
		current[id] = struct{}{}
	}

	added := make([]int, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := current[id]; ok {
			continue
		}
		current[id] = struct{}{}
		added = append(added, id)
	}

	if len(currentIDs)+len(added) > maxMembers {
		err = ErrGroupFull
		return nil, err
	}

	for _, id := range added {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chatID, id); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveMember deletes a member under the chat row lock, enforcing the group
// size floor. When the removed member owns the chat, ownership moves to the
// earliest-joined remaining member in the same transaction, so the successor
// is always picked from the membership as committed, never from a stale read.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID int, userID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = lockChat(ctx, tx, chatID); err != nil {
		return err
	}

	var count int
	if err = tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM chat_members WHERE chat_id=$1`, chatID); err != nil {
		return err
	}
	if count-1 < models.MinGroupMembers {
		err = ErrGroupTooSmall
		return err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotMember
		return err
	}

	var ownerID int
	if err = tx.GetContext(ctx, &ownerID,
		`SELECT owner_id FROM chats WHERE id=$1`, chatID); err != nil {
		return err
	}
	if ownerID == userID {
		if _, err = tx.ExecContext(ctx,
			`UPDATE chats SET owner_id = (
                SELECT user_id FROM chat_members WHERE chat_id=$1 ORDER BY id ASC LIMIT 1
             ) WHERE id=$1`, chatID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RenameChat updates the chat display name.
func (r *ChatRepo) RenameChat(ctx context.Context, chatID int, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET name=$1 WHERE id=$2`, name, chatID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeleteChat removes the chat; membership rows cascade.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}

func lockChat(ctx context.Context, tx *sqlx.Tx, chatID int) error {
	var id int
	err := tx.GetContext(ctx, &id, `SELECT id FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrChatNotFound
	}
	return err
}
