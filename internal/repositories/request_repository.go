package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrDuplicateRequest = errors.New("pending friend request already exists")
)

// RequestRepository abstracts friend-request persistence.
type RequestRepository interface {
	CreateRequest(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error)
	HasPendingBetween(ctx context.Context, userA, userB int) (bool, error)
	GetPendingRequest(ctx context.Context, requestID int) (models.FriendRequestDetail, error)
	ListPendingForReceiver(ctx context.Context, receiverID int) ([]models.FriendRequestDetail, error)
	AcceptRequest(ctx context.Context, requestID int, chatName string) (models.Chat, error)
	RejectRequest(ctx context.Context, requestID int) error
}

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// CreateRequest inserts a pending request. The partial unique index on the
// unordered pair is the ground truth against concurrent duplicates.
func (r *RequestRepo) CreateRequest(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO friend_requests (sender_id, receiver_id) VALUES ($1, $2)
         RETURNING id, sender_id, receiver_id, status, created_at`,
		senderID, receiverID).
		Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)
	if isUniqueViolation(err) {
		return models.FriendRequest{}, ErrDuplicateRequest
	}
	return req, err
}

// HasPendingBetween reports whether a pending request exists between the two
// users, in either direction.
func (r *RequestRepo) HasPendingBetween(ctx context.Context, userA, userB int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM friend_requests
         WHERE status='pending'
         AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)))`,
		userA, userB)
	return exists, err
}

const requestDetailQuery = `SELECT r.id, r.sender_id, r.receiver_id, r.status, r.created_at,
        s.name, s.avatar, v.name, v.avatar
    FROM friend_requests r
    JOIN users s ON s.id = r.sender_id
    JOIN users v ON v.id = r.receiver_id`

// GetPendingRequest fetches a pending request expanded with sender and
// receiver display fields. Already-resolved requests are not found.
func (r *RequestRepo) GetPendingRequest(ctx context.Context, requestID int) (models.FriendRequestDetail, error) {
	var d models.FriendRequestDetail
	err := r.db.QueryRowxContext(ctx, requestDetailQuery+` WHERE r.id=$1 AND r.status='pending'`, requestID).
		Scan(&d.ID, &d.SenderID, &d.ReceiverID, &d.Status, &d.CreatedAt,
			&d.Sender.Name, &d.Sender.Avatar, &d.Receiver.Name, &d.Receiver.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequestDetail{}, ErrRequestNotFound
	}
	d.Sender.ID = d.SenderID
	d.Receiver.ID = d.ReceiverID
	return d, err
}

// ListPendingForReceiver returns pending requests addressed to the user,
// sender fields expanded.
func (r *RequestRepo) ListPendingForReceiver(ctx context.Context, receiverID int) ([]models.FriendRequestDetail, error) {
	rows, err := r.db.QueryxContext(ctx,
		requestDetailQuery+` WHERE r.receiver_id=$1 AND r.status='pending' ORDER BY r.created_at DESC`,
		receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.FriendRequestDetail
	for rows.Next() {
		var d models.FriendRequestDetail
		if err := rows.Scan(&d.ID, &d.SenderID, &d.ReceiverID, &d.Status, &d.CreatedAt,
			&d.Sender.Name, &d.Sender.Avatar, &d.Receiver.Name, &d.Receiver.Avatar); err != nil {
			return nil, err
		}
		d.Sender.ID = d.SenderID
		d.Receiver.ID = d.ReceiverID
		result = append(result, d)
	}
	return result, rows.Err()
}

// AcceptRequest transitions a pending request to accepted and creates the
// derived 1:1 chat in the same transaction. A request resolves at most once:
// the guarded UPDATE matches zero rows on a second attempt.
func (r *RequestRepo) AcceptRequest(ctx context.Context, requestID int, chatName string) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var senderID, receiverID int
	err = tx.QueryRowxContext(ctx,
		`UPDATE friend_requests SET status='accepted' WHERE id=$1 AND status='pending'
         RETURNING sender_id, receiver_id`, requestID).
		Scan(&senderID, &receiverID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrRequestNotFound
		return models.Chat{}, err
	}
	if err != nil {
		return models.Chat{}, err
	}

	var chat models.Chat
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (name, group_chat) VALUES ($1, FALSE)
         RETURNING id, name, group_chat, owner_id, created_at`, chatName).
		Scan(&chat.ID, &chat.Name, &chat.GroupChat, &chat.OwnerID, &chat.CreatedAt); err != nil {
		return models.Chat{}, err
	}

	for _, userID := range []int{senderID, receiverID} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, userID); err != nil {
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// RejectRequest transitions a pending request to rejected.
func (r *RequestRepo) RejectRequest(ctx context.Context, requestID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friend_requests SET status='rejected' WHERE id=$1 AND status='pending'`, requestID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRequestNotFound
	}
	return nil
}
