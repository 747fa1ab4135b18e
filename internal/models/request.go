package models

import "time"

// RequestStatus is the explicit friend-request state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest is a directional proposal to establish a 1:1 chat.
// At most one pending request may exist per unordered user pair.
type FriendRequest struct {
	ID         int           `db:"id" json:"id"`
	SenderID   int           `db:"sender_id" json:"sender_id"`
	ReceiverID int           `db:"receiver_id" json:"receiver_id"`
	Status     RequestStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// FriendRequestDetail is a request expanded with sender and receiver
// display fields, as returned by store-level joins.
type FriendRequestDetail struct {
	FriendRequest
	Sender   PublicUser `json:"sender"`
	Receiver PublicUser `json:"receiver"`
}

// Resolution is the outcome of resolving a friend request.
type Resolution struct {
	Accepted bool `json:"accepted"`
	// SenderID lets the initiating client locate the new chat without a
	// full reload. Zero on rejection.
	SenderID int `json:"sender_id,omitempty"`
	ChatID   int `json:"chat_id,omitempty"`
}
