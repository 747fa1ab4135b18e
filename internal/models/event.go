package models

// Real-time event names pushed to connected sessions. Both are refetch
// signals: the payload carries nothing beyond the trigger itself.
const (
	EventNewRequest   = "NEW_REQUEST"
	EventRefetchChats = "REFETCH_CHATS"
)

// SessionEvent is the frame written to a user's websocket sessions.
type SessionEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
