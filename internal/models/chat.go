package models

import "time"

// Group chats hold between MinGroupMembers and the configured maximum;
// a non-group chat always has exactly two members.
const MinGroupMembers = 3

// Chat is a conversation entity, either 1:1 or group.
type Chat struct {
	ID        int    `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	GroupChat bool   `db:"group_chat" json:"group_chat"`
	// OwnerID is zero for 1:1 chats; group membership mutations are
	// authorized against it.
	OwnerID   int       `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatDetail is a chat expanded with its member display fields,
// ordered by join sequence (owner first for groups).
type ChatDetail struct {
	Chat
	Members []PublicUser `json:"members"`
}

// MemberIDs returns the ids of the expanded member set.
func (c ChatDetail) MemberIDs() []int {
	ids := make([]int, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// HasMember reports whether the user belongs to the chat.
func (c ChatDetail) HasMember(userID int) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// OtherMember returns the counterpart in a 1:1 chat.
func (c ChatDetail) OtherMember(userID int) (PublicUser, bool) {
	for _, m := range c.Members {
		if m.ID != userID {
			return m, true
		}
	}
	return PublicUser{}, false
}
