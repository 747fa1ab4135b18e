package services

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure. All kinds are recoverable: the
// operation reports them to the caller and leaves prior state unchanged.
type Kind string

const (
	KindDuplicateRequest Kind = "DUPLICATE_REQUEST"
	KindRequestNotFound  Kind = "REQUEST_NOT_FOUND"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindUserNotFound     Kind = "USER_NOT_FOUND"
	KindChatNotFound     Kind = "CHAT_NOT_FOUND"
	KindNotGroupChat     Kind = "NOT_GROUP_CHAT"
	KindGroupFull        Kind = "GROUP_FULL"
	KindGroupTooSmall    Kind = "GROUP_TOO_SMALL"
	KindSelfOperation    Kind = "SELF_OPERATION"
)

// Error is a typed workflow failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func failure(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, or empty for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
