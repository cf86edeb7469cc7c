package transport

import (
	"context"
	"errors"
)

// ErrForbidden is returned by adapters when the platform refuses delivery to a
// chat (recipient blocked the bot, account deactivated, DMs closed).
var ErrForbidden = errors.New("transport: forbidden")

// ErrUnknownChat is returned when the platform does not know the chat or user.
var ErrUnknownChat = errors.New("transport: unknown chat")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// User is the subset of a platform account needed to address and mention it.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns a human label for mentions.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "user"
	}
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	LookupUser(ctx context.Context, userID int64) (User, error)
}
