// Package delivery sends reminder texts to recipients and to the shared
// broadcast destination.
package delivery

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidRecipient means the id cannot address anything on the platform.
	ErrInvalidRecipient = errors.New("delivery: invalid recipient")
	// ErrUnreachable means the platform refused or could not find the recipient.
	ErrUnreachable = errors.New("delivery: recipient unreachable")
	// ErrNoDestination means no broadcast destination is configured.
	ErrNoDestination = errors.New("delivery: no broadcast destination")
)

// Destination is the shared chat where notified recipients are mentioned together.
// ChannelID is optional; empty means the chat itself rather than a topic.
type Destination struct {
	GroupID   string
	ChannelID string
}

func (d Destination) IsZero() bool { return strings.TrimSpace(d.GroupID) == "" }

// Deliverer is the notification collaborator the reminder dispatcher drives.
// Implementations must be safe for concurrent use and must not retry.
type Deliverer interface {
	DeliverDirect(ctx context.Context, recipientID, text string) error
	DeliverBroadcast(ctx context.Context, recipientIDs []string, dest Destination, text string) error
}
