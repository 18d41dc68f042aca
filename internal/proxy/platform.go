package proxy

import (
	"context"
	"time"
)

// Platform is what the core needs from the chat service.
type Platform interface {
	// Impersonation returns the channel's posting identity, creating it on
	// first use. There is one per text channel, shared by all characters.
	Impersonation(ctx context.Context, channelID string) (Identity, error)

	// Relayed loads a message previously posted through an impersonation
	// identity. Messages the bot did not relay yield apperr.ErrNotFound.
	Relayed(ctx context.Context, loc Location, messageID string) (Relayed, error)

	// Send posts a plain message as the bot and returns its id.
	Send(ctx context.Context, channelID, content string) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// SendDirect delivers a private message. Failures wrap apperr.ErrDelivery.
	SendDirect(ctx context.Context, userID string, dm Direct) error

	// AwaitReply waits for the next message by userID in channelID.
	// Expiry returns apperr.ErrTimeout.
	AwaitReply(ctx context.Context, userID, channelID string, timeout time.Duration) (*Reply, error)
}

// Identity posts messages under any display name and avatar.
type Identity interface {
	Post(ctx context.Context, p Post) (Relayed, error)
}

// Post is a single impersonated message.
type Post struct {
	Username  string
	AvatarURL string
	Content   string
	ThreadID  string
}

// Relayed is a handle on a message posted through an Identity.
type Relayed interface {
	ID() string
	// AuthorName is the display name the message was posted under.
	AuthorName() string
	AddReaction(ctx context.Context, symbol string) error
	RemoveReaction(ctx context.Context, symbol, userID string) error
	Edit(ctx context.Context, content string) error
	Delete(ctx context.Context) error
}

// Direct is a private message: plain text, a character sheet, or both.
type Direct struct {
	Content string
	Sheet   *Sheet
}

// Reply is a follow-up message collected by AwaitReply.
type Reply struct {
	ID        string
	ChannelID string
	Content   string
}
