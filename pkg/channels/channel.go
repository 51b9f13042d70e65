// Package channels abstracts the chat platforms a bot process can serve.
// The mirror engine only needs a handful of message primitives; everything
// gateway- or transport-specific stays inside the adapter.
package channels

import "context"

// Channel is the chat-platform collaborator contract. Message and channel
// ids are strings platform-wide: Discord snowflakes, Telegram integers and
// Slack timestamps all fit without loss.
type Channel interface {
	// Platform names the adapter, for logs.
	Platform() string
	// MessageLimit is the platform-imposed character capacity of one
	// message, which fixes the pagination slot size.
	MessageLimit() int

	SendMessage(ctx context.Context, channelID, body string) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, body string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error
}
