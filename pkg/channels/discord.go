package channels

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordMessageLimit is the hard character cap Discord places on one
// message body.
const discordMessageLimit = 2000

// Discord adapts a discordgo session to the Channel contract. The session is
// shared with the interactive bot front-end; this adapter never opens or
// closes the gateway.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps an existing session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

// Session exposes the underlying gateway session for the bot front-end.
func (d *Discord) Session() *discordgo.Session { return d.session }

func (d *Discord) Platform() string  { return "discord" }
func (d *Discord) MessageLimit() int { return discordMessageLimit }

func (d *Discord) SendMessage(ctx context.Context, channelID, body string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, body, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord send to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (d *Discord) EditMessage(ctx context.Context, channelID, messageID, body string) error {
	if _, err := d.session.ChannelMessageEdit(channelID, messageID, body, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord edit %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord delete %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := d.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord react %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (d *Discord) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := d.session.MessageReactionRemove(channelID, messageID, emoji, "@me", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord unreact %s/%s: %w", channelID, messageID, err)
	}
	return nil
}
