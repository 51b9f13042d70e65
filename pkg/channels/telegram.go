package channels

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
)

// telegramMessageLimit is Telegram's cap on one message text.
const telegramMessageLimit = 4096

// Telegram adapts a telego bot to the Channel contract. Telegram addresses
// messages by (int64 chat id, int message id); both are carried as decimal
// strings across the registry and bus.
type Telegram struct {
	bot *telego.Bot
}

// NewTelegram wraps an existing bot API client.
func NewTelegram(bot *telego.Bot) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Platform() string  { return "telegram" }
func (t *Telegram) MessageLimit() int { return telegramMessageLimit }

func parseTelegramIDs(channelID, messageID string) (telego.ChatID, int, error) {
	chat, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return telego.ChatID{}, 0, fmt.Errorf("telegram chat id %q: %w", channelID, err)
	}
	msg, err := strconv.Atoi(messageID)
	if err != nil {
		return telego.ChatID{}, 0, fmt.Errorf("telegram message id %q: %w", messageID, err)
	}
	return telego.ChatID{ID: chat}, msg, nil
}

func (t *Telegram) SendMessage(ctx context.Context, channelID, body string) (string, error) {
	chat, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram chat id %q: %w", channelID, err)
	}
	msg, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chat},
		Text:   body,
	})
	if err != nil {
		return "", fmt.Errorf("telegram send to %s: %w", channelID, err)
	}
	return strconv.Itoa(msg.MessageID), nil
}

func (t *Telegram) EditMessage(ctx context.Context, channelID, messageID, body string) error {
	chat, msg, err := parseTelegramIDs(channelID, messageID)
	if err != nil {
		return err
	}
	if _, err := t.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    chat,
		MessageID: msg,
		Text:      body,
	}); err != nil {
		return fmt.Errorf("telegram edit %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	chat, msg, err := parseTelegramIDs(channelID, messageID)
	if err != nil {
		return err
	}
	if err := t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    chat,
		MessageID: msg,
	}); err != nil {
		return fmt.Errorf("telegram delete %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (t *Telegram) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	chat, msg, err := parseTelegramIDs(channelID, messageID)
	if err != nil {
		return err
	}
	if err := t.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    chat,
		MessageID: msg,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: emoji},
		},
	}); err != nil {
		return fmt.Errorf("telegram react %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// RemoveReaction clears the bot's reactions; Telegram replaces the reaction
// set wholesale, so removal is an empty set.
func (t *Telegram) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	chat, msg, err := parseTelegramIDs(channelID, messageID)
	if err != nil {
		return err
	}
	if err := t.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    chat,
		MessageID: msg,
	}); err != nil {
		return fmt.Errorf("telegram unreact %s/%s: %w", channelID, messageID, err)
	}
	return nil
}
