package channels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// slackMessageLimit keeps rendered messages beneath Slack's recommended text
// ceiling.
const slackMessageLimit = 4000

// slackEmojiNames maps the unicode emoji used by the mirror flows to Slack
// reaction names. Unknown emoji pass through unchanged.
var slackEmojiNames = map[string]string{
	"⏳":  "hourglass_flowing_sand",
	"⚠️": "warning",
}

// Slack adapts a slack API client to the Channel contract. Message ids are
// Slack timestamps.
type Slack struct {
	api *slack.Client
}

// NewSlack wraps an existing API client.
func NewSlack(api *slack.Client) *Slack {
	return &Slack{api: api}
}

func (s *Slack) Platform() string  { return "slack" }
func (s *Slack) MessageLimit() int { return slackMessageLimit }

func (s *Slack) SendMessage(ctx context.Context, channelID, body string) (string, error) {
	_, ts, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(body, false))
	if err != nil {
		return "", fmt.Errorf("slack send to %s: %w", channelID, err)
	}
	return ts, nil
}

func (s *Slack) EditMessage(ctx context.Context, channelID, messageID, body string) error {
	if _, _, _, err := s.api.UpdateMessageContext(ctx, channelID, messageID, slack.MsgOptionText(body, false)); err != nil {
		return fmt.Errorf("slack edit %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (s *Slack) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if _, _, err := s.api.DeleteMessageContext(ctx, channelID, messageID); err != nil {
		return fmt.Errorf("slack delete %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (s *Slack) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	name := emoji
	if mapped, ok := slackEmojiNames[emoji]; ok {
		name = mapped
	}
	if err := s.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channelID, messageID)); err != nil {
		return fmt.Errorf("slack react %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

func (s *Slack) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	name := emoji
	if mapped, ok := slackEmojiNames[emoji]; ok {
		name = mapped
	}
	if err := s.api.RemoveReactionContext(ctx, name, slack.NewRefToMessage(channelID, messageID)); err != nil {
		return fmt.Errorf("slack unreact %s/%s: %w", channelID, messageID, err)
	}
	return nil
}
