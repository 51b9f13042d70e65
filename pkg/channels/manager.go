package channels

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	"github.com/slack-go/slack"

	"github.com/SOF3/rule-mirror/pkg/config"
)

// New builds the channel adapter selected by configuration. One bot process
// drives exactly one platform; deployments serving several platforms run one
// process per platform against the same redis.
func New(cfg config.ChatConfig) (Channel, error) {
	switch cfg.Platform {
	case "discord":
		if cfg.Discord.Token == "" {
			return nil, fmt.Errorf("discord platform selected but no token configured")
		}
		session, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("build discord session: %w", err)
		}
		return NewDiscord(session), nil

	case "telegram":
		if cfg.Telegram.Token == "" {
			return nil, fmt.Errorf("telegram platform selected but no token configured")
		}
		bot, err := telego.NewBot(cfg.Telegram.Token, telego.WithDiscardLogger())
		if err != nil {
			return nil, fmt.Errorf("build telegram bot: %w", err)
		}
		return NewTelegram(bot), nil

	case "slack":
		if cfg.Slack.Token == "" {
			return nil, fmt.Errorf("slack platform selected but no token configured")
		}
		return NewSlack(slack.New(cfg.Slack.Token)), nil

	default:
		return nil, fmt.Errorf("unknown chat platform %q", cfg.Platform)
	}
}
