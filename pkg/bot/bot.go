// Package bot is the interactive Discord front-end: mention-prefixed
// commands for creating mirror groups, plus the hourglass/installation
// bookkeeping around unseen repositories.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/channels"
	"github.com/SOF3/rule-mirror/pkg/logger"
	"github.com/SOF3/rule-mirror/pkg/mirror"
	"github.com/SOF3/rule-mirror/pkg/registry"
)

// hourglass is parked on a command message while the bot works on it, and
// stays there until the repo is seen when the mirrored repo is unknown.
const hourglass = "⏳"

// commandTimeout bounds one interactive command end to end.
const commandTimeout = time.Minute

// Bot drives the Discord gateway session and command handling.
type Bot struct {
	discord *channels.Discord
	manager *mirror.Manager
	reg     *registry.Registry

	prefix1    string
	prefix2    string
	inviteLink string
}

// New wires the front-end. clientID is the Discord application id, used to
// recognize mentions of the bot and to build the invite link.
func New(discord *channels.Discord, manager *mirror.Manager, reg *registry.Registry, clientID string) *Bot {
	return &Bot{
		discord:    discord,
		manager:    manager,
		reg:        reg,
		prefix1:    "<@!" + clientID + ">",
		prefix2:    "<@" + clientID + ">",
		inviteLink: fmt.Sprintf("https://discord.com/oauth2/authorize?client_id=%s&scope=bot", clientID),
	}
}

// Start opens the gateway and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	session := b.discord.Session()
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	session.AddHandler(func(s *discordgo.Session, _ *discordgo.Ready) {
		if err := s.UpdateGameStatus(0, "https://github.com/SOF3/rule-mirror"); err != nil {
			logger.WarnCF("bot", "Error setting activity", map[string]interface{}{"error": err.Error()})
		}
	})
	session.AddHandler(b.onMessage)
	session.AddHandler(b.onMessageDelete)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	logger.InfoCF("bot", "Connected to Discord", map[string]interface{}{
		"invite": b.inviteLink,
	})

	<-ctx.Done()
	return session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	content := m.Content
	if rest, ok := strings.CutPrefix(content, b.prefix1); ok {
		content = rest
	} else if rest, ok := strings.CutPrefix(content, b.prefix2); ok {
		content = rest
	} else {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := b.handleCommand(ctx, m, strings.Fields(content)); err != nil {
			logger.ErrorCF("bot", "Error handling command", map[string]interface{}{
				"channel": m.ChannelID,
				"error":   err.Error(),
			})
		}
	}()
}

func (b *Bot) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if groupID, ok := b.deletedMirrorGroup(ctx, m.ID); ok {
		logger.WarnCF("bot", "Mirrored message was deleted, group is incomplete", map[string]interface{}{
			"group":   groupID,
			"channel": m.ChannelID,
			"message": m.ID,
		})
	}
}

// deletedMirrorGroup resolves a deleted message through the reverse index
// and reports the mirror group it belonged to, if any. A group missing one
// of its messages can no longer render updates in full, so deletions of
// mirrored content are surfaced rather than discovered on the next push.
func (b *Bot) deletedMirrorGroup(ctx context.Context, messageID string) (string, bool) {
	groupID, err := b.reg.GroupForMessage(ctx, messageID)
	if errors.Is(err, registry.ErrNotFound) {
		return "", false
	}
	if err != nil {
		logger.ErrorCF("bot", "Error resolving deleted message", map[string]interface{}{
			"message": messageID,
			"error":   err.Error(),
		})
		return "", false
	}
	return groupID, true
}

func (b *Bot) handleCommand(ctx context.Context, m *discordgo.MessageCreate, args []string) error {
	if len(args) == 0 {
		return nil
	}
	logger.DebugCF("bot", "Received command", map[string]interface{}{"command": args[0]})

	reacted := b.discord.AddReaction(ctx, m.ChannelID, m.ID, hourglass) == nil
	keepReaction := false
	defer func() {
		if reacted && !keepReaction {
			if err := b.discord.RemoveReaction(ctx, m.ChannelID, m.ID, hourglass); err != nil {
				logger.WarnCF("bot", "Error removing reaction", map[string]interface{}{"error": err.Error()})
			}
		}
	}()

	switch args[0] {
	case "invite":
		_, err := b.reply(ctx, m, "Invite link: "+b.inviteLink)
		return err

	case "mirror":
		result, err := b.manager.CreateMirror(ctx, m.ChannelID, args[1:])
		if err != nil {
			logger.WarnCF("bot", "Mirror command failed", map[string]interface{}{"error": err.Error()})
			if _, replyErr := b.reply(ctx, m, userFacing(err)); replyErr != nil {
				return replyErr
			}
			return nil
		}
		if result.Warning == "" {
			return nil
		}

		// The repo is unknown: leave the hourglass on the command message
		// and queue both cleanups for the seen transition, so the warning
		// disappears and the hourglass clears once the app is installed.
		warnMsg, err := b.reply(ctx, m, result.Warning)
		if err != nil {
			return err
		}
		keepReaction = reacted
		if err := b.reg.QueueDeleteOnSeen(ctx, result.RepoID, bus.MessageRef{
			Channel: m.ChannelID, Message: warnMsg,
		}); err != nil {
			logger.ErrorCF("bot", "Error queueing warning deletion", map[string]interface{}{"error": err.Error()})
		}
		if reacted {
			if err := b.reg.QueueDereactOnSeen(ctx, result.RepoID, bus.MessageRef{
				Channel: m.ChannelID, Message: m.ID,
			}); err != nil {
				logger.ErrorCF("bot", "Error queueing dereact", map[string]interface{}{"error": err.Error()})
			}
		}
		return nil

	default:
		return nil
	}
}

// reply sends a message referencing the invoking one and returns its id.
func (b *Bot) reply(ctx context.Context, m *discordgo.MessageCreate, content string) (string, error) {
	msg, err := b.discord.Session().ChannelMessageSendReply(
		m.ChannelID, content, m.Reference(), discordgo.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("reply in %s: %w", m.ChannelID, err)
	}
	return msg.ID, nil
}

// userFacing picks the reply text for a failed command. Usage errors are
// shown verbatim; anything else gets a generic lead-in.
func userFacing(err error) string {
	if errors.Is(err, mirror.ErrUsage) {
		return err.Error()
	}
	return "Something went wrong: " + err.Error()
}
