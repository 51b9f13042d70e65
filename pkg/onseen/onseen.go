// Package onseen consumes on_seen bus events and performs the deferred
// chat-side cleanup they carry.
package onseen

import (
	"context"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/channels"
	"github.com/SOF3/rule-mirror/pkg/logger"
)

// hourglass is the reaction the bot parks on messages awaiting installation;
// dereact entries remove it once the repo is seen.
const hourglass = "⏳"

// Consumer executes queued deletions and reaction removals.
type Consumer struct {
	channel channels.Channel
}

// New builds a consumer bound to one chat platform adapter.
func New(channel channels.Channel) *Consumer {
	return &Consumer{channel: channel}
}

// Run drains the events channel until it closes. Every action is independent
// and at-least-once: a failed deletion or dereact is logged and the rest of
// the batch still runs.
func (c *Consumer) Run(ctx context.Context, events <-chan bus.OnSeen) {
	for event := range events {
		c.Apply(ctx, event)
	}
}

// Apply performs one event's actions.
func (c *Consumer) Apply(ctx context.Context, event bus.OnSeen) {
	for _, ref := range event.Deletions {
		if err := c.channel.DeleteMessage(ctx, ref.Channel, ref.Message); err != nil {
			logger.ErrorCF("onseen", "Error deleting queued message", map[string]interface{}{
				"channel": ref.Channel,
				"message": ref.Message,
				"error":   err.Error(),
			})
		}
	}
	for _, ref := range event.Dereacts {
		if err := c.channel.RemoveReaction(ctx, ref.Channel, ref.Message, hourglass); err != nil {
			logger.ErrorCF("onseen", "Error removing queued reaction", map[string]interface{}{
				"channel": ref.Channel,
				"message": ref.Message,
				"error":   err.Error(),
			})
		}
	}
}
