package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/channels"
	"github.com/SOF3/rule-mirror/pkg/logger"
)

// Fetcher downloads authoritative file content.
type Fetcher interface {
	FetchRaw(ctx context.Context, url string) (string, error)
}

// updateTimeout bounds one whole update pass, fetch and edits included, so a
// stalled upstream or chat platform cannot pile up goroutines.
const updateTimeout = 2 * time.Minute

// Worker applies Update messages from the bus: fetch the file, paginate it,
// and rewrite the group's messages in place.
type Worker struct {
	channel channels.Channel
	fetcher Fetcher
}

// NewWorker builds a worker bound to one chat platform adapter.
func NewWorker(channel channels.Channel, fetcher Fetcher) *Worker {
	return &Worker{channel: channel, fetcher: fetcher}
}

// Run consumes updates until the channel closes. Updates for distinct groups
// are processed fully in parallel; a failed update is logged and dropped,
// never retried automatically.
func (w *Worker) Run(ctx context.Context, updates <-chan bus.Update) {
	var wg sync.WaitGroup
	for update := range updates {
		wg.Add(1)
		go func(update bus.Update) {
			defer wg.Done()
			if err := w.Apply(ctx, update); err != nil {
				logger.ErrorCF("mirror", "Error dispatching update", map[string]interface{}{
					"channel": update.ChannelID,
					"url":     update.URL,
					"error":   err.Error(),
				})
			}
		}(update)
	}
	wg.Wait()
}

// Apply performs one synchronization pass. Each message edit is independent:
// a failed edit is logged and the remaining slots are still written.
func (w *Worker) Apply(ctx context.Context, update bus.Update) error {
	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	text, err := w.fetcher.FetchRaw(ctx, update.URL)
	if err != nil {
		return err
	}

	capacity := w.channel.MessageLimit()
	text = Truncate(text, len(update.MessageIDs), capacity, update.URL)
	pages := Paginate(text, len(update.MessageIDs), capacity)

	var wg sync.WaitGroup
	for i, messageID := range update.MessageIDs {
		body := pages[i]
		if body == "" {
			body = Placeholder
		}
		wg.Add(1)
		go func(messageID, body string) {
			defer wg.Done()
			if err := w.channel.EditMessage(ctx, update.ChannelID, messageID, body); err != nil {
				logger.ErrorCF("mirror", "Error editing mirror message", map[string]interface{}{
					"channel": update.ChannelID,
					"message": messageID,
					"error":   err.Error(),
				})
			}
		}(messageID, body)
	}
	wg.Wait()
	return nil
}
