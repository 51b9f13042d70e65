package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/github"
	"github.com/SOF3/rule-mirror/pkg/logger"
	"github.com/SOF3/rule-mirror/pkg/registry"
)

// Publisher is the bus surface the ingestor needs.
type Publisher interface {
	PublishUpdate(ctx context.Context, update bus.Update) error
	PublishOnSeen(ctx context.Context, event bus.OnSeen) error
}

// Ingestor applies webhook events to the registry and fans updates out on
// the bus.
type Ingestor struct {
	reg *registry.Registry
	bus Publisher
}

// New wires an ingestor.
func New(reg *registry.Registry, publisher Publisher) *Ingestor {
	return &Ingestor{reg: reg, bus: publisher}
}

// Handle dispatches one decoded webhook event. A nil event (unknown kind) is
// acknowledged silently.
func (i *Ingestor) Handle(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case nil, PingEvent:
		return nil
	case InstallationEvent:
		return i.applySeenMulti(ctx, ev.Repositories, ev.SeenIntent())
	case InstallationRepositoriesEvent:
		if err := i.applySeenMulti(ctx, ev.RepositoriesAdded, IntentSeen); err != nil {
			return err
		}
		return i.applySeenMulti(ctx, ev.RepositoriesRemoved, IntentUnseen)
	case RepositoryEvent:
		return i.ApplySeen(ctx, ev.Repository.ID, ev.SeenIntent())
	case PushEvent:
		return i.HandlePush(ctx, ev)
	default:
		return fmt.Errorf("unhandled event type %T", event)
	}
}

func (i *Ingestor) applySeenMulti(ctx context.Context, repos []Repo, intent SeenIntent) error {
	for _, repo := range repos {
		if err := i.ApplySeen(ctx, repo.ID, intent); err != nil {
			return err
		}
	}
	return nil
}

// ApplySeen runs one transition of the seen state machine. Only an actual
// false→true change drains the deferred queues and publishes on_seen, so
// repeated "now visible" events are idempotent. Hiding never drains.
func (i *Ingestor) ApplySeen(ctx context.Context, repoID int64, intent SeenIntent) error {
	switch intent {
	case IntentNone:
		return nil
	case IntentUnseen:
		_, err := i.reg.SetSeen(ctx, repoID, false)
		return err
	case IntentSeen:
		changed, err := i.reg.SetSeen(ctx, repoID, true)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		drained, err := i.reg.DrainOnSeen(ctx, repoID)
		if err != nil {
			return err
		}
		logger.InfoCF("ingest", "Repo became seen", map[string]interface{}{
			"repo":      repoID,
			"deletions": len(drained.Deletions),
			"dereacts":  len(drained.Dereacts),
		})
		return i.bus.PublishOnSeen(ctx, drained)
	default:
		return fmt.Errorf("unknown seen intent %d", intent)
	}
}

// HandlePush publishes one Update per mirror group of the pushed repository.
// This path is not gated on seen state: informational groups refresh either
// way. A repo owning zero groups is a no-op, and a broken group is logged
// and skipped so the remaining groups still refresh.
func (i *Ingestor) HandlePush(ctx context.Context, ev PushEvent) error {
	user, repo, ok := splitFullName(ev.Repository.FullName)
	if !ok {
		return fmt.Errorf("malformed repository name %q", ev.Repository.FullName)
	}

	if err := i.reg.SetRepoName(ctx, ev.Repository.ID, ev.Repository.FullName); err != nil {
		logger.WarnCF("ingest", "Error recording repo name", map[string]interface{}{
			"repo":  ev.Repository.ID,
			"error": err.Error(),
		})
	}

	groupIDs, err := i.reg.GroupsForRepo(ctx, ev.Repository.ID)
	if err != nil {
		return err
	}

	for _, groupID := range groupIDs {
		group, err := i.reg.LoadGroup(ctx, groupID)
		if err != nil {
			logger.ErrorCF("ingest", "Skipping broken mirror group", map[string]interface{}{
				"group": groupID,
				"repo":  ev.Repository.ID,
				"error": err.Error(),
			})
			continue
		}
		update := bus.Update{
			ChannelID:  group.ChannelID,
			MessageIDs: group.MessageIDs,
			URL:        github.FileRef{User: user, Repo: repo, Path: group.Path}.RawURL(),
		}
		if err := i.bus.PublishUpdate(ctx, update); err != nil {
			logger.ErrorCF("ingest", "Error publishing update", map[string]interface{}{
				"group": groupID,
				"error": err.Error(),
			})
		}
	}
	return nil
}

func splitFullName(fullName string) (user, repo string, ok bool) {
	user, repo, found := strings.Cut(fullName, "/")
	if !found || user == "" || repo == "" {
		return "", "", false
	}
	return user, repo, true
}
