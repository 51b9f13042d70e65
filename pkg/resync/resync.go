// Package resync republishes an Update for every registered mirror group on
// a cron schedule. Pub/sub delivery is fire-and-forget, so a bot process
// that was down during a push misses its updates; the periodic resync is the
// recovery path.
package resync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/github"
	"github.com/SOF3/rule-mirror/pkg/logger"
	"github.com/SOF3/rule-mirror/pkg/registry"
)

// Publisher is the bus surface the resyncer needs.
type Publisher interface {
	PublishUpdate(ctx context.Context, update bus.Update) error
}

// Resyncer walks the registry and republishes updates when its cron
// expression is due.
type Resyncer struct {
	reg  *registry.Registry
	bus  Publisher
	expr string
	gron *gronx.Gronx
}

// New validates the cron expression and builds a resyncer.
func New(reg *registry.Registry, publisher Publisher, cronExpr string) (*Resyncer, error) {
	g := gronx.New()
	if !g.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid resync cron expression %q", cronExpr)
	}
	return &Resyncer{reg: reg, bus: publisher, expr: cronExpr, gron: g}, nil
}

// Run ticks once a minute and resyncs whenever the expression is due, until
// ctx is cancelled.
func (r *Resyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := r.gron.IsDue(r.expr, now)
			if err != nil || !due {
				continue
			}
			if err := r.ResyncAll(ctx); err != nil {
				logger.ErrorCF("resync", "Resync pass failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// ResyncAll publishes one Update per registered mirror group. The raw URL is
// rebuilt from the stored path; per-group failures are logged and skipped.
func (r *Resyncer) ResyncAll(ctx context.Context) error {
	repos, err := r.reg.RepoIDs(ctx)
	if err != nil {
		return err
	}

	var published int
	for _, repoID := range repos {
		fullName, err := r.reg.RepoName(ctx, repoID)
		if err != nil {
			logger.WarnCF("resync", "Repo has no recorded name, skipping", map[string]interface{}{
				"repo":  repoID,
				"error": err.Error(),
			})
			continue
		}
		user, repo, ok := strings.Cut(fullName, "/")
		if !ok {
			logger.WarnCF("resync", "Malformed repo name, skipping", map[string]interface{}{
				"repo": repoID,
				"name": fullName,
			})
			continue
		}

		groupIDs, err := r.reg.GroupsForRepo(ctx, repoID)
		if err != nil {
			logger.ErrorCF("resync", "Error listing groups", map[string]interface{}{
				"repo":  repoID,
				"error": err.Error(),
			})
			continue
		}
		for _, groupID := range groupIDs {
			group, err := r.reg.LoadGroup(ctx, groupID)
			if err != nil {
				logger.ErrorCF("resync", "Skipping broken mirror group", map[string]interface{}{
					"group": groupID,
					"error": err.Error(),
				})
				continue
			}
			update := bus.Update{
				ChannelID:  group.ChannelID,
				MessageIDs: group.MessageIDs,
				URL:        github.FileRef{User: user, Repo: repo, Path: group.Path}.RawURL(),
			}
			if err := r.bus.PublishUpdate(ctx, update); err != nil {
				logger.ErrorCF("resync", "Error publishing update", map[string]interface{}{
					"group": groupID,
					"error": err.Error(),
				})
				continue
			}
			published++
		}
	}
	logger.InfoCF("resync", "Resync pass complete", map[string]interface{}{
		"repos":   len(repos),
		"updates": published,
	})
	return nil
}
