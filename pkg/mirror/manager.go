package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/SOF3/rule-mirror/pkg/channels"
	"github.com/SOF3/rule-mirror/pkg/github"
	"github.com/SOF3/rule-mirror/pkg/logger"
	"github.com/SOF3/rule-mirror/pkg/registry"
)

// ErrUsage marks a malformed mirror command. Its message is shown to the
// user verbatim and is not a system fault.
var ErrUsage = errors.New("usage: mirror <url> [message splits]")

// Repos looks up repository metadata on the hosting platform.
type Repos interface {
	LookupRepoID(ctx context.Context, user, repo string) (int64, error)
}

// Manager handles the interactive command that creates a new mirror group.
type Manager struct {
	reg     *registry.Registry
	fetcher Fetcher
	repos   Repos
	channel channels.Channel
	appURL  string
}

// NewManager wires the group-creation flow.
func NewManager(reg *registry.Registry, fetcher Fetcher, repos Repos, channel channels.Channel, appURL string) *Manager {
	return &Manager{reg: reg, fetcher: fetcher, repos: repos, channel: channel, appURL: appURL}
}

// CreateResult reports a successful group creation. Warning is advisory text
// for the invoking user, empty when the repo is already seen.
type CreateResult struct {
	GroupID    string
	RepoID     int64
	MessageIDs []string
	Seen       bool
	Warning    string
}

// CreateMirror runs the whole creation protocol: parse the URL, resolve the
// repo id, fetch the content, send one message per page, and persist the
// group.
func (m *Manager) CreateMirror(ctx context.Context, channelID string, args []string) (*CreateResult, error) {
	if len(args) < 1 {
		return nil, ErrUsage
	}
	pages := 1
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return nil, ErrUsage
		}
		pages = n
	}

	ref, ok := github.ParseFileURL(args[0])
	if !ok {
		return nil, fmt.Errorf("the URL must be a file on a GitHub repo: %w", ErrUsage)
	}

	repoID, err := m.repos.LookupRepoID(ctx, ref.User, ref.Repo)
	if err != nil {
		return nil, fmt.Errorf("look up repository: %w", err)
	}

	rawURL := ref.RawURL()
	text, err := m.fetcher.FetchRaw(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}

	capacity := m.channel.MessageLimit()
	if needed := PageCount(len(text), capacity); needed > pages {
		pages = needed
	}
	// Rune backoff at slot boundaries can leave a tail that the byte count
	// alone says should fit; add pages until everything is placed.
	for fitLength(text, pages, capacity) < len(text) {
		pages++
	}

	slices := Paginate(text, pages, capacity)
	messageIDs := make([]string, 0, pages)
	for _, slice := range slices {
		body := slice
		if body == "" {
			body = Placeholder
		}
		id, err := m.channel.SendMessage(ctx, channelID, body)
		if err != nil {
			return nil, fmt.Errorf("send mirror message: %w", err)
		}
		messageIDs = append(messageIDs, id)
	}

	groupID, err := m.reg.CreateGroup(ctx, repoID, ref.Path, channelID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("store mirror group: %w", err)
	}
	if err := m.reg.SetRepoName(ctx, repoID, ref.User+"/"+ref.Repo); err != nil {
		logger.WarnCF("mirror", "Error recording repo name", map[string]interface{}{
			"repo":  repoID,
			"error": err.Error(),
		})
	}
	logger.InfoCF("mirror", "Mirror group created", map[string]interface{}{
		"group":   groupID,
		"repo":    repoID,
		"path":    ref.Path,
		"channel": channelID,
		"pages":   pages,
	})

	result := &CreateResult{GroupID: groupID, RepoID: repoID, MessageIDs: messageIDs, Seen: true}
	seen, err := m.reg.IsSeen(ctx, repoID)
	if err != nil {
		// The group itself is stored; the missing advisory is not worth
		// failing the command over.
		logger.ErrorCF("mirror", "Error checking seen status", map[string]interface{}{
			"repo":  repoID,
			"error": err.Error(),
		})
		return result, nil
	}
	if !seen {
		result.Seen = false
		result.Warning = fmt.Sprintf(
			"⚠️ I have never heard from this repo. Please ask the repo owner to install the GitHub App at %s so updates reach this mirror.",
			m.appURL,
		)
	}
	return result, nil
}
