// Package registry is the redis-backed source of truth for mirror groups and
// per-repository seen state. Every operation is a network round-trip against
// the shared store; consistency comes from the atomicity of the individual
// redis commands (and MULTI/EXEC where one operation spans several keys), not
// from cross-operation transactions.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SOF3/rule-mirror/pkg/bus"
)

// ErrNotFound reports a missing or internally inconsistent group record. A
// group whose sub-keys only partially exist is corruption, not absence, and
// is reported the same way.
var ErrNotFound = errors.New("mirror group not found")

// MirrorGroup binds one upstream file path to an ordered set of chat
// messages. Immutable once created; content changes rewrite message bodies,
// never this record.
type MirrorGroup struct {
	ID         string
	RepoID     int64
	Path       string
	ChannelID  string
	MessageIDs []string
}

// Registry wraps a redis client with the mirror-group key schema:
//
//	seen                          SET of repo ids
//	repo:<repoID>                 SET of group ids
//	mirror-group:<id>:path        STRING
//	mirror-group:<id>:channel     STRING
//	mirror-group:<id>:messages    LIST (pagination order)
//	mirror-group-rev:<messageID>  STRING group id
//	delete-on-seen:<repoID>       LIST of JSON message refs
//	dereact-on-seen:<repoID>      LIST of JSON message refs
type Registry struct {
	rdb *redis.Client
}

// New wraps an existing redis client.
func New(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Connect parses a redis URL, connects, and verifies the connection with a
// ping.
func Connect(ctx context.Context, redisURL string) (*Registry, *redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(rdb), rdb, nil
}

func repoKey(repoID int64) string         { return "repo:" + strconv.FormatInt(repoID, 10) }
func repoNameKey(repoID int64) string     { return "repo-name:" + strconv.FormatInt(repoID, 10) }
func groupRepoKey(groupID string) string  { return "mirror-group:" + groupID + ":repo" }
func pathKey(groupID string) string       { return "mirror-group:" + groupID + ":path" }
func channelKey(groupID string) string    { return "mirror-group:" + groupID + ":channel" }
func messagesKey(groupID string) string   { return "mirror-group:" + groupID + ":messages" }
func reverseKey(messageID string) string  { return "mirror-group-rev:" + messageID }
func deleteQueueKey(repoID int64) string  { return "delete-on-seen:" + strconv.FormatInt(repoID, 10) }
func dereactQueueKey(repoID int64) string { return "dereact-on-seen:" + strconv.FormatInt(repoID, 10) }

// CreateGroup allocates a fresh group id, indexes the group under its repo,
// stores its fields, and records the reverse message→group mapping. The id is
// re-rolled if it already exists; retrying the whole call after a partial
// failure is safe because every sub-write is idempotent for a fixed id.
func (r *Registry) CreateGroup(ctx context.Context, repoID int64, path, channelID string, messageIDs []string) (string, error) {
	if len(messageIDs) == 0 {
		return "", errors.New("mirror group needs at least one message")
	}

	var id string
	for {
		id = uuid.NewString()
		exists, err := r.rdb.Exists(ctx, pathKey(id)).Result()
		if err != nil {
			return "", fmt.Errorf("check group id collision: %w", err)
		}
		if exists == 0 {
			break
		}
	}

	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, repoKey(repoID), id)
	pipe.Set(ctx, groupRepoKey(id), strconv.FormatInt(repoID, 10), 0)
	pipe.Set(ctx, pathKey(id), path, 0)
	pipe.Set(ctx, channelKey(id), channelID, 0)
	pipe.Del(ctx, messagesKey(id))
	ids := make([]interface{}, len(messageIDs))
	for i, m := range messageIDs {
		ids[i] = m
		pipe.Set(ctx, reverseKey(m), id, 0)
	}
	pipe.RPush(ctx, messagesKey(id), ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store mirror group: %w", err)
	}
	return id, nil
}

// GroupsForRepo returns the ids of every mirror group registered for a repo.
// A repo with no groups yields an empty slice, not an error.
func (r *Registry) GroupsForRepo(ctx context.Context, repoID int64) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, repoKey(repoID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list groups for repo %d: %w", repoID, err)
	}
	return ids, nil
}

// LoadGroup fetches all fields of a group. Any missing sub-key makes the
// whole record invalid.
func (r *Registry) LoadGroup(ctx context.Context, groupID string) (*MirrorGroup, error) {
	pipe := r.rdb.Pipeline()
	repoCmd := pipe.Get(ctx, groupRepoKey(groupID))
	pathCmd := pipe.Get(ctx, pathKey(groupID))
	channelCmd := pipe.Get(ctx, channelKey(groupID))
	messagesCmd := pipe.LRange(ctx, messagesKey(groupID), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
		}
		return nil, fmt.Errorf("load group %s: %w", groupID, err)
	}

	messages := messagesCmd.Val()
	if len(messages) == 0 {
		return nil, fmt.Errorf("group %s has no messages: %w", groupID, ErrNotFound)
	}
	repoID, err := strconv.ParseInt(repoCmd.Val(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("group %s has malformed repo id %q: %w", groupID, repoCmd.Val(), ErrNotFound)
	}
	return &MirrorGroup{
		ID:         groupID,
		RepoID:     repoID,
		Path:       pathCmd.Val(),
		ChannelID:  channelCmd.Val(),
		MessageIDs: messages,
	}, nil
}

// GroupForMessage resolves the reverse index: which group owns a message.
func (r *Registry) GroupForMessage(ctx context.Context, messageID string) (string, error) {
	id, err := r.rdb.Get(ctx, reverseKey(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reverse lookup for message %s: %w", messageID, err)
	}
	return id, nil
}

// SetSeen sets the seen flag and reports whether the stored value changed.
// Idempotent; draining the deferred queues is a separate, explicit step.
func (r *Registry) SetSeen(ctx context.Context, repoID int64, seen bool) (bool, error) {
	member := strconv.FormatInt(repoID, 10)
	var (
		changed int64
		err     error
	)
	if seen {
		changed, err = r.rdb.SAdd(ctx, "seen", member).Result()
	} else {
		changed, err = r.rdb.SRem(ctx, "seen", member).Result()
	}
	if err != nil {
		return false, fmt.Errorf("set seen=%t for repo %d: %w", seen, repoID, err)
	}
	return changed > 0, nil
}

// IsSeen reports the seen flag; an absent repo is unseen.
func (r *Registry) IsSeen(ctx context.Context, repoID int64) (bool, error) {
	seen, err := r.rdb.SIsMember(ctx, "seen", strconv.FormatInt(repoID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("check seen for repo %d: %w", repoID, err)
	}
	return seen, nil
}

// QueueDeleteOnSeen appends a message deletion to run once the repo becomes
// seen.
func (r *Registry) QueueDeleteOnSeen(ctx context.Context, repoID int64, ref bus.MessageRef) error {
	return r.queueRef(ctx, deleteQueueKey(repoID), ref)
}

// QueueDereactOnSeen appends a reaction removal to run once the repo becomes
// seen.
func (r *Registry) QueueDereactOnSeen(ctx context.Context, repoID int64, ref bus.MessageRef) error {
	return r.queueRef(ctx, dereactQueueKey(repoID), ref)
}

func (r *Registry) queueRef(ctx context.Context, key string, ref bus.MessageRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encode message ref: %w", err)
	}
	if err := r.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("queue deferred action on %s: %w", key, err)
	}
	return nil
}

// DrainOnSeen atomically reads and clears both deferred-action queues. An
// enqueue racing with the drain lands either in the returned event or in the
// store for the next drain, never both and never nowhere. Empty queues drain
// to an empty event without error.
func (r *Registry) DrainOnSeen(ctx context.Context, repoID int64) (bus.OnSeen, error) {
	pipe := r.rdb.TxPipeline()
	delCmd := pipe.LRange(ctx, deleteQueueKey(repoID), 0, -1)
	dereactCmd := pipe.LRange(ctx, dereactQueueKey(repoID), 0, -1)
	pipe.Del(ctx, deleteQueueKey(repoID), dereactQueueKey(repoID))
	if _, err := pipe.Exec(ctx); err != nil {
		return bus.OnSeen{}, fmt.Errorf("drain deferred actions for repo %d: %w", repoID, err)
	}

	deletions, err := decodeRefs(delCmd.Val())
	if err != nil {
		return bus.OnSeen{}, fmt.Errorf("repo %d delete queue: %w", repoID, err)
	}
	dereacts, err := decodeRefs(dereactCmd.Val())
	if err != nil {
		return bus.OnSeen{}, fmt.Errorf("repo %d dereact queue: %w", repoID, err)
	}
	return bus.OnSeen{Deletions: deletions, Dereacts: dereacts}, nil
}

func decodeRefs(raw []string) ([]bus.MessageRef, error) {
	refs := make([]bus.MessageRef, 0, len(raw))
	for _, item := range raw {
		var ref bus.MessageRef
		if err := json.Unmarshal([]byte(item), &ref); err != nil {
			return nil, fmt.Errorf("decode message ref %q: %w", item, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// SetRepoName records the current owner/name pair of a repo. Written at
// group creation and refreshed on every push, so renames heal on the next
// upstream event.
func (r *Registry) SetRepoName(ctx context.Context, repoID int64, fullName string) error {
	if err := r.rdb.Set(ctx, repoNameKey(repoID), fullName, 0).Err(); err != nil {
		return fmt.Errorf("store name for repo %d: %w", repoID, err)
	}
	return nil
}

// RepoName returns the last recorded owner/name pair of a repo.
func (r *Registry) RepoName(ctx context.Context, repoID int64) (string, error) {
	name, err := r.rdb.Get(ctx, repoNameKey(repoID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("repo %d name: %w", repoID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load name for repo %d: %w", repoID, err)
	}
	return name, nil
}

// RepoIDs scans for every repo that has at least one mirror group. Used by
// the periodic resync; not part of the hot path.
func (r *Registry) RepoIDs(ctx context.Context) ([]int64, error) {
	var repos []int64
	iter := r.rdb.Scan(ctx, 0, "repo:*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(iter.Val()[len("repo:"):], 10, 64)
		if err != nil {
			continue
		}
		repos = append(repos, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan repos: %w", err)
	}
	return repos, nil
}
