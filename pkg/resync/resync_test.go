package resync

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SOF3/rule-mirror/pkg/bus"
	"github.com/SOF3/rule-mirror/pkg/registry"
)

type capturingPublisher struct {
	mu      sync.Mutex
	updates []bus.Update
}

func (c *capturingPublisher) PublishUpdate(_ context.Context, update bus.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
	return nil
}

func newTestResyncer(t *testing.T) (*Resyncer, *registry.Registry, *capturingPublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	reg := registry.New(rdb)
	captured := &capturingPublisher{}
	r, err := New(reg, captured, "0 * * * *")
	require.NoError(t, err)
	return r, reg, captured
}

func TestNewRejectsBadCron(t *testing.T) {
	_, err := New(nil, nil, "not a cron")
	assert.Error(t, err)
}

func TestResyncAllRepublishesGroups(t *testing.T) {
	ctx := context.Background()
	r, reg, captured := newTestResyncer(t)

	_, err := reg.CreateGroup(ctx, 42, "main/a.md", "chan-a", []string{"m1"})
	require.NoError(t, err)
	require.NoError(t, reg.SetRepoName(ctx, 42, "user/repo"))

	require.NoError(t, r.ResyncAll(ctx))
	require.Len(t, captured.updates, 1)
	assert.Equal(t, "https://raw.githubusercontent.com/user/repo/main/a.md", captured.updates[0].URL)
	assert.Equal(t, "chan-a", captured.updates[0].ChannelID)
	assert.Equal(t, []string{"m1"}, captured.updates[0].MessageIDs)
}

func TestResyncAllSkipsReposWithoutName(t *testing.T) {
	ctx := context.Background()
	r, reg, captured := newTestResyncer(t)

	// Group exists but the owner pair was never recorded (pre-upgrade
	// data); the pass must skip it rather than fail.
	_, err := reg.CreateGroup(ctx, 7, "main/x.md", "chan", []string{"m1"})
	require.NoError(t, err)

	require.NoError(t, r.ResyncAll(ctx))
	assert.Empty(t, captured.updates)
}

func TestResyncAllEmptyRegistry(t *testing.T) {
	r, _, captured := newTestResyncer(t)
	require.NoError(t, r.ResyncAll(context.Background()))
	assert.Empty(t, captured.updates)
}
