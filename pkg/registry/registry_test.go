package registry

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SOF3/rule-mirror/pkg/bus"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb), mr
}

func TestCreateAndLoadGroup(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	id, err := reg.CreateGroup(ctx, 42, "main/rules.md", "chan-1", []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	group, err := reg.LoadGroup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), group.RepoID)
	assert.Equal(t, "main/rules.md", group.Path)
	assert.Equal(t, "chan-1", group.ChannelID)
	assert.Equal(t, []string{"m1", "m2", "m3"}, group.MessageIDs)

	groups, err := reg.GroupsForRepo(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, groups)

	// Every message maps back to its owning group.
	for _, msg := range group.MessageIDs {
		owner, err := reg.GroupForMessage(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, id, owner)
	}
}

func TestCreateGroupRequiresMessages(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.CreateGroup(context.Background(), 1, "p", "c", nil)
	assert.Error(t, err)
}

func TestCreateGroupsAreIndependent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	a, err := reg.CreateGroup(ctx, 1, "p1", "c", []string{"m1"})
	require.NoError(t, err)
	b, err := reg.CreateGroup(ctx, 1, "p2", "c", []string{"m2"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	groups, err := reg.GroupsForRepo(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, groups)
}

func TestLoadGroupMissing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.LoadGroup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadGroupCorrupted(t *testing.T) {
	ctx := context.Background()
	reg, mr := newTestRegistry(t)

	id, err := reg.CreateGroup(ctx, 1, "p", "c", []string{"m1"})
	require.NoError(t, err)

	// A group whose message list vanished is corruption, not absence.
	mr.Del(messagesKey(id))
	_, err = reg.LoadGroup(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroupForMessageMissing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.GroupForMessage(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetSeenIdempotent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	seen, err := reg.IsSeen(ctx, 42)
	require.NoError(t, err)
	assert.False(t, seen, "absent key means unseen")

	changed, err := reg.SetSeen(ctx, 42, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = reg.SetSeen(ctx, 42, true)
	require.NoError(t, err)
	assert.False(t, changed, "second set must report no change")

	seen, err = reg.IsSeen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, seen)

	changed, err = reg.SetSeen(ctx, 42, false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = reg.SetSeen(ctx, 42, false)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDrainOnSeen(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	// Draining untouched queues is not an error.
	drained, err := reg.DrainOnSeen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, drained.Empty())

	require.NoError(t, reg.QueueDeleteOnSeen(ctx, 42, bus.MessageRef{Channel: "7", Message: "100"}))
	require.NoError(t, reg.QueueDeleteOnSeen(ctx, 42, bus.MessageRef{Channel: "7", Message: "101"}))
	require.NoError(t, reg.QueueDereactOnSeen(ctx, 42, bus.MessageRef{Channel: "8", Message: "200"}))

	drained, err = reg.DrainOnSeen(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []bus.MessageRef{
		{Channel: "7", Message: "100"},
		{Channel: "7", Message: "101"},
	}, drained.Deletions)
	assert.Equal(t, []bus.MessageRef{{Channel: "8", Message: "200"}}, drained.Dereacts)

	// Drained means drained: a second call returns empty.
	drained, err = reg.DrainOnSeen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, drained.Empty())
}

func TestEnqueueAfterDrainIsPreserved(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, err := reg.DrainOnSeen(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, reg.QueueDereactOnSeen(ctx, 1, bus.MessageRef{Channel: "c", Message: "m"}))
	drained, err := reg.DrainOnSeen(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, drained.Dereacts, 1)
}

func TestRepoName(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, err := reg.RepoName(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, reg.SetRepoName(ctx, 5, "user/repo"))
	name, err := reg.RepoName(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "user/repo", name)
}

func TestRepoIDs(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, err := reg.CreateGroup(ctx, 11, "p", "c", []string{"m1"})
	require.NoError(t, err)
	_, err = reg.CreateGroup(ctx, 22, "p", "c", []string{"m2"})
	require.NoError(t, err)

	repos, err := reg.RepoIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{11, 22}, repos)
}
