package bot

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SOF3/rule-mirror/pkg/registry"
)

func newTestBot(t *testing.T) (*Bot, *registry.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	reg := registry.New(rdb)
	return &Bot{reg: reg}, reg
}

func TestDeletedMirrorGroupResolvesTrackedMessage(t *testing.T) {
	ctx := context.Background()
	b, reg := newTestBot(t)

	id, err := reg.CreateGroup(ctx, 1, "main/f.md", "chan", []string{"m1", "m2"})
	require.NoError(t, err)

	groupID, ok := b.deletedMirrorGroup(ctx, "m2")
	assert.True(t, ok)
	assert.Equal(t, id, groupID)
}

func TestDeletedMirrorGroupIgnoresUntrackedMessage(t *testing.T) {
	b, _ := newTestBot(t)
	_, ok := b.deletedMirrorGroup(context.Background(), "unrelated")
	assert.False(t, ok)
}
