//go:build integration

package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

func newCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return NewCache(rdb), rdb
}

func TestCheckoutClaim(t *testing.T) {
	c, rdb := newCache(t)
	ctx := context.Background()

	ok, err := c.ClaimCheckout(ctx, "o1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.ClaimCheckout(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := rdb.TTL(ctx, "idem:checkout:o1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)

	require.NoError(t, c.ReleaseCheckout(ctx, "o1"))
	ok, err = c.ClaimCheckout(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrderCache(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok, err := c.CachedOrder(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, ok)

	o := bookstore.Order{OrderID: "o1", User: "alice", TotalAmount: 5, DeliveredBookIDs: []string{"b1"},
		Items: []bookstore.CartItem{{BookID: "b1", Quantity: 1}}}
	require.NoError(t, c.RememberOrder(ctx, o))
	got, ok, err := c.CachedOrder(ctx, "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o.User, got.User)
	assert.Equal(t, o.DeliveredBookIDs, got.DeliveredBookIDs)
}

func TestLibraryProjection(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	// adds to a cold key are dropped so a later fill stays authoritative
	require.NoError(t, c.AddToLibrary(ctx, "alice", "b1"))
	_, ok, err := c.LibraryBooks(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.FillLibrary(ctx, "alice", []string{"b1", "b2"}))
	require.NoError(t, c.AddToLibrary(ctx, "alice", "b3", "b1"))
	ids, ok, err := c.LibraryBooks(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"b1", "b2", "b3"}, ids)

	require.NoError(t, c.Purge(ctx))
	_, ok, err = c.LibraryBooks(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedup(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	first, err := c.MarkProcessed(ctx, "library-svc", "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
	first, err = c.MarkProcessed(ctx, "library-svc", "evt-1")
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, c.Forget(ctx, "library-svc", "evt-1"))
	first, err = c.MarkProcessed(ctx, "library-svc", "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
}
