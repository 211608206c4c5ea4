package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

// ClaimCheckout reserves orderID for identity. It reports false when another
// request already holds the claim.
func (c *Cache) ClaimCheckout(ctx context.Context, orderID string, identity bookstore.Identity) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemCheckout, orderID), string(identity), TTLIdempotency).Result()
}

// ReleaseCheckout drops a claim whose checkout did not commit.
func (c *Cache) ReleaseCheckout(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyIdemCheckout, orderID)).Err()
}

func (c *Cache) RememberOrder(ctx context.Context, o bookstore.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrder, o.OrderID), b, TTLOrderCache).Err()
}

func (c *Cache) CachedOrder(ctx context.Context, orderID string) (bookstore.Order, bool, error) {
	var o bookstore.Order
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return o, false, nil
	}
	if err != nil {
		return o, false, err
	}
	if err := json.Unmarshal(b, &o); err != nil {
		return o, false, fmt.Errorf("decode cached order %s: %w", orderID, err)
	}
	return o, true, nil
}

// addIfPresent extends a library set only when it was filled from the
// store, so a partial set is never mistaken for the whole library.
var addIfPresent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('SADD', KEYS[1], unpack(ARGV, 2))
redis.call('EXPIRE', KEYS[1], ARGV[1])
return 1
`)

// AddToLibrary records delivered books for identity if its library is cached.
func (c *Cache) AddToLibrary(ctx context.Context, identity bookstore.Identity, bookIDs ...string) error {
	if len(bookIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(bookIDs)+1)
	args = append(args, int64(TTLLibrary/time.Second))
	for _, id := range bookIDs {
		args = append(args, id)
	}
	return addIfPresent.Run(ctx, c.rdb, []string{fmt.Sprintf(KeyLibrary, identity)}, args...).Err()
}

// FillLibrary replaces the cached library of identity with bookIDs.
func (c *Cache) FillLibrary(ctx context.Context, identity bookstore.Identity, bookIDs []string) error {
	if len(bookIDs) == 0 {
		return nil
	}
	key := fmt.Sprintf(KeyLibrary, identity)
	members := make([]any, len(bookIDs))
	for i, id := range bookIDs {
		members[i] = id
	}
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, TTLLibrary)
	_, err := pipe.Exec(ctx)
	return err
}

// LibraryBooks returns the cached library; ok is false on a cache miss.
func (c *Cache) LibraryBooks(ctx context.Context, identity bookstore.Identity) (ids []string, ok bool, err error) {
	ids, err = c.rdb.SMembers(ctx, fmt.Sprintf(KeyLibrary, identity)).Result()
	if err != nil {
		return nil, false, err
	}
	return ids, len(ids) > 0, nil
}

// MarkProcessed reports true the first time service sees eventID.
func (c *Cache) MarkProcessed(ctx context.Context, service, eventID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Forget undoes MarkProcessed so a failed event can be retried.
func (c *Cache) Forget(ctx context.Context, service, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}

// Purge drops every derived key after the store was replaced or reset.
func (c *Cache) Purge(ctx context.Context) error {
	for _, pattern := range purgePatterns {
		iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 200 {
				if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
