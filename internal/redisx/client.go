// Package redisx holds the Redis-backed accelerators around the engine:
// checkout claims, an order cache, the library projection and event dedup.
// The store stays authoritative; every key here can be rebuilt or dropped.
package redisx

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// New returns nil when addr is empty; callers treat a nil client as "no cache".
func New(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}
