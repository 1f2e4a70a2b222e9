// Package cache holds short-lived values shared by keeper components.
// The memory store serves a single process; the redis store lets several
// keeper replicas share one oracle read per TTL window.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
