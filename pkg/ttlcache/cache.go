// Package ttlcache provides small key/value stores whose entries expire.
package ttlcache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("ttlcache: miss")

// Cache stores opaque values for a bounded time.
//
// Delete reports whether an entry was removed by this call, which lets callers build
// consume-once semantics on top of it. Incr atomically bumps a counter, starting it at 1
// with the given ttl when absent; an existing counter keeps its expiry.
type Cache interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
