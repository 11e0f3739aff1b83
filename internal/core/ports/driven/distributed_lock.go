package driven

import (
	"context"
	"time"
)

// DistributedLock provides named locks shared across instances.
// Credential changes take a per-user lock so that concurrent requests for
// one account run one at a time.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// It returns a token unique to this acquisition, or acquired=false if
	// the lock is already held.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, acquired bool, err error)

	// Release releases a named lock only while it is still held under token.
	// Safe to call after the lock expired or was taken by another holder.
	Release(ctx context.Context, name, token string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
