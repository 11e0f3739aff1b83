package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "restormel:lock:"

// Lock implements DistributedLock using Redis SET NX with TTL.
// Every Acquire stores a fresh token under the owner ID, so a holder whose
// lock expired cannot release the lock of the next holder.
type Lock struct {
	client  redis.UniversalClient
	ownerID string
}

// NewLock creates a new Redis-backed distributed lock
func NewLock(client redis.UniversalClient) *Lock {
	return &Lock{
		client:  client,
		ownerID: generateOwnerID(),
	}
}

// generateOwnerID returns hostname:pid:random
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Acquire attempts to take a named lock with the given TTL.
// It returns false if the lock is already held.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := l.newToken()
	result, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !result {
		return "", false, nil
	}
	return token, true, nil
}

// newToken returns ownerID:random
func (l *Lock) newToken() string {
	randomBytes := make([]byte, 16)
	_, _ = rand.Read(randomBytes)
	return l.ownerID + ":" + hex.EncodeToString(randomBytes)
}

// releaseScript deletes the key only if it still holds the caller's token
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release releases a named lock if it is still held under token.
// Safe to call even if the lock is not held or has expired.
func (l *Lock) Release(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the unique identifier for this lock instance.
// Every token it hands out starts with it.
func (l *Lock) OwnerID() string {
	return l.ownerID
}
