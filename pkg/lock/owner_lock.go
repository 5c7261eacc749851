package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OwnerLock is a redis-backed single-flight lock keyed by owner.
// At most one sync touches a given owner's credential at a time; the TTL
// bounds how long a crashed holder can keep the owner blocked.
type OwnerLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewOwnerLock(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *OwnerLock {
	return &OwnerLock{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func ownerKey(ownerID string) string {
	return fmt.Sprintf("sync:lock:%s", ownerID)
}

// Acquire tries to take the lock for an owner.
// returns true if this caller now holds the lock
// returns false if another sync is already in flight for the owner
func (l *OwnerLock) Acquire(ctx context.Context, ownerID string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, ownerKey(ownerID), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire owner lock: %w", err)
	}

	if !ok && l.logger != nil {
		l.logger.Info("Owner sync already in flight, skipping",
			zap.String("owner_id", ownerID),
		)
	}

	return ok, nil
}

// Release frees the lock for an owner.
func (l *OwnerLock) Release(ctx context.Context, ownerID string) error {
	if err := l.rdb.Del(ctx, ownerKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("failed to release owner lock: %w", err)
	}
	return nil
}
