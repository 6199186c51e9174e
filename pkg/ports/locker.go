package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across replicas, so two
// instances never advance the same lesson attempt concurrently. Lock blocks
// until the lock is acquired or the context is canceled; the returned
// UnlockFunc must be called to release it (the TTL is the safety net when a
// holder dies).
type DistributedLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
