package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// ErrLockBusy means another instance holds the lock.
var ErrLockBusy = errors.New("lock held by another instance")

// Locker hands out cluster-wide mutexes for singleton jobs.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

type RedsyncLocker struct {
	rs *redsync.Redsync
}

func NewLocker(c *Client) *RedsyncLocker {
	return &RedsyncLocker{rs: redsync.New(goredis.NewPool(c.cli))}
}

// TryLock makes a single attempt. Any failure to acquire is ErrLockBusy
// wrapping the redsync cause.
func (l *RedsyncLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	m := l.rs.NewMutex(key, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := m.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockBusy, err)
	}
	return func(ctx context.Context) error {
		_, err := m.UnlockContext(ctx)
		return err
	}, nil
}
