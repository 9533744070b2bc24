// Package lock serializes renewal commits per tenant.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyKey    = errors.New("lock key is empty")
	ErrInvalidTTL  = errors.New("lock ttl must be positive")
	ErrNotAcquired = errors.New("lock not acquired")
)

// Locker is a keyed mutual exclusion with expiry. Release only succeeds for the token that
// acquired the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Acquire polls TryLock until the key is held, ctx ends, or wait elapses.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait, poll time.Duration) (string, error) {
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	deadline := time.Now().Add(wait)
	for {
		token, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if !time.Now().Before(deadline) {
			return "", ErrNotAcquired
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}
