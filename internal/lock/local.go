package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localHold struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is the single-process fallback used when no redis endpoint is configured.
type LocalLocker struct {
	mu    sync.Mutex
	now   func() time.Time
	holds map[string]localHold
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		now:   time.Now,
		holds: make(map[string]localHold),
	}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if hold, ok := l.holds[key]; ok && now.Before(hold.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.holds[key] = localHold{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if hold, ok := l.holds[key]; ok && hold.token == token {
		delete(l.holds, key)
	}
	return nil
}
