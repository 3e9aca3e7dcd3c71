package verify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker serializes verification attempts per credit id. singleflight already
// collapses concurrent calls inside one process; the locker extends that
// guarantee across processes sharing one repository.
type Locker interface {
	Acquire(ctx context.Context, creditID string) (release func(), err error)
}

// MutexLocker is the single-process locker: one mutex per credit id.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MutexLocker) Acquire(_ context.Context, creditID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[creditID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[creditID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// releaseScript deletes the lock key only when it still holds our token, so a
// slow holder cannot release a lock that already expired and was re-acquired.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker serializes verification across processes with a SET NX lock.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a locker whose lock TTL should exceed the worst-case
// verification duration (timeout times attempts).
func NewRedisLocker(client *goredis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, creditID string) (func(), error) {
	key := "verify-lock:" + creditID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire verify lock %s: %w", creditID, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
