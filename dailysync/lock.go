package dailysync

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when another sync holds the run lock.
var ErrRunInProgress = errors.New("daily sync already running")

// Locker keeps two syncs from appending against the same previous row.
type Locker interface {
	// TryLock never blocks; it returns ErrRunInProgress when the lock is held.
	TryLock(ctx context.Context) (unlock func(), err error)
}

// LocalLocker serialises runs inside one process.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) TryLock(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	return l.mu.Unlock, nil
}

// release only deletes the key while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker shares the run lock between processes. The TTL bounds how long a
// crashed run can block the next one.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// NewRedisLockerFromURL parses a redis:// URL into a client.
func NewRedisLockerFromURL(redisURL, key string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return NewRedisLocker(redis.NewClient(opts), key, ttl), nil
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "acquire run lock")
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	return func() {
		// the run's context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			log.WithError(err).WithField("key", l.key).Warn("could not release run lock")
		}
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
