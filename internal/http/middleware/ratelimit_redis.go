package middleware

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	redisMu     sync.RWMutex
	redisClient *redisCounter
)

type redisCounter struct {
	rdb *redis.Client
}

// UseRedis makes the rate limiters share counters through rdb. A nil client
// switches back to the in-process counter.
func UseRedis(rdb *redis.Client) {
	redisMu.Lock()
	defer redisMu.Unlock()
	if rdb == nil {
		redisClient = nil
		return
	}
	redisClient = &redisCounter{rdb: rdb}
}

func currentRedis() counter {
	redisMu.RLock()
	defer redisMu.RUnlock()
	if redisClient == nil {
		return nil
	}
	return redisClient
}

// hit implements a fixed window with INCR and EXPIRE.
func (r *redisCounter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	val, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		r.rdb.Expire(ctx, key, window)
	}
	return val, nil
}
