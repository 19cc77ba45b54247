package resetledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jobtrack:reset:"

// RedisConfig holds connection settings for the Redis-backed ledger.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Ledger shared by every server instance pointing at the same
// Redis database.
type Redis struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{rdb: rdb, now: time.Now}
}

func (r *Redis) Consume(ctx context.Context, id string, until time.Time) (bool, error) {
	ttl := until.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := r.rdb.SetNX(ctx, keyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume reset token in redis: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release reset token in redis: %w", err)
	}
	return nil
}

// Ping checks connectivity; used at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
