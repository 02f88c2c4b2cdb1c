// Package ratelimit — fixed-window лимитер на redis для публичных
// отправок (заявки на доступ).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result — сколько осталось и когда окно сбросится.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

type RedisLimiter struct{ rdb *redis.Client }

func NewRedis(addr, password string, db int) (*RedisLimiter, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{rdb: rdb}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	rKey := "ratelimit:" + key

	n, err := l.rdb.Incr(ctx, rKey).Result()
	if err != nil {
		return Result{}, err
	}
	// первый запрос в окне задаёт срок жизни ключа
	if n == 1 {
		if err := l.rdb.PExpire(ctx, rKey, window).Err(); err != nil {
			return Result{}, err
		}
	}

	ttl, err := l.rdb.PTTL(ctx, rKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	reset := time.Now().Add(ttl)

	if int(n) > limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - int(n), Reset: reset}, nil
}

// NopLimiter — без redis лимит отключён (всё разрешено).
type NopLimiter struct{}

func (NopLimiter) Allow(_ context.Context, _ string, limit int, _ time.Duration) (Result, error) {
	return Result{Allowed: true, Limit: limit, Remaining: limit}, nil
}
