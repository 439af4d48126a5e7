package session

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ht-server/internal/infra/redis"
)

// ErrNotFound 会话不存在（未握手、已过期或连接已断开）
var ErrNotFound = errors.New("session not found")

// Store 会话存储：按连接 ID 读写玩家记录
type Store interface {
	Get(ctx context.Context, connID string) (*Record, error)
	Set(ctx context.Context, connID string, rec *Record, ttl time.Duration) error
	Delete(ctx context.Context, connID string) error
}

// RedisStore 基于 Redis 的会话存储，键为 PL:{connId}
type RedisStore struct {
	rdb goredis.Cmdable
}

func NewRedisStore(rdb goredis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, connID string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, redis.SessionKey(connID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func (s *RedisStore) Set(ctx context.Context, connID string, rec *Record, ttl time.Duration) error {
	raw, err := Encode(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redis.SessionKey(connID), raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, connID string) error {
	return s.rdb.Del(ctx, redis.SessionKey(connID)).Err()
}
