package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ht-server/common"
	"ht-server/internal/config"
)

// New 根据配置创建 Redis 客户端；连接探测按 retries/interval_ms 重试
func New(cfg *config.Config) (*goredis.Client, error) {
	return common.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, common.RetryPolicy{
		Retries:  cfg.Redis.Retries,
		Interval: time.Duration(cfg.Redis.IntervalMS) * time.Millisecond,
	})
}

// Ping 在给定超时时间内探测 Redis 连接是否可用。
func Ping(ctx context.Context, rdb goredis.Cmdable, timeout time.Duration) error {
	if rdb == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rdb.Ping(c).Err()
}
