package common

import (
	"context"
	"time"

	"ht-server/common/logger"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// RetryPolicy 初始化阶段的连接重试策略（容器刚启动时依赖可能尚未就绪）
type RetryPolicy struct {
	Retries  int
	Interval time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.Retries <= 0 {
		return 1
	}
	return p.Retries
}

// 初始化 master db，失败按 RetryPolicy 重试
func InitDB(dsn string, maxIdleConn, maxOpenConn int, policy RetryPolicy) (*sqlx.DB, error) {
	var lastErr error
	for i := 0; i < policy.attempts(); i++ {
		if i > 0 {
			time.Sleep(policy.Interval)
		}
		db, err := sqlx.Connect("mysql", dsn)
		if err != nil {
			lastErr = err
			logger.Warn("InitDB connect failed",
				zap.Int("attempt", i+1), zap.Int("max", policy.attempts()), zap.Error(err))
			continue
		}

		// 连接池参数
		db.SetMaxOpenConns(maxOpenConn)
		db.SetMaxIdleConns(maxIdleConn)
		db.SetConnMaxLifetime(2 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)

		// 会话级超时，降低锁等待时长
		if _, err := db.Exec("SET SESSION innodb_lock_wait_timeout = ?", 5); err != nil {
			logger.Warn("SET innodb_lock_wait_timeout failed", zap.Error(err))
		}
		return db, nil
	}
	return nil, errors.Wrap(lastErr, "init db: maximum retries reached")
}

// 初始化 Redis 单机连接，写入/删除探测键确认可用
func InitRedis(addr, password string, db int, policy RetryPolicy) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     200,
		MinIdleConns: 20,
		MaxRetries:   1,
	})

	var lastErr error
	for i := 0; i < policy.attempts(); i++ {
		if i > 0 {
			time.Sleep(policy.Interval)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		lastErr = rdb.Set(ctx, "test", "test1", 0).Err()
		if lastErr == nil {
			lastErr = rdb.Del(ctx, "test").Err()
		}
		cancel()
		if lastErr == nil {
			return rdb, nil
		}
		logger.Warn("InitRedis probe failed",
			zap.Int("attempt", i+1), zap.Int("max", policy.attempts()), zap.Error(lastErr))
	}
	_ = rdb.Close()
	return nil, errors.Wrap(lastErr, "init redis: maximum retries reached")
}
