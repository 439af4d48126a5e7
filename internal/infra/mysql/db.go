package mysql

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ht-server/common"
	"ht-server/internal/config"
)

// New 根据配置创建 *sqlx.DB；连接失败按 retries/interval_ms 重试
func New(cfg *config.Config) (*sqlx.DB, error) {
	db, err := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns, common.RetryPolicy{
		Retries:  cfg.Database.Retries,
		Interval: time.Duration(cfg.Database.IntervalMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second)
	}
	return db, nil
}

// Ping 在给定超时时间内探测数据库连接
func Ping(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	if db == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(c)
}
