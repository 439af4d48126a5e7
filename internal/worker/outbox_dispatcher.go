package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ht-server/common"
	"ht-server/common/logger"
	infmq "ht-server/internal/infra/rocketmq"
	"ht-server/internal/model"
)

// StartOutboxDispatcher 按固定间隔扫描 outbox 并投递到 RocketMQ，ctx 取消后退出
// 仅当 MQ 已启用时运行
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup, db *sqlx.DB, pub infmq.Publisher, interval time.Duration) {
	if pub == nil || !pub.Enabled() {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	wg.Add(1)
	go func() {
		ticker := time.NewTicker(interval)
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				DispatchOutboxOnce(ctx, db, pub, 100)
			}
		}
	}()
}

// DispatchOutboxOnce 投递一批待发送消息，返回成功条数
func DispatchOutboxOnce(ctx context.Context, db sqlx.ExtContext, pub infmq.Publisher, batch int) int {
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	rows, err := model.ListOutboxPending(c, db, batch)
	cancel()
	if err != nil {
		logger.Warn("outbox: list pending failed", zap.Error(err))
		return 0
	}
	sent := 0
	for _, r := range rows {
		if err := pub.Publish(ctx, r.Topic, r.BizKey, []byte(r.Payload)); err != nil {
			_ = model.MarkOutboxFailed(ctx, db, r.ID, truncateErr(err))
			continue
		}
		if err := model.MarkOutboxSent(ctx, db, r.ID); err != nil {
			logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func truncateErr(err error) string {
	s, _ := common.JsonMarshalToString(map[string]string{"error": err.Error()})
	if len(s) > 240 {
		return s[:240]
	}
	return s
}
