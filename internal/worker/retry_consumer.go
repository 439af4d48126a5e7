package worker

import (
	"context"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"go.uber.org/zap"

	"ht-server/common"
	"ht-server/common/logger"
	infmq "ht-server/internal/infra/rocketmq"
	"ht-server/internal/model"
)

// RetryMessage 从重试 topic 收到的一条消息
type RetryMessage struct {
	ID         string
	Body       []byte
	Properties map[string]string
}

// HandleRetry 解析重试消息并重新写入；写入失败由 Recorder 安排下一次重试
// 返回 false 表示消息体无法解析（直接确认丢弃）
func (r *Recorder) HandleRetry(ctx context.Context, m RetryMessage) bool {
	var s model.Settlement
	if err := common.JsonUnmarshal(m.Body, &s); err != nil || s.RoundID == "" {
		logger.Error("settlement retry: bad message", zap.String("msg_id", m.ID), zap.Error(err))
		return false
	}
	attempt := infmq.RetryCount(m.Properties, PropRetries)
	r.Write(ctx, &s, attempt)
	return true
}

// StartRetryConsumer 订阅 settlement_retry，收到消息后重新落库
func StartRetryConsumer(ctx context.Context, wg *sync.WaitGroup, sc rmq.SimpleConsumer, rec *Recorder) {
	const (
		maxMessageNum     = int32(16)
		invisibleDuration = 20 * time.Second
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = sc.GracefulStop() }()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			mvs, err := sc.Receive(ctx, maxMessageNum, invisibleDuration)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// 无消息时 SDK 也返回错误，这里只打 debug
				logger.Debug("[mq] retry receive", zap.Error(err))
				continue
			}
			for _, mv := range mvs {
				rec.HandleRetry(ctx, RetryMessage{
					ID:         mv.GetMessageId(),
					Body:       mv.GetBody(),
					Properties: mv.GetProperties(),
				})
				if err := sc.Ack(ctx, mv); err != nil {
					logger.Warn("[mq] ack failed", zap.String("id", mv.GetMessageId()), zap.Error(err))
				}
			}
		}
	}()
	logger.Info("[mq] settlement retry consumer started")
}
