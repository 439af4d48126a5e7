package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ht-server/common"
	"ht-server/common/logger"
	"ht-server/internal/config"
	infmq "ht-server/internal/infra/rocketmq"
	"ht-server/internal/metrics"
	"ht-server/internal/model"
)

// PropRetries 重试消息属性：已尝试次数
const PropRetries = "x-retries"

// SettlementWriter 结算记录落库
type SettlementWriter interface {
	InsertSettlement(ctx context.Context, s *model.Settlement) (inserted bool, err error)
}

// DBWriter 使用 MySQL 落库，并在同一事务写入 bet_settled outbox
type DBWriter struct {
	DB          *sqlx.DB
	OutboxTopic string
}

func (w *DBWriter) InsertSettlement(ctx context.Context, s *model.Settlement) (bool, error) {
	return model.InsertSettlement(ctx, w.DB, s, w.OutboxTopic)
}

// RecorderOptions 异步落库参数
type RecorderOptions struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
	RetryTopic string
}

func RecorderOptionsFromConfig(cfg *config.Config) RecorderOptions {
	return RecorderOptions{
		Workers:    cfg.Recorder.Workers,
		QueueSize:  cfg.Recorder.QueueSize,
		MaxRetries: cfg.Recorder.MaxRetries,
		RetryDelay: time.Duration(cfg.Recorder.RetryDelayMS) * time.Millisecond,
		RetryTopic: cfg.RocketMQ.TopicRetry,
	}
}

// Recorder 结算记录异步落库：有界队列 + N 个 worker
// 写入失败时发送 RocketMQ 延时消息重试；MQ 不可用时退化为进程内定时重试
type Recorder struct {
	opts   RecorderOptions
	writer SettlementWriter
	pub    infmq.Publisher

	mu     sync.RWMutex
	closed bool
	queue  chan *model.Settlement
	wg     sync.WaitGroup
}

func NewRecorder(opts RecorderOptions, writer SettlementWriter, pub infmq.Publisher) *Recorder {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if pub == nil {
		pub = infmq.StubPublisher()
	}
	return &Recorder{
		opts:   opts,
		writer: writer,
		pub:    pub,
		queue:  make(chan *model.Settlement, opts.QueueSize),
	}
}

// Start 启动 worker
func (r *Recorder) Start() {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for s := range r.queue {
				metrics.SetRecorderQueueDepth(len(r.queue))
				r.Write(context.Background(), s, 0)
			}
		}()
	}
	logger.Info("settlement recorder started", zap.Int("workers", r.opts.Workers), zap.Int("queue", r.opts.QueueSize))
}

// Insert 非阻塞投递；队列满时直接进入重试通道
func (r *Recorder) Insert(_ context.Context, s *model.Settlement) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		logger.Error("settlement recorder closed, record dropped", zap.String("round_id", s.RoundID))
		metrics.RecordSettlementWrite("dropped")
		return
	}
	select {
	case r.queue <- s:
	default:
		logger.Warn("settlement recorder queue full, scheduling retry", zap.String("round_id", s.RoundID))
		go r.scheduleRetry(s, 1)
	}
}

// Write 同步写入一次；失败则安排第 attempt+1 次重试
func (r *Recorder) Write(ctx context.Context, s *model.Settlement, attempt int) {
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	inserted, err := r.writer.InsertSettlement(c, s)
	cancel()
	if err != nil {
		logger.Warn("settlement insert failed",
			zap.String("round_id", s.RoundID), zap.Int("attempt", attempt), zap.Error(err))
		r.scheduleRetry(s, attempt+1)
		return
	}
	if !inserted {
		metrics.RecordSettlementWrite("duplicate")
		logger.Debug("settlement already recorded", zap.String("round_id", s.RoundID))
		return
	}
	metrics.RecordSettlementWrite("inserted")
}

func (r *Recorder) scheduleRetry(s *model.Settlement, attempt int) {
	if attempt > r.opts.MaxRetries {
		metrics.RecordSettlementWrite("dropped")
		logger.Error("settlement record dropped after retries",
			zap.String("round_id", s.RoundID), zap.String("user_id", s.UserID),
			zap.String("status", s.Status), zap.String("bet_amount", s.BetAmount.String()),
			zap.String("win_amount", s.WinAmount.String()), zap.Int("attempts", attempt))
		return
	}
	delay := r.opts.RetryDelay * time.Duration(attempt)
	metrics.RecordSettlementWrite("retry_scheduled")

	body, err := common.JsonMarshal(s)
	if err == nil && r.opts.RetryTopic != "" {
		props := map[string]string{PropRetries: strconv.Itoa(attempt)}
		if err = r.pub.PublishDelayed(context.Background(), r.opts.RetryTopic, s.RoundID, body, props, delay); err == nil {
			return
		}
	}
	logger.Warn("settlement retry publish failed, retrying in process",
		zap.String("round_id", s.RoundID), zap.Int("attempt", attempt), zap.Error(err))
	time.AfterFunc(delay, func() {
		r.Write(context.Background(), s, attempt)
	})
}

// Close 停止接收并等待队列写完
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
