package rocketmq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"ht-server/common/logger"
	"ht-server/internal/config"

	"go.uber.org/zap"
)

// Publisher is a minimal facade for sending messages.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
	// PublishDelayed 发送延时消息，props 作为消息属性透传（例如重试次数）
	PublishDelayed(ctx context.Context, topic, key string, body []byte, props map[string]string, delay time.Duration) error
	Enabled() bool
	Close() error
}

// ErrDisabled 在 MQ 未启用时由 stub 返回，调用方据此走降级逻辑
var ErrDisabled = errors.New("rocketmq disabled")

// Real publisher backed by RocketMQ v5 client.
type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(ctx context.Context, topic, key string, body []byte) error {
	return r.send(ctx, newMessage(topic, key, body))
}

func (r *rmqPublisher) PublishDelayed(ctx context.Context, topic, key string, body []byte, props map[string]string, delay time.Duration) error {
	msg := newMessage(topic, key, body)
	for k, v := range props {
		msg.AddProperty(k, v)
	}
	if delay > 0 {
		msg.SetDelayTimestamp(time.Now().Add(delay))
	}
	return r.send(ctx, msg)
}

func (r *rmqPublisher) send(ctx context.Context, msg *rmq.Message) error {
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.p.Send(c, msg)
	return err
}

func (r *rmqPublisher) Enabled() bool { return true }
func (r *rmqPublisher) Close() error  { return r.p.GracefulStop() }

func newMessage(topic, key string, body []byte) *rmq.Message {
	msg := &rmq.Message{Topic: topic, Body: body}
	if key != "" {
		msg.SetKeys(key)
	}
	return msg
}

// Stub publisher used when MQ is disabled.
type stubPublisher struct{}

func (s *stubPublisher) Publish(_ context.Context, topic, key string, _ []byte) error {
	logger.Warn("[mq disabled] drop message", zap.String("topic", topic), zap.String("key", key))
	return ErrDisabled
}

func (s *stubPublisher) PublishDelayed(_ context.Context, topic, key string, _ []byte, _ map[string]string, _ time.Duration) error {
	logger.Warn("[mq disabled] drop delayed message", zap.String("topic", topic), zap.String("key", key))
	return ErrDisabled
}

func (s *stubPublisher) Enabled() bool { return false }
func (s *stubPublisher) Close() error  { return nil }

// StubPublisher 返回丢弃消息的发布器（MQ 未配置或测试中使用）
func StubPublisher() Publisher { return &stubPublisher{} }

// sanitizeEndpoint: trim, strip scheme, pick first if contains ',' or ';'
func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

func clientConfig(cfg *config.Config) (*rmq.Config, bool) {
	endpoint := sanitizeEndpoint(cfg.RocketMQ.Endpoint)
	if endpoint == "" {
		return nil, false
	}
	ak := strings.TrimSpace(cfg.RocketMQ.AccessKey)
	sk := strings.TrimSpace(cfg.RocketMQ.SecretKey)
	// 安全起见：若缺少凭证则禁用 MQ（避免底层 SDK 在 Sign 阶段空指针崩溃）
	if ak == "" || sk == "" {
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return nil, false
	}
	c := &rmq.Config{Endpoint: endpoint, ConsumerGroup: cfg.RocketMQ.ConsumerGroup}
	c.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}
	return c, true
}

// NewPublisher 根据配置启动生产者；未配置或启动失败时返回 stub（消息丢弃并返回 ErrDisabled）
func NewPublisher(cfg *config.Config) Publisher {
	// Use SDK's ResetLogger to avoid default file-based logging under /logs
	rmq.ResetLogger()

	rc, ok := clientConfig(cfg)
	if !ok {
		return &stubPublisher{}
	}

	topics := []string{cfg.RocketMQ.TopicSettled, cfg.RocketMQ.TopicRetry}
	p, err := rmq.NewProducer(rc, rmq.WithTopics(topics...))
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		return &stubPublisher{}
	}

	// 异步启动，避免阻塞主流程
	startDone := make(chan error, 1)
	go func() {
		startDone <- p.Start()
	}()

	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed (will use stub publisher)", zap.Error(err))
			return &stubPublisher{}
		}
		logger.Info("rocketmq enabled", zap.String("endpoint", rc.Endpoint), zap.Strings("topics", topics))
		return &rmqPublisher{p: p}
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout (will use stub publisher, messages will be dropped)")
		return &stubPublisher{}
	}
}

// NewSimpleConsumer 启动订阅指定 topic 的 SimpleConsumer（带重试，避免容器刚启动未就绪导致一次性失败）
func NewSimpleConsumer(ctx context.Context, cfg *config.Config, awaitDuration time.Duration, topics ...string) (rmq.SimpleConsumer, error) {
	rc, ok := clientConfig(cfg)
	if !ok {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(rc.ConsumerGroup) == "" {
		return nil, errors.New("empty rocketmq consumer_group")
	}

	subs := map[string]*rmq.FilterExpression{}
	for _, t := range topics {
		subs[t] = rmq.SUB_ALL
	}

	var sc rmq.SimpleConsumer
	var err error
	for i := 0; i < 6; i++ { // 最长约 6*3s = 18s
		sc, err = rmq.NewSimpleConsumer(rc,
			rmq.WithSimpleAwaitDuration(awaitDuration),
			rmq.WithSimpleSubscriptionExpressions(subs),
		)
		if err == nil {
			if err = sc.Start(); err == nil {
				return sc, nil
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, err
}

// RetryCount 读取消息属性中的重试次数
func RetryCount(props map[string]string, key string) int {
	n, _ := strconv.Atoi(props[key])
	return n
}
