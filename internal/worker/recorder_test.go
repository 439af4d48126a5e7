package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"ht-server/common"
	infmq "ht-server/internal/infra/rocketmq"
	"ht-server/internal/model"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int // 前 N 次失败
	calls    []string
	seen     map[string]bool
}

func (w *fakeWriter) InsertSettlement(_ context.Context, s *model.Settlement) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, s.RoundID)
	if w.failures > 0 {
		w.failures--
		return false, errors.New("db down")
	}
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	if w.seen[s.RoundID] {
		return false, nil
	}
	w.seen[s.RoundID] = true
	return true, nil
}

func (w *fakeWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

type published struct {
	topic, key string
	body       []byte
	props      map[string]string
	delay      time.Duration
}

type fakePublisher struct {
	mu      sync.Mutex
	enabled bool
	msgs    []published
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, body []byte) error {
	return p.PublishDelayed(context.Background(), topic, key, body, nil, 0)
}

func (p *fakePublisher) PublishDelayed(_ context.Context, topic, key string, body []byte, props map[string]string, delay time.Duration) error {
	if !p.enabled {
		return infmq.ErrDisabled
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, key: key, body: body, props: props, delay: delay})
	return nil
}

func (p *fakePublisher) Enabled() bool { return p.enabled }
func (p *fakePublisher) Close() error  { return nil }

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func settlement(roundID string) *model.Settlement {
	return &model.Settlement{
		RoundID:    roundID,
		UserID:     "u1",
		OperatorID: "op1",
		BetAmount:  decimal.NewFromInt(10),
		WinAmount:  decimal.Zero,
		Multiplier: decimal.Zero,
		Status:     "loss",
	}
}

func testOpts() RecorderOptions {
	return RecorderOptions{Workers: 2, QueueSize: 8, MaxRetries: 3, RetryDelay: 50 * time.Millisecond, RetryTopic: "settlement_retry"}
}

func TestRecorderWritesAsync(t *testing.T) {
	w := &fakeWriter{}
	rec := NewRecorder(testOpts(), w, &fakePublisher{enabled: true})
	rec.Start()

	rec.Insert(context.Background(), settlement("r1"))
	rec.Insert(context.Background(), settlement("r2"))
	require.NoError(t, rec.Close(context.Background()))

	assert.Equal(t, 2, w.callCount())
}

func TestRecorderFailurePublishesDelayedRetry(t *testing.T) {
	w := &fakeWriter{failures: 1}
	pub := &fakePublisher{enabled: true}
	rec := NewRecorder(testOpts(), w, pub)

	rec.Write(context.Background(), settlement("r1"), 0)

	msgs := pub.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "settlement_retry", msgs[0].topic)
	assert.Equal(t, "r1", msgs[0].key)
	assert.Equal(t, "1", msgs[0].props[PropRetries])
	assert.Equal(t, 50*time.Millisecond, msgs[0].delay)

	// 消费重试消息后写入成功
	ok := rec.HandleRetry(context.Background(), RetryMessage{ID: "m1", Body: msgs[0].body, Properties: msgs[0].props})
	assert.True(t, ok)
	assert.Equal(t, 2, w.callCount())
	assert.Len(t, pub.sent(), 1)
}

func TestRecorderRetryDelayGrowsLinearly(t *testing.T) {
	w := &fakeWriter{failures: 10}
	pub := &fakePublisher{enabled: true}
	rec := NewRecorder(testOpts(), w, pub)

	rec.Write(context.Background(), settlement("r1"), 2)

	msgs := pub.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "3", msgs[0].props[PropRetries])
	assert.Equal(t, 150*time.Millisecond, msgs[0].delay)
}

func TestRecorderGivesUpAfterMaxRetries(t *testing.T) {
	w := &fakeWriter{failures: 10}
	pub := &fakePublisher{enabled: true}
	rec := NewRecorder(testOpts(), w, pub)

	body, err := common.JsonMarshal(settlement("r1"))
	require.NoError(t, err)
	rec.HandleRetry(context.Background(), RetryMessage{ID: "m1", Body: body, Properties: map[string]string{PropRetries: "3"}})

	assert.Equal(t, 1, w.callCount())
	assert.Empty(t, pub.sent())
}

func TestRecorderFallsBackToInProcessRetry(t *testing.T) {
	w := &fakeWriter{failures: 1}
	opts := testOpts()
	opts.RetryDelay = 10 * time.Millisecond
	rec := NewRecorder(opts, w, &fakePublisher{enabled: false})

	rec.Write(context.Background(), settlement("r1"), 0)

	assert.Eventually(t, func() bool { return w.callCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRecorderBadRetryMessage(t *testing.T) {
	rec := NewRecorder(testOpts(), &fakeWriter{}, &fakePublisher{enabled: true})
	assert.False(t, rec.HandleRetry(context.Background(), RetryMessage{ID: "m1", Body: []byte("{")}))
	assert.False(t, rec.HandleRetry(context.Background(), RetryMessage{ID: "m2", Body: []byte("{}")}))
}

func TestRecorderInsertAfterClose(t *testing.T) {
	w := &fakeWriter{}
	rec := NewRecorder(testOpts(), w, &fakePublisher{enabled: true})
	rec.Start()
	require.NoError(t, rec.Close(context.Background()))
	require.NoError(t, rec.Close(context.Background()))

	assert.NotPanics(t, func() { rec.Insert(context.Background(), settlement("r1")) })
	assert.Equal(t, 0, w.callCount())
}

func TestDispatchOutboxOnce(t *testing.T) {
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT, topic TEXT, biz_key TEXT, payload TEXT,
		status INTEGER, retry_count INTEGER, last_error TEXT, created_at INTEGER, updated_at INTEGER)`)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, model.CreateOutbox(ctx, db, "bet_settled", "r1", map[string]string{"round_id": "r1"}))
	require.NoError(t, model.CreateOutbox(ctx, db, "bet_settled", "r2", map[string]string{"round_id": "r2"}))

	pub := &fakePublisher{enabled: true}
	assert.Equal(t, 2, DispatchOutboxOnce(ctx, db, pub, 10))
	msgs := pub.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "r1", msgs[0].key)
	assert.JSONEq(t, `{"round_id":"r1"}`, string(msgs[0].body))

	assert.Equal(t, 0, DispatchOutboxOnce(ctx, db, pub, 10))

	require.NoError(t, model.CreateOutbox(ctx, db, "bet_settled", "r3", map[string]string{}))
	assert.Equal(t, 0, DispatchOutboxOnce(ctx, db, &fakePublisher{enabled: false}, 10))
	var retries int
	require.NoError(t, db.Get(&retries, "SELECT retry_count FROM outbox WHERE biz_key = ?", "r3"))
	assert.Equal(t, 1, retries)
}
