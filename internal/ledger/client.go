package ledger

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"ht-server/common"
	"ht-server/common/helper"
	"ht-server/common/logger"
	"ht-server/internal/config"
	"ht-server/internal/metrics"
)

const (
	operatePath    = "/service/operator/user/balance/v2"
	userDetailPath = "/service/user/detail"
)

var (
	// ErrUpstreamUnavailable 传输错误或 5xx，重试耗尽后返回
	ErrUpstreamUnavailable = errors.New("ledger upstream unavailable")
	// ErrBadResponse 上游返回无法解析的响应体
	ErrBadResponse = errors.New("ledger bad response")
	// ErrUserNotFound 握手时上游未返回有效用户
	ErrUserNotFound = errors.New("ledger user not found")
)

// Client 上游账户服务
type Client interface {
	Operate(ctx context.Context, kind Kind, p Payload, cred Credentials) (Result, error)
	FetchUser(ctx context.Context, token, gameID string) (*UserDetail, error)
}

// Options HTTP 客户端参数
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	MaxConnsPerHost int
	// InitialInterval 首次重试间隔，默认 100ms
	InitialInterval time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:         cfg.Ledger.BaseURL,
		Timeout:         time.Duration(cfg.Ledger.TimeoutMS) * time.Millisecond,
		MaxRetries:      cfg.Ledger.MaxRetries,
		MaxConnsPerHost: cfg.Ledger.MaxConnsPerHost,
	}
}

// HTTPClient 基于 fasthttp 的实现，传输错误与 5xx 按指数退避重试
type HTTPClient struct {
	opts Options
	hc   *fasthttp.Client
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = helper.DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &HTTPClient{opts: opts, hc: helper.NewHTTPClient(opts.Timeout, opts.MaxConnsPerHost)}
}

type operateBody struct {
	TxnType       Kind     `json:"txn_type"`
	ID            string   `json:"id"`
	TxnID         string   `json:"txn_id,omitempty"`
	BetAmount     float64  `json:"bet_amount"`
	WinningAmount *float64 `json:"winning_amount,omitempty"`
	GameID        string   `json:"game_id"`
	IP            string   `json:"ip,omitempty"`
	UserID        string   `json:"user_id"`
	OperatorID    string   `json:"operator_id"`
}

type operateResp struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
	TxnID  string `json:"txn_id"`
	Data   struct {
		TxnID string `json:"txn_id"`
	} `json:"data"`
}

type userDetailResp struct {
	Status bool        `json:"status"`
	User   *UserDetail `json:"user"`
}

// Operate 执行一次 DEBIT/CREDIT。上游拒绝返回 Result{Status:false} 且 err 为 nil；
// 传输错误与 5xx 重试 MaxRetries 次后返回 ErrUpstreamUnavailable。
func (c *HTTPClient) Operate(ctx context.Context, kind Kind, p Payload, cred Credentials) (res Result, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		} else if !res.Status {
			status = "rejected"
		}
		metrics.RecordLedger(string(kind), status, start)
	}()

	body := operateBody{
		TxnType:    kind,
		ID:         p.RoundID,
		TxnID:      p.TxnID,
		BetAmount:  helper.MoneyFloat(p.BetAmount),
		GameID:     p.GameID,
		IP:         p.IP,
		UserID:     p.UserID,
		OperatorID: cred.OperatorID,
	}
	if kind == KindCredit {
		w := helper.MoneyFloat(p.WinAmount)
		body.WinningAmount = &w
	}
	reqBody, err := common.JsonMarshal(body)
	if err != nil {
		return Result{}, errors.WithStack(err)
	}
	headers := map[string]string{
		"token":   cred.Token,
		"game_id": cred.GameID,
	}

	raw, err := c.do(ctx, fasthttp.MethodPost, c.opts.BaseURL+operatePath, reqBody, headers)
	if errors.Is(err, errRejected) {
		logger.WarnCtx(ctx, "ledger rejected by status code", zap.String("kind", string(kind)), zap.String("round_id", p.RoundID), zap.Error(err))
		return Result{Status: false}, nil
	}
	if err != nil {
		return Result{}, err
	}

	var resp operateResp
	if err := common.JsonUnmarshal(raw, &resp); err != nil {
		return Result{}, errors.Wrap(ErrBadResponse, err.Error())
	}
	if !resp.Status {
		logger.WarnCtx(ctx, "ledger declined", zap.String("kind", string(kind)), zap.String("round_id", p.RoundID), zap.String("msg", resp.Msg))
		return Result{Status: false}, nil
	}
	txnID := resp.Data.TxnID
	if txnID == "" {
		txnID = resp.TxnID
	}
	return Result{Status: true, TxnID: txnID}, nil
}

// FetchUser 根据 token 获取用户信息（连接握手使用）
func (c *HTTPClient) FetchUser(ctx context.Context, token, gameID string) (*UserDetail, error) {
	uri := c.opts.BaseURL + userDetailPath + "?game_id=" + url.QueryEscape(gameID)
	raw, err := c.do(ctx, fasthttp.MethodGet, uri, nil, map[string]string{"token": token})
	if errors.Is(err, errRejected) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	var resp userDetailResp
	if err := common.JsonUnmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(ErrBadResponse, err.Error())
	}
	if !resp.Status || resp.User == nil || resp.User.UserID == "" {
		return nil, ErrUserNotFound
	}
	return resp.User, nil
}

var errRejected = errors.New("ledger rejected")

// do 发起请求：传输错误与 5xx 可重试，4xx 视为拒绝不重试
func (c *HTTPClient) do(ctx context.Context, method, uri string, body []byte, headers map[string]string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxInterval = 2 * time.Second

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		raw, code, err := helper.HttpDoTimeout(c.hc, body, method, uri, headers, c.opts.Timeout)
		if err != nil {
			logger.WarnCtx(ctx, "ledger request failed", zap.String("uri", uri), zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		switch {
		case code >= 500:
			logger.WarnCtx(ctx, "ledger upstream error", zap.String("uri", uri), zap.Int("attempt", attempt), zap.Int("code", code))
			return nil, fmt.Errorf("ledger status %d", code)
		case code >= 400:
			return nil, backoff.Permanent(errors.Wrapf(errRejected, "status %d", code))
		}
		return raw, nil
	}

	raw, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.opts.MaxRetries+1)),
	)
	if err != nil {
		if errors.Is(err, errRejected) {
			return nil, err
		}
		return nil, errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	return raw, nil
}
