package ledger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ht-server/common"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Options{
		BaseURL:         srv.URL,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	})
}

var testCred = Credentials{GameID: "g1", OperatorID: "op1", Token: "tok"}

func TestDebitSuccess(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, operatePath, r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("token"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, common.JsonUnmarshal(b, &got))
		_, _ = w.Write([]byte(`{"status":true,"data":{"txn_id":"tx-1"}}`))
	})

	res, err := c.Operate(context.Background(), KindDebit, Payload{
		RoundID:   "r1",
		BetAmount: decimal.NewFromInt(10),
		GameID:    "g1",
		IP:        "1.2.3.4",
		UserID:    "u1",
	}, testCred)
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, "tx-1", res.TxnID)

	assert.Equal(t, "DEBIT", got["txn_type"])
	assert.Equal(t, "r1", got["id"])
	assert.Equal(t, float64(10), got["bet_amount"])
	assert.Equal(t, "op1", got["operator_id"])
	_, hasWin := got["winning_amount"]
	assert.False(t, hasWin)
}

func TestCreditCarriesDebitTxn(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, common.JsonUnmarshal(b, &got))
		_, _ = w.Write([]byte(`{"status":true,"txn_id":"tx-2"}`))
	})

	res, err := c.Operate(context.Background(), KindCredit, Payload{
		RoundID:   "r1",
		TxnID:     "tx-1",
		BetAmount: decimal.NewFromInt(10),
		WinAmount: decimal.RequireFromString("19.8"),
		GameID:    "g1",
		UserID:    "u1",
	}, testCred)
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, "tx-2", res.TxnID)
	assert.Equal(t, "CREDIT", got["txn_type"])
	assert.Equal(t, "tx-1", got["txn_id"])
	assert.Equal(t, 19.8, got["winning_amount"])
}

func TestDeclinedIsNotError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"msg":"cancelled"}`))
	})
	res, err := c.Operate(context.Background(), KindDebit, Payload{RoundID: "r1"}, testCred)
	require.NoError(t, err)
	assert.False(t, res.Status)
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	res, err := c.Operate(context.Background(), KindDebit, Payload{RoundID: "r1"}, testCred)
	require.NoError(t, err)
	assert.False(t, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"data":{"txn_id":"tx-9"}}`))
	})
	res, err := c.Operate(context.Background(), KindDebit, Payload{RoundID: "r1"}, testCred)
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Operate(context.Background(), KindCredit, Payload{RoundID: "r1"}, testCred)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestBadBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.Operate(context.Background(), KindDebit, Payload{RoundID: "r1"}, testCred)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestFetchUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userDetailPath, r.URL.Path)
		assert.Equal(t, "g1", r.URL.Query().Get("game_id"))
		if r.Header.Get("token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"user":{"userId":"u1","operatorId":"op1","balance":100}}`))
	})

	u, err := c.FetchUser(context.Background(), "tok", "g1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "op1", u.OperatorID)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(100)))

	_, err = c.FetchUser(context.Background(), "bad", "g1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
