package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ht-server/common"
	"ht-server/internal/outcome"
)

func TestValidateOrder(t *testing.T) {
	lim := testLimits()

	// 余额不足优先于上下限
	_, err := ValidateWager(WagerRequest{BetAmount: float64(20000), Choice: float64(1)}, dec("100"), lim)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// 上下限优先于下注面
	_, err = ValidateWager(WagerRequest{BetAmount: float64(0.5), Choice: float64(7)}, dec("100"), lim)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrInvalidBetAmount)
}

func TestValidateBoundsInclusive(t *testing.T) {
	lim := testLimits()
	for _, amt := range []float64{1, 10000} {
		w, err := ValidateWager(WagerRequest{BetAmount: amt, Choice: float64(0)}, dec("10000"), lim)
		require.Nil(t, err)
		assert.True(t, w.Amount.Equal(decimal.NewFromFloat(amt)))
		assert.Equal(t, outcome.Tails, w.Choice)
	}
}

func TestValidateDecodedFrame(t *testing.T) {
	var req WagerRequest
	require.NoError(t, common.JsonUnmarshalFromString(`{"btAmt":"12.5","choice":1}`, &req))

	w, err := ValidateWager(req, dec("100"), testLimits())
	require.Nil(t, err)
	assert.True(t, w.Amount.Equal(dec("12.5")))
	assert.Equal(t, outcome.Heads, w.Choice)

	require.NoError(t, common.JsonUnmarshalFromString(`{"btAmt":0.1,"choice":0}`, &req))
	lim := testLimits()
	lim.MinBet = dec("0.1")
	w, err = ValidateWager(req, dec("100"), lim)
	require.Nil(t, err)
	assert.True(t, w.Amount.Equal(dec("0.1")))
}

func TestBetErrorMessage(t *testing.T) {
	e := betErr(ErrInvalidChoice, MsgInvalidChoice)
	assert.ErrorIs(t, e, ErrInvalidChoice)
	assert.Contains(t, e.Error(), MsgInvalidChoice)
}

func TestValidateAmountPrecision(t *testing.T) {
	lim := testLimits()
	for _, amt := range []interface{}{"10.005", float64(1.001), "2.0001"} {
		_, err := ValidateWager(WagerRequest{BetAmount: amt, Choice: float64(1)}, dec("100"), lim)
		require.NotNil(t, err)
		assert.ErrorIs(t, err, ErrInvalidAmountType)
	}
	for _, amt := range []interface{}{"10.50", float64(1.01), "2.000"} {
		w, err := ValidateWager(WagerRequest{BetAmount: amt, Choice: float64(1)}, dec("100"), lim)
		require.Nil(t, err)
		assert.True(t, w.Amount.Equal(w.Amount.Round(2)))
	}
}
