package service

import (
	"math"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"ht-server/common/helper"
	"ht-server/internal/outcome"
)

// WagerRequest 客户端 bt 事件的 data 部分
// btAmt 可为数字或数字字符串；choice 必须为数字 0 或 1
type WagerRequest struct {
	BetAmount interface{} `json:"btAmt"`
	Choice    interface{} `json:"choice"`
}

// ValidateWager 按顺序校验：金额类型 -> 余额 -> 上下限 -> 下注面，无副作用
// 金额超过两位小数视为类型错误，保证上游、会话与落库使用同一金额
func ValidateWager(req WagerRequest, balance decimal.Decimal, lim Limits) (outcome.Wager, *BetError) {
	amt, ok := parseAmount(req.BetAmount)
	if !ok || !amt.IsPositive() || !helper.IsMoney(amt) {
		return outcome.Wager{}, betErr(ErrInvalidAmountType, MsgInvalidAmountType)
	}
	if amt.GreaterThan(balance) {
		return outcome.Wager{}, betErr(ErrInsufficientBalance, MsgInsufficientBalance)
	}
	if amt.LessThan(lim.MinBet) || amt.GreaterThan(lim.MaxBet) {
		return outcome.Wager{}, betErr(ErrInvalidBetAmount, MsgInvalidBetAmount)
	}
	side, ok := parseChoice(req.Choice)
	if !ok {
		return outcome.Wager{}, betErr(ErrInvalidChoice, MsgInvalidChoice)
	}
	return outcome.Wager{Amount: amt, Choice: side}, nil
}

func parseAmount(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case jsoniter.Number:
		d, err := decimal.NewFromString(string(x))
		return d, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

func parseChoice(v interface{}) (outcome.Side, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	default:
		return 0, false
	}
	if n != 0 && n != 1 {
		return 0, false
	}
	return outcome.Side(int(n)), true
}
