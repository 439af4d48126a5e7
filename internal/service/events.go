package service

import (
	"time"

	"ht-server/common/helper"
	"ht-server/internal/outcome"
	"ht-server/internal/session"
)

// 下行事件名
const (
	EventInfo     = "info"
	EventResult   = "result"
	EventBetError = "bet_error"
)

// Emitter 向单个连接下发事件；连接关闭后的发送被丢弃
type Emitter interface {
	Emit(event string, payload interface{})
	// EmitAfter 延迟下发，连接关闭时取消
	EmitAfter(delay time.Duration, event string, payload interface{})
}

type InfoPayload struct {
	UserID     string  `json:"user_id"`
	OperatorID string  `json:"operator_id"`
	Balance    float64 `json:"balance"`
}

type ResultPayload struct {
	Status     string  `json:"status"`
	WinAmt     float64 `json:"winAmt"`
	Mult       float64 `json:"mult"`
	CoinResult int     `json:"coinResult"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewInfo(rec *session.Record) InfoPayload {
	return InfoPayload{UserID: rec.UserID, OperatorID: rec.OperatorID, Balance: helper.MoneyFloat(rec.Balance)}
}

func newResult(r outcome.Result) ResultPayload {
	return ResultPayload{
		Status:     string(r.Status),
		WinAmt:     helper.MoneyFloat(r.WinAmount),
		Mult:       helper.MoneyFloat(r.Multiplier),
		CoinResult: r.Random,
	}
}
