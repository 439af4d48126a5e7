package service

import "errors"

// 结算失败分类（BetError.Kind）
var (
	ErrSessionMissing      = errors.New("session missing")
	ErrInvalidAmountType   = errors.New("invalid amount type")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidBetAmount    = errors.New("invalid bet amount")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrDebitRejected       = errors.New("debit rejected")
)

// 下发给客户端的 bet_error 文案
const (
	MsgInvalidSession      = "Invalid Session"
	MsgInvalidAmountType   = "Invalid Bet amount type"
	MsgInsufficientBalance = "Insufficient Balance"
	MsgInvalidBetAmount    = "Invalid bet amount."
	MsgInvalidChoice       = "Invalid choice. Must be 0 (tails) or 1 (heads)."
	MsgDebitCancelled      = "Bet Cancelled by Upstream while debiting from balance"
	MsgBetQueueFull        = "Bet not accepted, previous bets still processing"
)

// BetError 携带客户端文案，可用 errors.Is 匹配分类
type BetError struct {
	Kind    error
	Message string
}

func (e *BetError) Error() string { return e.Kind.Error() + ": " + e.Message }
func (e *BetError) Unwrap() error { return e.Kind }

func betErr(kind error, msg string) *BetError {
	return &BetError{Kind: kind, Message: msg}
}
