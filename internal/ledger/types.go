package ledger

import (
	"github.com/shopspring/decimal"
)

// Kind 资金操作类型
type Kind string

const (
	KindDebit  Kind = "DEBIT"
	KindCredit Kind = "CREDIT"
)

// Payload 一次 DEBIT/CREDIT 的业务参数，以 RoundID 作为幂等键
//   - DEBIT:  RoundID, BetAmount, GameID, IP, UserID
//   - CREDIT: RoundID, TxnID(DEBIT 返回的流水号), BetAmount, WinAmount, GameID, UserID
type Payload struct {
	RoundID   string
	TxnID     string
	BetAmount decimal.Decimal
	WinAmount decimal.Decimal
	GameID    string
	IP        string
	UserID    string
}

// Credentials 会话凭证，随每次调用透传给上游
type Credentials struct {
	GameID     string
	OperatorID string
	Token      string
}

// Result 上游处理结果；Status=false 表示上游拒绝（余额不足、风控、取消等）
type Result struct {
	Status bool
	TxnID  string
}

// UserDetail 握手阶段从账户服务获取的用户信息
type UserDetail struct {
	UserID     string          `json:"userId"`
	OperatorID string          `json:"operatorId"`
	Balance    decimal.Decimal `json:"balance"`
}
