package model

import (
	"context"
	"errors"
	"strings"
	"time"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"ht-server/common"
	"ht-server/common/constant"
)

const TableSettlement = "settlement"

// Settlement 结算记录表，每局一条（round_id 唯一索引）
type Settlement struct {
	ID           int64           `db:"id" json:"id"`                       // 自增ID
	RoundID      string          `db:"round_id" json:"round_id"`           // 局ID（UUIDv7）
	UserID       string          `db:"user_id" json:"user_id"`             // 用户ID
	OperatorID   string          `db:"operator_id" json:"operator_id"`     // 运营商ID
	GameID       string          `db:"game_id" json:"game_id"`             // 游戏ID
	BetOn        int             `db:"bet_on" json:"bet_on"`               // 下注面 0=tails 1=heads
	BetAmount    decimal.Decimal `db:"bet_amount" json:"bet_amount"`       // 下注金额
	WinAmount    decimal.Decimal `db:"win_amount" json:"win_amount"`       // 派彩金额（输局为0）
	Multiplier   decimal.Decimal `db:"multiplier" json:"multiplier"`       // 赔率（输局为0）
	Status       string          `db:"status" json:"status"`               // win|loss
	Result       int             `db:"result" json:"result"`               // 开奖结果 0|1
	DebitTxnID   string          `db:"debit_txn_id" json:"debit_txn_id"`   // 上游扣款流水号
	CreditStatus string          `db:"credit_status" json:"credit_status"` // none|credited|credit_failed
	CreatedAt    int64           `db:"created_at" json:"created_at"`       // 创建时间（13位毫秒时间戳）
}

// SettledEvent 写入 outbox 的 bet_settled 消息体
type SettledEvent struct {
	Event        string  `json:"event"`
	RoundID      string  `json:"round_id"`
	UserID       string  `json:"user_id"`
	OperatorID   string  `json:"operator_id"`
	GameID       string  `json:"game_id"`
	BetOn        int     `json:"bet_on"`
	BetAmount    float64 `json:"bet_amount"`
	WinAmount    float64 `json:"win_amount"`
	Multiplier   float64 `json:"multiplier"`
	Status       string  `json:"status"`
	Result       int     `json:"result"`
	CreditStatus string  `json:"credit_status"`
	Ts           int64   `json:"ts"`
}

var fieldsSettlement = common.EnumFields(Settlement{})

func (s *Settlement) record() g.Record {
	return g.Record{
		"round_id":      s.RoundID,
		"user_id":       s.UserID,
		"operator_id":   s.OperatorID,
		"game_id":       s.GameID,
		"bet_on":        s.BetOn,
		"bet_amount":    s.BetAmount.StringFixed(2),
		"win_amount":    s.WinAmount.StringFixed(2),
		"multiplier":    s.Multiplier.StringFixed(2),
		"status":        s.Status,
		"result":        s.Result,
		"debit_txn_id":  s.DebitTxnID,
		"credit_status": s.CreditStatus,
		"created_at":    s.CreatedAt,
	}
}

// Event 构造 bet_settled 消息
func (s *Settlement) Event() SettledEvent {
	return SettledEvent{
		Event:        "bet_settled",
		RoundID:      s.RoundID,
		UserID:       s.UserID,
		OperatorID:   s.OperatorID,
		GameID:       s.GameID,
		BetOn:        s.BetOn,
		BetAmount:    s.BetAmount.Round(2).InexactFloat64(),
		WinAmount:    s.WinAmount.Round(2).InexactFloat64(),
		Multiplier:   s.Multiplier.Round(2).InexactFloat64(),
		Status:       s.Status,
		Result:       s.Result,
		CreditStatus: s.CreditStatus,
		Ts:           s.CreatedAt,
	}
}

// InsertSettlement 在一个事务内写入结算记录与 bet_settled outbox 消息
// 唯一键冲突说明该局已落库，返回 inserted=false 且 err=nil
func InsertSettlement(ctx context.Context, db *sqlx.DB, s *Settlement, outboxTopic string) (inserted bool, err error) {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !inserted {
			_ = tx.Rollback()
		}
	}()

	res, err := common.InsertCtx(ctx, tx, TableSettlement, s.record())
	if err != nil {
		if IsDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	if id, e := res.LastInsertId(); e == nil {
		s.ID = id
	}

	if outboxTopic != "" {
		if err = CreateOutbox(ctx, tx, outboxTopic, s.RoundID, s.Event()); err != nil {
			return false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// GetSettlement 按局ID查询
func GetSettlement(ctx context.Context, exec sqlx.ExtContext, roundID string) (*Settlement, error) {
	var s Settlement
	if err := common.SelectOneExtCtx(ctx, exec, &s, TableSettlement, fieldsSettlement, g.C("round_id").Eq(roundID)); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListCreditFailures 查询派彩失败待对账的结算记录（按 id 倒序）
func ListCreditFailures(ctx context.Context, exec sqlx.ExtContext, limit uint) ([]Settlement, error) {
	var list []Settlement
	err := common.SelectAllCtx(ctx, exec, &list, common.QueryArg{
		Table:  TableSettlement,
		Fields: fieldsSettlement,
		Ex:     []exp.Expression{g.C("credit_status").Eq(constant.CreditFailed)},
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// IsDuplicateKey 唯一键冲突（MySQL 1062，兼容其它驱动的错误文本）
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
