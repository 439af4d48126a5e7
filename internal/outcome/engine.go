package outcome

import (
	"sync"

	"github.com/shopspring/decimal"

	"ht-server/common/helper"
)

// Side 下注面：0=反面(tails) 1=正面(heads)
type Side int

const (
	Tails Side = 0
	Heads Side = 1
)

func (s Side) Valid() bool { return s == Tails || s == Heads }

type Status string

const (
	StatusWin  Status = "win"
	StatusLoss Status = "loss"
)

// Wager 已通过校验的下注
type Wager struct {
	Amount decimal.Decimal
	Choice Side
}

// Result 单局开奖结果；输局时 WinAmount 与 Multiplier 为 0
type Result struct {
	Status     Status
	Random     int
	WinAmount  decimal.Decimal
	Multiplier decimal.Decimal
}

// Source 随机源，测试中可注入固定序列
type Source interface {
	Intn(n int) int
}

// Engine 开奖引擎：从 {0,1} 均匀抽取，与下注面相同即为赢
type Engine struct {
	mu  sync.Mutex
	src Source
}

// NewEngine src 为 nil 时使用加密种子的随机源
func NewEngine(src Source) *Engine {
	if src == nil {
		src = helper.NewRand()
	}
	return &Engine{src: src}
}

// Resolve 不读写任何会话/账务状态；派彩金额按两位小数四舍五入
func (e *Engine) Resolve(w Wager, multiplier decimal.Decimal) Result {
	e.mu.Lock()
	drawn := e.src.Intn(2)
	e.mu.Unlock()

	if Side(drawn) != w.Choice {
		return Result{Status: StatusLoss, Random: drawn, WinAmount: decimal.Zero, Multiplier: decimal.Zero}
	}
	return Result{
		Status:     StatusWin,
		Random:     drawn,
		WinAmount:  helper.RoundMoney(w.Amount.Mul(multiplier)),
		Multiplier: multiplier,
	}
}
