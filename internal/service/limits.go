package service

import (
	"time"

	"github.com/shopspring/decimal"

	"ht-server/internal/config"
)

// Limits 单次结算使用的业务参数快照（配置热更新不影响进行中的结算）
type Limits struct {
	MinBet      decimal.Decimal
	MaxBet      decimal.Decimal
	Multiplier  decimal.Decimal
	NotifyDelay time.Duration
	SessionTTL  time.Duration
}

// LimitsFromConfig cfg 为 nil 时使用默认值
func LimitsFromConfig(cfg *config.Config) Limits {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	g := cfg.Game
	return Limits{
		MinBet:      decimal.NewFromFloat(g.MinBetAmount),
		MaxBet:      decimal.NewFromFloat(g.MaxBetAmount),
		Multiplier:  decimal.NewFromFloat(g.WinMultiplier),
		NotifyDelay: time.Duration(g.CreditNotifyDelayMS) * time.Millisecond,
		SessionTTL:  time.Duration(g.SessionTTLSec) * time.Second,
	}
}

// CurrentLimits 读取当前生效配置
func CurrentLimits() Limits {
	return LimitsFromConfig(config.GetCurrent())
}
