package state

import "fmt"

// State 单局结算状态
const (
	StateIdle        = "idle"         // 收到下注
	StateValidating  = "validating"   // 会话已加载，校验中
	StateDebited     = "debited"      // 上游扣款成功
	StateWin         = "resolved_win" // 已开奖：赢
	StateLoss        = "resolved_loss"
	StateRecorded    = "recorded"     // 已交付结算记录
	StateRejected    = "rejected"     // 会话缺失或校验失败（终态）
	StateDebitFailed = "debit_failed" // 上游扣款失败（终态）
)

// Event 结算事件
const (
	EvtSessionLoaded = "session_loaded"
	EvtReject        = "reject"
	EvtDebitOK       = "debit_ok"
	EvtDebitFail     = "debit_fail"
	EvtDrawWin       = "draw_win"
	EvtDrawLoss      = "draw_loss"
	EvtRecord        = "record"
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
// 状态只能前进，不会回到之前的状态
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateIdle:
		switch evt {
		case EvtSessionLoaded:
			return StateValidating, nil
		case EvtReject:
			return StateRejected, nil
		}
	case StateValidating:
		switch evt {
		case EvtDebitOK:
			return StateDebited, nil
		case EvtDebitFail:
			return StateDebitFailed, nil
		case EvtReject:
			return StateRejected, nil
		}
	case StateDebited:
		switch evt {
		case EvtDrawWin:
			return StateWin, nil
		case EvtDrawLoss:
			return StateLoss, nil
		}
	case StateWin, StateLoss:
		if evt == EvtRecord {
			return StateRecorded, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// Terminal 是否终态
func Terminal(s string) bool {
	return s == StateRecorded || s == StateRejected || s == StateDebitFailed
}
