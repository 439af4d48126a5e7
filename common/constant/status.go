package constant

// outbox status
const (
	OutboxPending = 1 // 待发送
	OutboxSent    = 2 // 已发送
	OutboxFailed  = 3 // 永久失败
)

// OutboxMaxRetries outbox 单条消息最多投递次数
const OutboxMaxRetries = 10

// settlement credit status
const (
	CreditNone     = "none"          // 输局，无需派彩
	CreditDone     = "credited"      // 派彩成功
	CreditFailed   = "credit_failed" // 派彩失败，待对账
)

var creditStatusDesc = map[string]string{
	CreditNone:   "无派彩",
	CreditDone:   "已派彩",
	CreditFailed: "派彩失败待对账",
}

// GetCreditStatusDesc 获取派彩状态描述
func GetCreditStatusDesc(s string) string {
	if desc, ok := creditStatusDesc[s]; ok {
		return desc
	}
	return "未知状态"
}
