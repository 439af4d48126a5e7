package helper

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces 金额精度（与上游账务、settlement 表 DECIMAL(20,2) 一致）
const MoneyPlaces = 2

// IsMoney 金额小数位不超过 MoneyPlaces
func IsMoney(val decimal.Decimal) bool {
	return val.Equal(val.Round(MoneyPlaces))
}

// RoundMoney 金额四舍五入到 MoneyPlaces 位
func RoundMoney(val decimal.Decimal) decimal.Decimal {
	return val.Round(MoneyPlaces)
}

// TrimDecimal decimal 对象四舍五入到2位小数（用于日志与展示）
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(MoneyPlaces)
}

// MoneyFloat 金额四舍五入到2位小数后转 float64，供下行事件与上游请求序列化
func MoneyFloat(val decimal.Decimal) float64 {
	return val.Round(MoneyPlaces).InexactFloat64()
}
