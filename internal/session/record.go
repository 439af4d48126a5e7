package session

import (
	"github.com/shopspring/decimal"

	"ht-server/common"
)

// Record 会话缓存中的玩家记录（连接建立时写入，每次结算读写，断开时删除）
type Record struct {
	UserID     string          `json:"user_id"`
	OperatorID string          `json:"operator_id"`
	Token      string          `json:"token"`
	GameID     string          `json:"game_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// Clone 返回记录副本，结算过程在副本上修改余额
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Encode 序列化为缓存值
func Encode(r *Record) (string, error) {
	return common.JsonMarshalToString(r)
}

// Decode 从缓存值反序列化
func Decode(raw string) (*Record, error) {
	var r Record
	if err := common.JsonUnmarshalFromString(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
