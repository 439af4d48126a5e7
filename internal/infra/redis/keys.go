package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixPlayerSession：连接会话缓存 Key 的前缀。
	// 作用：缓存某个连接对应的玩家信息（用户、运营商、token、游戏、余额），连接断开时删除。
	PrefixPlayerSession = "PL:"
)

// SessionKey：构造会话缓存的完整 Key。
// 形如：PL:{connection_id}
func SessionKey(connID string) string { return PrefixPlayerSession + connID }
