package helper

import (
	"fmt"
	"strconv"
	"strings"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// QueryLimit 读取 ?limit=N，缺省为 def，超过 max 截断；非法值返回 ok=false
func QueryLimit(ctx *beegocontext.Context, def, max uint) (uint, bool) {
	raw := strings.TrimSpace(ctx.Input.Query("limit"))
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	if uint(n) > max {
		return max, true
	}
	return uint(n), true
}
