package logger

import (
	"context"
)

type ctxKey struct{}

// GetTraceID 读取 context 中的 traceId（结算中为局ID，握手与校验阶段为连接ID）
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTraceID 覆盖 context 中的 traceId
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}
