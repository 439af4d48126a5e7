package middleware

import (
	"runtime/debug"
	"time"

	"ht-server/common/logger"
	"ht-server/internal/common/helper"
	"ht-server/internal/common/response"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// Recovery 以过滤链包裹后续处理，捕获未处理的 panic 并返回 500
func Recovery(next beego.FilterFunc) beego.FilterFunc {
	return func(ctx *beegocontext.Context) {
		defer func() {
			if err := recover(); err != nil {
				if err == beego.ErrAbort {
					panic(err)
				}
				traceID := helper.GetTraceID(ctx)
				logger.Error("panic recovered",
					zap.String("trace_id", traceID),
					zap.String("method", ctx.Request.Method),
					zap.String("path", ctx.Request.URL.Path),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())))

				ctx.Output.SetStatus(500)
				_ = ctx.Output.JSON(response.APIResponse{
					Code:      response.CodeSystemError,
					Message:   response.ErrorMessages[response.CodeSystemError],
					TraceID:   traceID,
					Timestamp: time.Now().UnixMilli(),
				}, false, false)
			}
		}()
		next(ctx)
	}
}
