package middleware

import (
	"crypto/subtle"
	"strings"
	"time"

	"ht-server/common/logger"
	"ht-server/internal/common/helper"
	"ht-server/internal/common/response"
	"ht-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// AdminAuthFilter 管理接口认证（Authorization: Bearer <admin.token>）
// 未启用 admin 时管理接口一律拒绝
func AdminAuthFilter(ctx *beegocontext.Context) {
	cfg := config.GetCurrent()
	traceID := helper.GetTraceID(ctx)

	deny := func(status int, message string) {
		ctx.Output.SetStatus(status)
		_ = ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeUnauthorized,
			Message:   message,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	if cfg == nil || !cfg.Admin.Enabled || cfg.Admin.Token == "" {
		deny(403, "管理接口未启用")
		return
	}

	authHeader := strings.TrimSpace(ctx.Input.Header("Authorization"))
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		logger.Warn("missing admin token", zap.String("trace_id", traceID))
		deny(401, "缺少管理员认证信息")
		return
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Admin.Token)) != 1 {
		logger.Warn("invalid admin token", zap.String("trace_id", traceID), zap.String("ip", ctx.Input.IP()))
		deny(401, "无效的管理员Token")
		return
	}
	ctx.Input.SetData("is_admin", true)
}
