package api

import (
	"context"
	"time"

	"ht-server/common/logger"
	"ht-server/internal/common/helper"
	"ht-server/internal/common/response"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// Check 单个依赖的就绪探测
type Check struct {
	Name string
	Ping func(ctx context.Context, timeout time.Duration) error
}

// HealthController 提供健康检查端点：/healthz 与 /readyz
type HealthController struct {
	beego.Controller

	Checks  []Check
	Timeout time.Duration
}

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：依次探测 Redis/MySQL，任一失败返回 503
func (c *HealthController) Readyz() {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	traceID := helper.GetTraceID(c.Ctx)
	status := make(map[string]string, len(c.Checks))
	ready := true
	for _, chk := range c.Checks {
		if err := chk.Ping(c.Ctx.Request.Context(), timeout); err != nil {
			logger.Warn("readiness check failed",
				zap.String("trace_id", traceID), zap.String("dependency", chk.Name), zap.Error(err))
			status[chk.Name] = "down"
			ready = false
			continue
		}
		status[chk.Name] = "up"
	}
	if !ready {
		c.Ctx.Output.SetStatus(503)
		c.Data["json"] = response.APIResponse{
			Code:      response.CodeServiceUnavailable,
			Message:   response.ErrorMessages[response.CodeServiceUnavailable],
			Data:      status,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}
		_ = c.ServeJSON()
		return
	}
	response.Success(&c.Controller, status, traceID)
}
