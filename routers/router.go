package routers

import (
	"net/http"

	"ht-server/internal/controller/api"
	"ht-server/internal/metrics"
	"ht-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 路由依赖，由 main 装配后传入
type Deps struct {
	Socket     http.Handler // /socket 投注长连接
	Checks     []api.Check  // /readyz 依赖探测
	DB         sqlx.ExtContext
	EnableProm bool
}

// Register 注册HTTP路由与全局过滤器
func Register(d Deps) {
	// 全局过滤器（按执行顺序）
	// 1. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 2. Panic Recovery（过滤链包裹整个处理流程）
	beego.InsertFilterChain("/*", middleware.Recovery)

	// 3. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter, beego.WithReturnOnOutput(false))

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{Checks: d.Checks}, "get:Readyz")

	if d.EnableProm {
		beego.Handler("/metrics", promhttp.Handler())
	}

	// 投注长连接：握手参数 token/game_id
	beego.Handler("/socket", d.Socket)

	// ========== 管理 API（需要管理员认证） ==========
	beego.InsertFilter("/api/settlements/*", beego.BeforeRouter, middleware.AdminAuthFilter)
	beego.Router("/api/settlements/credit_failed", &api.SettlementController{DB: d.DB}, "get:CreditFailed")
}
