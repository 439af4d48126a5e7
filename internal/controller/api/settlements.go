package api

import (
	"ht-server/common/logger"
	"ht-server/internal/common/helper"
	"ht-server/internal/common/response"
	"ht-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SettlementController 对账接口：列出派彩失败、需要人工补偿的结算记录
type SettlementController struct {
	beego.Controller

	DB sqlx.ExtContext
}

// CreditFailed GET /api/settlements/credit_failed?limit=N
func (c *SettlementController) CreditFailed() {
	traceID := helper.GetTraceID(c.Ctx)
	limit, ok := helper.QueryLimit(c.Ctx, defaultListLimit, maxListLimit)
	if !ok {
		response.BadRequest(&c.Controller, "limit 必须为正整数", traceID)
		return
	}
	rows, err := model.ListCreditFailures(c.Ctx.Request.Context(), c.DB, limit)
	if err != nil {
		logger.Error("list credit failures failed", zap.String("trace_id", traceID), zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}
	if rows == nil {
		rows = []model.Settlement{}
	}
	response.Success(&c.Controller, rows, traceID)
}
