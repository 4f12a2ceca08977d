// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"context"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/internal/dto"
	"github.com/haierkeys/harvester-service/internal/middleware"
	pkgapp "github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 基础 Handler 结构体，封装 App Container
// 所有 API Handler 都应该嵌入此结构体以获得依赖注入能力
type Handler struct {
	App *app.App
}

// NewHandler 创建基础 Handler 实例
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

// logError 记录带 traceId 的错误日志
func (h *Handler) logError(ctx context.Context, method string, err error) {
	h.App.Logger().Error(method,
		zap.Error(err),
		zap.String("traceId", middleware.GetTraceID(ctx)),
	)
}

// bindID 绑定路径参数 :id，失败时直接输出 400
func (h *Handler) bindID(c *gin.Context, method string) (int64, bool) {
	params := &dto.IDRequest{}
	if err := c.ShouldBindUri(params); err != nil {
		h.logError(c.Request.Context(), method+".ShouldBindUri", err)
		pkgapp.NewResponse(c).ToResponse(code.ErrorInvalidParams.WithDetails(err.Error()))
		return 0, false
	}
	return params.ID, true
}
