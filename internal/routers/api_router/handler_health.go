package api_router

import (
	"time"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/internal/dto"
	pkgapp "github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	*Handler
}

// NewHealthHandler 创建健康检查处理器实例
func NewHealthHandler(a *app.App) *HealthHandler {
	return &HealthHandler{Handler: NewHandler(a)}
}

// Check 健康检查接口
// @Summary 健康检查
// @Description 检查服务健康状态，包括数据库连接与采集工作池
// @Tags 系统
// @Produce json
// @Success 200 {object} pkgapp.Res{data=dto.HealthDTO}
// @Router /api/health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	pool := h.App.WorkerPool()
	health := dto.HealthDTO{
		Status:       "healthy",
		Version:      h.App.Version().Version,
		Uptime:       time.Since(h.App.StartTime).Seconds(),
		Database:     "connected",
		ActiveRuns:   pool.ActiveCount(),
		QueuedRuns:   pool.QueuedCount(),
		ShuttingDown: h.App.IsShuttingDown(),
	}

	// 检查数据库连接
	sqlDB, err := h.App.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logError(c.Request.Context(), "HealthHandler.Check", err)
		health.Status = "unhealthy"
		health.Database = "error"
		pkgapp.NewResponse(c).ToResponse(code.ErrorDBQuery.WithData(health))
		return
	}
	if health.ShuttingDown {
		health.Status = "unhealthy"
		pkgapp.NewResponse(c).ToResponse(code.ErrorServiceClosed.WithData(health))
		return
	}

	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(health))
}
