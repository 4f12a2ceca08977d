package api_router

import (
	"net/http"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/dto"
	pkgapp "github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/code"
	apperrors "github.com/haierkeys/harvester-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConfigHandler serves the config endpoints of one protocol.
// Config reads answer with the bare JSON document the admin GUI consumes.
// ConfigHandler 单个协议的配置接口，读取接口直接返回配置文档
type ConfigHandler struct {
	*Handler
	protocol domain.Protocol
}

// NewConfigHandler 创建协议对应的 ConfigHandler
func NewConfigHandler(a *app.App, p domain.Protocol) *ConfigHandler {
	return &ConfigHandler{Handler: NewHandler(a), protocol: p}
}

// Add creates or replaces a config
// @Summary 新建或更新采集配置
// @Description 请求体不带 id（或为 0）时新建，否则按 id 整体替换
// @Tags 配置
// @Accept json
// @Produce json
// @Param proto path string true "http / ftp / sftp"
// @Success 200 {object} dto.SaveResponse
// @Router /api/configs/{proto}/add [post]
func (h *ConfigHandler) Add(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := dto.NewConfigDocument(h.protocol)

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Warn("ConfigHandler.Add.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	saved, err := h.App.HarvesterService.Save(ctx, params.ToDomain())
	if err != nil {
		h.logError(ctx, "ConfigHandler.Add", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	response.ToRaw(http.StatusOK, dto.SaveResponse{ID: saved.ID})
}

// Get returns one config with its progress
// @Summary 获取采集配置
// @Tags 配置
// @Produce json
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Router /api/configs/{proto}/get/{id} [get]
func (h *ConfigHandler) Get(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Get")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.App.HarvesterService.Get(ctx, h.protocol, id)
	if err != nil {
		h.logError(ctx, "ConfigHandler.Get", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	progress := h.App.RunService.Progress(cfg.ID)
	pkgapp.NewResponse(c).ToRaw(http.StatusOK, dto.ConfigFromDomain(cfg, &progress))
}

// List returns configs in id order starting at offset start
// @Summary 列出采集配置
// @Tags 配置
// @Produce json
// @Param proto path string true "http / ftp / sftp"
// @Param start query int false "起始偏移"
// @Param limit query int false "数量，<= 0 表示不限制"
// @Router /api/configs/{proto}/list [get]
func (h *ConfigHandler) List(c *gin.Context) {
	start, limit := pkgapp.GetStartLimit(c)

	ctx := c.Request.Context()
	cfgs, err := h.App.HarvesterService.List(ctx, h.protocol, start, limit)
	if err != nil {
		h.logError(ctx, "ConfigHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	out := make([]any, 0, len(cfgs))
	for _, cfg := range cfgs {
		progress := h.App.RunService.Progress(cfg.ID)
		out = append(out, dto.ConfigFromDomain(cfg, &progress))
	}
	pkgapp.NewResponse(c).ToRaw(http.StatusOK, out)
}

// Delete removes a config and aborts its active run
// @Summary 删除采集配置
// @Tags 配置
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Router /api/configs/{proto}/delete/{id} [delete]
func (h *ConfigHandler) Delete(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Delete")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.App.HarvesterService.Delete(ctx, h.protocol, id); err != nil {
		h.logError(ctx, "ConfigHandler.Delete", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	h.App.RunService.Discard(id)
	pkgapp.NewResponse(c).ToResponse(code.SuccessDelete)
}

// Test previews what a run would fetch, without side effects
// @Summary 测试采集配置
// @Tags 配置
// @Produce json
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Success 200 {array} domain.TestEntry
// @Router /api/configs/{proto}/test/{id} [get]
func (h *ConfigHandler) Test(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Test")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	entries, err := h.App.RunService.Test(ctx, h.protocol, id)
	if err != nil {
		h.logError(ctx, "ConfigHandler.Test", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	pkgapp.NewResponse(c).ToRaw(http.StatusOK, entries)
}

// Abort requests cancellation of the active run
// @Summary 中止运行
// @Tags 运行
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Router /api/configs/{proto}/abort/{id} [post]
func (h *ConfigHandler) Abort(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Abort")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.App.RunService.Abort(ctx, h.protocol, id); err != nil {
		h.logError(ctx, "ConfigHandler.Abort", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	pkgapp.NewResponse(c).ToRaw(http.StatusOK, h.App.RunService.Progress(id))
}

// Run starts a run outside the schedule
// @Summary 立即运行
// @Tags 运行
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Success 202 {object} dto.RunResponse
// @Router /api/configs/{proto}/run/{id} [post]
func (h *ConfigHandler) Run(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Run")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	runID, err := h.App.RunService.RunNow(ctx, h.protocol, id)
	if err != nil {
		h.logError(ctx, "ConfigHandler.Run", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	pkgapp.NewResponse(c).ToRaw(http.StatusAccepted, dto.RunResponse{ID: id, RunID: runID})
}

// Enable toggles scheduled firing
// @Summary 启用或停用配置
// @Tags 配置
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Param enabled query bool true "目标状态"
// @Router /api/configs/{proto}/enable/{id} [post]
func (h *ConfigHandler) Enable(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Enable")
	if !ok {
		return
	}
	response := pkgapp.NewResponse(c)
	params := &dto.EnableRequest{}
	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Warn("ConfigHandler.Enable.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	if err := h.App.HarvesterService.SetEnabled(ctx, h.protocol, id, *params.Enabled); err != nil {
		h.logError(ctx, "ConfigHandler.Enable", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	response.ToResponse(code.Success)
}

// Runs lists the run history of a config, newest first
// @Summary 运行历史
// @Tags 运行
// @Param proto path string true "http / ftp / sftp"
// @Param id path int true "配置 ID"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} pkgapp.Res{data=pkgapp.ListRes{list=[]dto.HarvestRunDTO}}
// @Router /api/configs/{proto}/runs/{id} [get]
func (h *ConfigHandler) Runs(c *gin.Context) {
	id, ok := h.bindID(c, "ConfigHandler.Runs")
	if !ok {
		return
	}
	pager := pkgapp.NewPager(c)

	ctx := c.Request.Context()
	runs, count, err := h.App.RunService.History(ctx, h.protocol, id, pager.Page, pager.PageSize)
	if err != nil {
		h.logError(ctx, "ConfigHandler.Runs", err)
		apperrors.ErrorResponse(c, err)
		return
	}
	list := make([]*dto.HarvestRunDTO, 0, len(runs))
	for _, run := range runs {
		list = append(list, dto.RunFromDomain(run))
	}
	pkgapp.NewResponse(c).ToResponseList(code.Success, list, int(count))
}

// StatusHandler 运行状态接口，与协议无关
type StatusHandler struct {
	*Handler
}

// NewStatusHandler 创建 StatusHandler
func NewStatusHandler(a *app.App) *StatusHandler {
	return &StatusHandler{Handler: NewHandler(a)}
}

// Status returns the progress of the latest run
// @Summary 运行状态
// @Tags 运行
// @Param id path int true "配置 ID"
// @Success 200 {object} domain.Progress
// @Router /api/configs/status/{id} [get]
func (h *StatusHandler) Status(c *gin.Context) {
	id, ok := h.bindID(c, "StatusHandler.Status")
	if !ok {
		return
	}
	progress, err := h.App.RunService.Status(id)
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}
	pkgapp.NewResponse(c).ToRaw(http.StatusOK, progress)
}
