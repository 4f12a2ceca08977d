package api_router

import (
	"net/http"
	"strings"

	"github.com/haierkeys/harvester-service/internal/app"
	"github.com/haierkeys/harvester-service/internal/dto"
	pkgapp "github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/cronexpr"

	"github.com/gin-gonic/gin"
)

// FieldHandler validates single form fields for the GUI
// FieldHandler 表单字段校验接口
type FieldHandler struct {
	*Handler
}

// NewFieldHandler 创建 FieldHandler
func NewFieldHandler(a *app.App) *FieldHandler {
	return &FieldHandler{Handler: NewHandler(a)}
}

// readExpression reads the request body as a cron expression.
// The GUI posts it as plain text, a JSON string is accepted too.
func readExpression(c *gin.Context) (string, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return "", err
	}
	expr := strings.TrimSpace(string(raw))
	if len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"' {
		expr = expr[1 : len(expr)-1]
	}
	return expr, nil
}

// ValidateCron
// @Summary 校验 cron 表达式
// @Tags 字段
// @Accept plain
// @Produce plain
// @Success 200 {string} string "OK"
// @Failure 400 {object} dto.MessageResponse
// @Router /api/fields/cron/validate [post]
func (h *FieldHandler) ValidateCron(c *gin.Context) {
	expr, err := readExpression(c)
	if err == nil {
		err = cronexpr.Validate(expr)
	}
	if err != nil {
		pkgapp.NewResponse(c).ToRaw(http.StatusBadRequest, dto.MessageResponse{Message: err.Error()})
		return
	}
	c.String(http.StatusOK, "OK")
}

// DescribeCron
// @Summary 描述 cron 表达式
// @Tags 字段
// @Accept plain
// @Produce plain
// @Success 200 {string} string "every hour at minute 0"
// @Failure 400 {object} dto.MessageResponse
// @Router /api/fields/cron/describe [post]
func (h *FieldHandler) DescribeCron(c *gin.Context) {
	expr, err := readExpression(c)
	var description string
	if err == nil {
		description, err = cronexpr.Describe(expr)
	}
	if err != nil {
		pkgapp.NewResponse(c).ToRaw(http.StatusBadRequest, dto.MessageResponse{Message: err.Error()})
		return
	}
	c.String(http.StatusOK, description)
}
