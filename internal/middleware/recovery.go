package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/code"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 捕获 handler 中的 panic 并返回统一错误响应
func Recovery(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			var msg string
			fields := []zap.Field{
				zap.String("router", c.Request.URL.Path),
				zap.String(logger.FieldMethod, c.Request.Method),
				zap.String("query", c.Request.URL.RawQuery),
				zap.String("ip", c.ClientIP()),
				zap.String(logger.FieldTraceID, GetTraceIDFromGin(c)),
				zap.String("stack", string(debug.Stack())),
			}
			if err, ok := r.(error); ok {
				msg = err.Error()
				lg.Error("recovered from panic", append(fields, zap.Error(err))...)
			} else {
				msg = fmt.Sprintf("%v", r)
				lg.Error("recovered from unknown panic", append(fields, zap.String("panic", msg))...)
			}

			app.NewResponse(c).ToResponse(code.ErrorServerInternal.WithDetails(msg))
			c.Abort()
		}()

		c.Next()
	}
}
