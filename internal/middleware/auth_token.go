package middleware

import (
	"strings"

	"github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// OperatorAuth requires a valid operator token once a secret is configured.
// The token is read from the Authorization header (optionally "Bearer ") or ?token=.
// OperatorAuth 配置了密钥时要求有效的操作员令牌
func OperatorAuth(tm app.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tm == nil || !tm.Enabled() {
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

		if token == "" {
			app.NewResponse(c).ToResponse(code.ErrorNotAuthToken)
			c.Abort()
			return
		}
		claims, err := tm.Parse(token)
		if err != nil {
			app.NewResponse(c).ToResponse(code.ErrorInvalidAuthToken)
			c.Abort()
			return
		}
		app.SetOperator(c, claims)
		c.Next()
	}
}
