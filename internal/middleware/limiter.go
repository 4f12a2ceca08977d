package middleware

import (
	"github.com/haierkeys/harvester-service/pkg/app"
	"github.com/haierkeys/harvester-service/pkg/code"
	"github.com/haierkeys/harvester-service/pkg/limiter"

	"github.com/gin-gonic/gin"
)

// RateLimiter rejects requests once the bucket of their route is empty
// RateLimiter 令牌桶限流
func RateLimiter(l limiter.Face) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bucket, ok := l.GetBucket(l.Key(c)); ok && bucket.TakeAvailable(1) == 0 {
			app.NewResponse(c).ToResponse(code.ErrorTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
