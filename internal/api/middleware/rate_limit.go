package middleware

import (
	"math"
	"strconv"

	"chef-session/internal/core/ratelimit"
	"chef-session/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit 限流中間件，以客戶端 IP 為鍵
//
// 限流紀錄讀寫失敗時記錄錯誤並放行請求。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := c.ClientIP()
		decision, err := limiter.Admit(c.Request.Context(), key)
		if err != nil {
			common.LogError("Rate limit store failed, request allowed",
				zap.Error(err),
				zap.String("ip", key),
				zap.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			common.LogInfo("Rate limit exceeded",
				zap.String("ip", key),
				zap.String("path", c.Request.URL.Path),
				zap.Duration("retry_after", decision.RetryAfter),
			)

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			common.WriteError(c, common.ErrTooManyRequests, false)
			return
		}

		c.Next()
	}
}
