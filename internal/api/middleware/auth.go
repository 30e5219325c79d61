package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vasuki20/suss-student-discussion-data/pkg/response"
)

// AdminToken 管理接口令牌校验
// 支持 X-Admin-Token 头或 Authorization: Bearer <token>；未配置令牌时接口关闭
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Forbidden(c, 10003, "管理接口未启用")
			c.Abort()
			return
		}

		got := c.GetHeader("X-Admin-Token")
		if got == "" {
			parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				got = parts[1]
			}
		}
		if got == "" {
			response.Unauthorized(c, 10002, "缺少管理令牌")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Unauthorized(c, 10002, "管理令牌无效")
			c.Abort()
			return
		}

		c.Next()
	}
}
