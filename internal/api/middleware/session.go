package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-share/internal/pkg/common"
)

const (
	// UserIDHeader 上游閘道驗證後帶入的使用者識別
	UserIDHeader = "X-User-ID"
	// UserIDKey gin context 中的使用者識別
	UserIDKey = "user_id"
)

// Session 要求請求帶有已驗證的使用者，否則回傳 401
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			common.LogWarn("Missing session",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(common.ErrUnauthorized.Status, common.ErrUnauthorized.Response(false))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID 取得 Session 設定的使用者識別
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
