package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-share/internal/pkg/common"
)

const defaultDedupWindow = time.Second

// requestCache 記錄最近請求指紋，用於去重
type requestCache struct {
	mu       sync.Mutex
	window   time.Duration
	requests map[string]time.Time
	lastGC   time.Time
}

func newRequestCache(window time.Duration) *requestCache {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &requestCache{
		window:   window,
		requests: make(map[string]time.Time),
		lastGC:   time.Now(),
	}
}

// seen 記錄指紋，window 內重複出現時回傳 true
func (rc *requestCache) seen(fingerprint string, now time.Time) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// 清理過期指紋
	if now.Sub(rc.lastGC) > 10*rc.window {
		for k, t := range rc.requests {
			if now.Sub(t) > rc.window {
				delete(rc.requests, k)
			}
		}
		rc.lastGC = now
	}

	if last, ok := rc.requests[fingerprint]; ok && now.Sub(last) <= rc.window {
		return true
	}
	rc.requests[fingerprint] = now
	return false
}

// forget 移除指紋，讓失敗的請求可以立即重試
func (rc *requestCache) forget(fingerprint string) {
	rc.mu.Lock()
	delete(rc.requests, fingerprint)
	rc.mu.Unlock()
}

// Deduplication 請求去重中間件，同一使用者在 window 內送出相同的 POST 請求時回傳 429；
// 伺服器錯誤的請求不計入
func Deduplication(window time.Duration) gin.HandlerFunc {
	cache := newRequestCache(window)

	return func(c *gin.Context) {
		// 只處理 POST 請求，DELETE 本身可重複執行
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		// 計算請求體哈希
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusBadRequest, common.ErrInvalidRequest.Response(false))
				return
			}

			hash := sha256.Sum256(body)
			bodyHash = hex.EncodeToString(hash[:])

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		// 生成請求指紋
		fingerprint := c.GetHeader(UserIDHeader) + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + bodyHash

		if cache.seen(fingerprint, time.Now()) {
			common.LogInfo("Duplicate request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(common.ErrTooManyRequests.Status, common.ErrTooManyRequests.Response(false))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			cache.forget(fingerprint)
		}
	}
}
