package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	}
	r.GET("/x", ok)
	r.POST("/x", ok)
	r.DELETE("/x", ok)
	r.POST("/fail", func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "GROCERY_LIST_UNAVAILABLE"})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSession(t *testing.T) {
	r := newEngine(Session())

	w := do(r, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	w = do(r, http.MethodGet, "/x", "", map[string]string{UserIDHeader: "   "})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/x", "", map[string]string{UserIDHeader: "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
}

func TestDeduplication(t *testing.T) {
	r := newEngine(Deduplication(time.Minute))
	alice := map[string]string{UserIDHeader: "alice"}
	bob := map[string]string{UserIDHeader: "bob"}

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/x", `{"ingredients":"eggs"}`, alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/x", `{"ingredients":"eggs"}`, alice).Code)

	// 不同使用者或不同內容不算重複
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/x", `{"ingredients":"eggs"}`, bob).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/x", `{"ingredients":"milk"}`, alice).Code)

	// DELETE 可重複執行，不去重
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/x", `{"ingredient":"eggs"}`, alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/x", `{"ingredient":"eggs"}`, alice).Code)

	// 讀取請求不去重
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "", alice).Code)
}

func TestDeduplication_ServerErrorCanBeRetried(t *testing.T) {
	r := newEngine(Deduplication(time.Minute))
	alice := map[string]string{UserIDHeader: "alice"}

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/fail", `{"ingredients":"eggs"}`, alice).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/fail", `{"ingredients":"eggs"}`, alice).Code)
}

func TestRequestCache_ExpiresAfterWindow(t *testing.T) {
	cache := newRequestCache(time.Second)
	now := time.Now()

	assert.False(t, cache.seen("a", now))
	assert.True(t, cache.seen("a", now.Add(500*time.Millisecond)))
	assert.False(t, cache.seen("a", now.Add(2*time.Second)))

	// 長時間後觸發清理
	assert.False(t, cache.seen("b", now.Add(time.Minute)))
	cache.mu.Lock()
	_, stale := cache.requests["a"]
	cache.mu.Unlock()
	assert.False(t, stale)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Hour))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "", nil).Code)

	w := do(r, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8))

	w := do(r, http.MethodPost, "/x", strings.Repeat("a", 64), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(r, http.MethodPost, "/x", "ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery(), Logger())

	w := do(r, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
