package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recipe-share/internal/infrastructure/monitoring"
	"recipe-share/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSafetyMargin token 到期前提早換新的時間
const DefaultSafetyMargin = 60 * time.Second

// AccessToken 供應商 bearer token
type AccessToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid 判斷 token 在 now 時是否仍可使用
func (t *AccessToken) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}

// Grant 憑證交換結果
type Grant struct {
	Value    string
	Lifetime time.Duration
}

// Exchanger 以 client credentials 換取 token
type Exchanger interface {
	Exchange(ctx context.Context) (Grant, error)
}

// ExchangerFunc 函式形式的 Exchanger
type ExchangerFunc func(ctx context.Context) (Grant, error)

// Exchange 實現 Exchanger 介面
func (f ExchangerFunc) Exchange(ctx context.Context) (Grant, error) {
	return f(ctx)
}

// Store 跨程序共用的 token 儲存
type Store interface {
	Load(ctx context.Context) (*AccessToken, error)
	Save(ctx context.Context, tok AccessToken) error
	Delete(ctx context.Context) error
}

// ProviderAuthError 憑證交換失敗
type ProviderAuthError struct {
	Err error
}

func (e *ProviderAuthError) Error() string {
	return fmt.Sprintf("provider authentication failed: %v", e.Err)
}

func (e *ProviderAuthError) Unwrap() error {
	return e.Err
}

// Cache 持有單一供應商 token，並合併同時發生的換新請求
type Cache struct {
	exchanger Exchanger
	store     Store
	metrics   *monitoring.PricingMetrics
	now       func() time.Time
	margin    time.Duration

	mu      sync.RWMutex
	current *AccessToken
	group   singleflight.Group
}

// Option Cache 設定選項
type Option func(*Cache)

// WithStore 設定共用儲存
func WithStore(store Store) Option {
	return func(c *Cache) { c.store = store }
}

// WithClock 設定時鐘
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSafetyMargin 設定提早換新的時間
func WithSafetyMargin(margin time.Duration) Option {
	return func(c *Cache) { c.margin = margin }
}

// WithMetrics 設定指標
func WithMetrics(m *monitoring.PricingMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// NewCache 創建 token 快取
func NewCache(exchanger Exchanger, opts ...Option) *Cache {
	c := &Cache{
		exchanger: exchanger,
		now:       time.Now,
		margin:    DefaultSafetyMargin,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token 取得有效的 bearer token，必要時換新
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok := c.cached(); tok != nil {
		return tok.Value, nil
	}

	v, err, shared := c.group.Do("token", func() (interface{}, error) {
		// 等待期間可能已被其他呼叫者換新
		if tok := c.cached(); tok != nil {
			return tok.Value, nil
		}
		// 單一呼叫者取消不應讓其他等待者失敗
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	if shared {
		common.LogDebug("Shared in-flight token refresh")
	}
	return v.(string), nil
}

// Invalidate 丟棄目前持有的 token
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(ctx); err != nil {
			common.LogWarn("Failed to delete shared provider token", zap.Error(err))
		}
	}
}

func (c *Cache) cached() *AccessToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current.Valid(c.now()) {
		return c.current
	}
	return nil
}

func (c *Cache) set(tok *AccessToken) {
	c.mu.Lock()
	c.current = tok
	c.mu.Unlock()
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	if c.store != nil {
		tok, err := c.store.Load(ctx)
		if err != nil {
			common.LogWarn("Failed to load shared provider token", zap.Error(err))
		} else if tok.Valid(c.now()) {
			c.set(tok)
			return tok.Value, nil
		}
	}

	grant, err := c.exchanger.Exchange(ctx)
	if err != nil {
		c.metrics.ObserveTokenRefresh(false)
		common.LogError("Provider credential exchange failed", zap.Error(err))
		return "", &ProviderAuthError{Err: err}
	}
	c.metrics.ObserveTokenRefresh(true)

	tok := &AccessToken{
		Value:     grant.Value,
		ExpiresAt: c.now().Add(grant.Lifetime - c.margin),
	}
	c.set(tok)

	if c.store != nil {
		if err := c.store.Save(ctx, *tok); err != nil {
			common.LogWarn("Failed to save shared provider token", zap.Error(err))
		}
	}

	common.LogInfo("Provider token refreshed",
		zap.Time("expires_at", tok.ExpiresAt),
		zap.Duration("lifetime", grant.Lifetime),
	)
	return tok.Value, nil
}
