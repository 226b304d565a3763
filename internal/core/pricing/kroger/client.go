package kroger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"recipe-share/internal/infrastructure/config"
	"recipe-share/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// StatusError 供應商回傳非 2xx 狀態
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kroger %s returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// IsUnauthorized 判斷錯誤是否為 401
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// TokenResponse OAuth2 token 回應
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Product 商品搜尋結果
type Product struct {
	ProductID   string `json:"productId"`
	Description string `json:"description"`
}

// Price 價格物件；regular/current 保留原始 JSON 以區分缺漏與非數值
type Price struct {
	Regular json.RawMessage `json:"regular"`
	Current json.RawMessage `json:"current"`
}

// Item 商品規格
type Item struct {
	ItemID string `json:"itemId"`
	Size   string `json:"size"`
	Price  *Price `json:"price"`
}

// ProductDetail 商品詳細資料
type ProductDetail struct {
	ProductID     string `json:"productId"`
	Description   string `json:"description"`
	Price         *Price `json:"price"`
	NationalPrice *Price `json:"nationalPrice"`
	Items         []Item `json:"items"`
}

// Client Kroger 商品 API 客戶端
type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient 創建 Kroger 客戶端
func NewClient(cfg config.KrogerConfig) *Client {
	client := resty.New().
		SetLogger(common.Logger.Sugar()).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
	}
}

// request 建立帶有超時與限流的請求
func (c *Client) request(ctx context.Context) (*resty.Request, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	return c.client.R().SetContext(ctx), cancel, nil
}

// ExchangeToken 以 client credentials 換取 bearer token
func (c *Client) ExchangeToken(ctx context.Context, clientID, clientSecret, scope string) (*TokenResponse, error) {
	start := time.Now()
	req, cancel, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := req.
		SetBasicAuth(clientID, clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      scope,
		}).
		Post("/connect/oauth2/token")
	if err != nil {
		common.LogProviderCall("token", time.Since(start), err)
		return nil, fmt.Errorf("failed to send token request: %w", err)
	}
	if !resp.IsSuccess() {
		err := &StatusError{Operation: "token", StatusCode: resp.StatusCode(), Body: resp.String()}
		common.LogProviderCall("token", time.Since(start), err)
		return nil, err
	}

	var token TokenResponse
	if err := common.ParseJSONBytes(resp.Body(), &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	common.LogProviderCall("token", time.Since(start), nil)
	return &token, nil
}

// SearchProducts 搜尋商品目錄
func (c *Client) SearchProducts(ctx context.Context, token, term string, limit int) ([]Product, error) {
	start := time.Now()
	req, cancel, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := req.
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"filter.term":  term,
			"filter.limit": strconv.Itoa(limit),
		}).
		Get("/products")
	if err != nil {
		common.LogProviderCall("search", time.Since(start), err)
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if !resp.IsSuccess() {
		err := &StatusError{Operation: "search", StatusCode: resp.StatusCode(), Body: resp.String()}
		common.LogProviderCall("search", time.Since(start), err)
		return nil, err
	}

	var result struct {
		Data []Product `json:"data"`
	}
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	common.LogProviderCall("search", time.Since(start), nil)
	return result.Data, nil
}

// GetProduct 取得指定門市的商品詳細資料
func (c *Client) GetProduct(ctx context.Context, token, productID, locationID string) (*ProductDetail, error) {
	start := time.Now()
	req, cancel, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := req.
		SetAuthToken(token).
		SetPathParam("productId", productID).
		SetQueryParam("filter.locationId", locationID).
		Get("/products/{productId}")
	if err != nil {
		common.LogProviderCall("product", time.Since(start), err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if !resp.IsSuccess() {
		err := &StatusError{Operation: "product", StatusCode: resp.StatusCode(), Body: resp.String()}
		common.LogProviderCall("product", time.Since(start), err)
		return nil, err
	}

	var result struct {
		Data *ProductDetail `json:"data"`
	}
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse product response: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("product response missing data")
	}

	common.LogDebug("Fetched product detail",
		zap.String("product_id", productID),
		zap.Duration("latency", time.Since(start)),
	)
	return result.Data, nil
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
