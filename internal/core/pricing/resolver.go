package pricing

import (
	"context"
	"errors"
	"time"

	"recipe-share/internal/core/pricing/kroger"
	"recipe-share/internal/core/pricing/token"
	"recipe-share/internal/infrastructure/monitoring"
	"recipe-share/internal/pkg/common"

	"go.uber.org/zap"
)

// MissReason 未取得價格的原因
type MissReason string

const (
	ReasonNone          MissReason = ""
	ReasonDisabled      MissReason = "disabled"
	ReasonNoLocation    MissReason = "no_location"
	ReasonNoMatch       MissReason = "no_match"
	ReasonNoPrice       MissReason = "no_price"
	ReasonProviderError MissReason = "provider_error"
	ReasonAuthError     MissReason = "auth_error"
)

// Quote 單一食材的報價；Resolved 為 false 時 Amount 固定為 0
type Quote struct {
	Term     string
	Amount   float64
	Resolved bool
	Reason   MissReason
}

// Hit 成功取得價格
func Hit(term string, amount float64) Quote {
	return Quote{Term: term, Amount: amount, Resolved: true}
}

// Miss 未取得價格，金額為 0
func Miss(term string, reason MissReason) Quote {
	return Quote{Term: term, Reason: reason}
}

// outcome 指標標籤
func (q Quote) outcome() string {
	if q.Resolved {
		return "resolved"
	}
	return string(q.Reason)
}

// Catalog 商品目錄查詢
type Catalog interface {
	SearchProducts(ctx context.Context, token, term string, limit int) ([]kroger.Product, error)
	GetProduct(ctx context.Context, token, productID, locationID string) (*kroger.ProductDetail, error)
}

// TokenSource 供應商 bearer token 來源
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// Resolver 將食材名稱解析為單一價格
type Resolver struct {
	catalog    Catalog
	tokens     TokenSource
	locationID string
	metrics    *monitoring.PricingMetrics
	disabled   bool
}

// NewResolver 創建價格解析器
func NewResolver(catalog Catalog, tokens TokenSource, locationID string, metrics *monitoring.PricingMetrics) *Resolver {
	return &Resolver{
		catalog:    catalog,
		tokens:     tokens,
		locationID: locationID,
		metrics:    metrics,
	}
}

// NewDisabledResolver 未設定供應商憑證時使用，所有報價皆為 0
func NewDisabledResolver(metrics *monitoring.PricingMetrics) *Resolver {
	return &Resolver{disabled: true, metrics: metrics}
}

// PriceFor 查詢食材價格。查無商品或供應商錯誤時回傳金額為 0 的 Quote 與 nil；
// 只有憑證交換失敗時回傳 *token.ProviderAuthError。
func (r *Resolver) PriceFor(ctx context.Context, term string) (quote Quote, err error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveLookup(quote.outcome(), time.Since(start))
	}()

	if r.disabled {
		return Miss(term, ReasonDisabled), nil
	}

	tok, err := r.tokens.Token(ctx)
	if err != nil {
		common.LogError("Pricing unavailable: provider token exchange failed",
			zap.String("term", term),
			zap.Error(err),
		)
		return Miss(term, ReasonAuthError), err
	}

	if r.locationID == "" {
		common.LogWarn("No store location configured, defaulting price to 0",
			zap.String("term", term),
		)
		return Miss(term, ReasonNoLocation), nil
	}

	var products []kroger.Product
	err = r.withRetryOnUnauthorized(ctx, tok, func(tok string) error {
		var callErr error
		products, callErr = r.catalog.SearchProducts(ctx, tok, term, 1)
		return callErr
	})
	if err != nil {
		return r.providerFailure(term, "search", err)
	}
	if len(products) == 0 || products[0].ProductID == "" {
		common.LogWarn("No product match", zap.String("term", term))
		return Miss(term, ReasonNoMatch), nil
	}
	productID := products[0].ProductID

	var detail *kroger.ProductDetail
	err = r.withRetryOnUnauthorized(ctx, tok, func(tok string) error {
		var callErr error
		detail, callErr = r.catalog.GetProduct(ctx, tok, productID, r.locationID)
		return callErr
	})
	if err != nil {
		return r.providerFailure(term, "product", err)
	}

	amount, ok := detail.SelectPrice().Amount()
	if !ok || amount < 0 {
		common.LogWarn("No price for product",
			zap.String("term", term),
			zap.String("product_id", productID),
		)
		return Miss(term, ReasonNoPrice), nil
	}

	common.LogDebug("Resolved ingredient price",
		zap.String("term", term),
		zap.String("product_id", productID),
		zap.Float64("amount", amount),
	)
	return Hit(term, amount), nil
}

// withRetryOnUnauthorized 401 時丟棄 token 並以新 token 重試一次
func (r *Resolver) withRetryOnUnauthorized(ctx context.Context, tok string, call func(tok string) error) error {
	err := call(tok)
	if !kroger.IsUnauthorized(err) {
		return err
	}

	common.LogWarn("Provider rejected token, refreshing")
	r.tokens.Invalidate(ctx)
	fresh, err := r.tokens.Token(ctx)
	if err != nil {
		return err
	}
	return call(fresh)
}

func (r *Resolver) providerFailure(term, operation string, err error) (Quote, error) {
	var authErr *token.ProviderAuthError
	if errors.As(err, &authErr) {
		common.LogError("Pricing unavailable: provider token exchange failed",
			zap.String("term", term),
			zap.Error(err),
		)
		return Miss(term, ReasonAuthError), err
	}

	common.LogWarn("Price lookup failed, defaulting to 0",
		zap.String("term", term),
		zap.String("operation", operation),
		zap.Error(err),
	)
	return Miss(term, ReasonProviderError), nil
}
