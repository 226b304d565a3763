package kroger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-share/internal/infrastructure/config"
	"recipe-share/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.KrogerConfig{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		RateLimit: 100,
		Burst:     10,
	})
}

func TestClient_ExchangeToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/connect/oauth2/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "product.compact", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":1800,"token_type":"bearer"}`))
	})

	token, err := client.ExchangeToken(context.Background(), "id", "secret", "product.compact")
	require.NoError(t, err)
	assert.Equal(t, "abc", token.AccessToken)
	assert.Equal(t, int64(1800), token.ExpiresIn)
}

func TestClient_ExchangeToken_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	})

	_, err := client.ExchangeToken(context.Background(), "id", "bad", "product.compact")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_SearchProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "eggs", r.URL.Query().Get("filter.term"))
		assert.Equal(t, "1", r.URL.Query().Get("filter.limit"))
		_, _ = w.Write([]byte(`{"data":[{"productId":"0001","description":"Large Eggs"}]}`))
	})

	products, err := client.SearchProducts(context.Background(), "tok", "eggs", 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "0001", products[0].ProductID)
}

func TestClient_GetProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/0001", r.URL.Path)
		assert.Equal(t, "loc-1", r.URL.Query().Get("filter.locationId"))
		_, _ = w.Write([]byte(`{"data":{"productId":"0001","items":[{"itemId":"i1","price":{"regular":3.5,"current":2.99}}]}}`))
	})

	detail, err := client.GetProduct(context.Background(), "tok", "0001", "loc-1")
	require.NoError(t, err)
	amount, ok := detail.SelectPrice().Amount()
	assert.True(t, ok)
	assert.Equal(t, 3.5, amount)
}

func TestClient_GetProduct_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetProduct(context.Background(), "tok", "0001", "loc-1")
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_RetryWarningsUseStructuredLogger(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	common.SetLogger(zap.New(core))
	t.Cleanup(func() { common.SetLogger(nil) })

	// 直接關閉連線，讓每次嘗試都是傳輸錯誤
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	})
	client.client.SetRetryCount(1)

	_, err := client.SearchProducts(context.Background(), "tok", "eggs", 1)
	require.Error(t, err)

	assert.GreaterOrEqual(t, logs.FilterMessageSnippet("Attempt").Len(), 1)
}

func TestPrice_Amount(t *testing.T) {
	tests := []struct {
		name   string
		price  *Price
		want   float64
		wantOK bool
	}{
		{name: "nil price", price: nil},
		{name: "regular preferred", price: &Price{Regular: []byte(`3.50`), Current: []byte(`2.99`)}, want: 3.5, wantOK: true},
		{name: "current fallback", price: &Price{Current: []byte(`2.99`)}, want: 2.99, wantOK: true},
		{name: "null regular falls back", price: &Price{Regular: []byte(`null`), Current: []byte(`1.25`)}, want: 1.25, wantOK: true},
		{name: "string values are not numeric", price: &Price{Regular: []byte(`"3.50"`)}},
		{name: "zero is numeric", price: &Price{Regular: []byte(`0`)}, want: 0, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.price.Amount()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProductDetail_SelectPrice(t *testing.T) {
	local := &Price{Regular: []byte(`1`)}
	national := &Price{Regular: []byte(`2`)}
	item := &Price{Regular: []byte(`3`)}

	assert.Same(t, local, (&ProductDetail{Price: local, NationalPrice: national}).SelectPrice())
	assert.Same(t, national, (&ProductDetail{NationalPrice: national, Items: []Item{{Price: item}}}).SelectPrice())
	assert.Same(t, item, (&ProductDetail{Items: []Item{{Price: item}}}).SelectPrice())
	assert.Nil(t, (&ProductDetail{}).SelectPrice())
	assert.Nil(t, (*ProductDetail)(nil).SelectPrice())
}
