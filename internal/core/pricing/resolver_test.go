package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"recipe-share/internal/core/pricing/kroger"
	"recipe-share/internal/core/pricing/token"
	"recipe-share/internal/infrastructure/config"
	"recipe-share/internal/infrastructure/monitoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKroger 模擬 Kroger 商品 API
type fakeKroger struct {
	tokenCalls   int32
	searchCalls  int32
	tokenStatus  int
	searchBody   string
	searchStatus int
	productBody  string
	productState int
	// 第一次商品搜尋回 401
	rejectFirstSearch bool
	// 商品搜尋延遲回應
	searchDelay time.Duration
}

func (f *fakeKroger) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/connect/oauth2/token":
			n := atomic.AddInt32(&f.tokenCalls, 1)
			if f.tokenStatus != 0 {
				w.WriteHeader(f.tokenStatus)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok-` + string(rune('0'+n)) + `","expires_in":1800}`))
		case r.URL.Path == "/products":
			n := atomic.AddInt32(&f.searchCalls, 1)
			if f.searchDelay > 0 {
				select {
				case <-time.After(f.searchDelay):
				case <-r.Context().Done():
					return
				}
			}
			if f.rejectFirstSearch && n == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if f.searchStatus != 0 {
				w.WriteHeader(f.searchStatus)
				return
			}
			if r.URL.Query().Get("filter.term") == "UNOBTAINIUM" {
				_, _ = w.Write([]byte(`{"data":[]}`))
				return
			}
			_, _ = w.Write([]byte(f.searchBody))
		case strings.HasPrefix(r.URL.Path, "/products/"):
			assert.Equal(t, "loc-1", r.URL.Query().Get("filter.locationId"))
			if f.productState != 0 {
				w.WriteHeader(f.productState)
				return
			}
			_, _ = w.Write([]byte(f.productBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newResolver(t *testing.T, f *fakeKroger, locationID string) *Resolver {
	t.Helper()
	return newResolverWithConfig(t, f, func(cfg *config.KrogerConfig) {
		cfg.LocationID = locationID
	})
}

func newResolverWithConfig(t *testing.T, f *fakeKroger, configure func(cfg *config.KrogerConfig)) *Resolver {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.KrogerConfig{
		BaseURL:      srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		LocationID:   "loc-1",
		Scope:        "product.compact",
		Timeout:      2 * time.Second,
		RateLimit:    100,
		Burst:        10,
	}
	configure(&cfg)
	client := kroger.NewClient(cfg)
	tokens := token.NewCache(NewCredentialExchanger(client, cfg))
	return NewResolver(client, tokens, cfg.LocationID, monitoring.NewPricingMetrics())
}

func TestResolver_PriceFor(t *testing.T) {
	tests := []struct {
		name       string
		term       string
		search     string
		product    string
		location   string
		want       float64
		wantOK     bool
		wantReason MissReason
	}{
		{
			name:    "prefers regular over current",
			term:    "eggs",
			search:  `{"data":[{"productId":"0001"}]}`,
			product: `{"data":{"price":{"regular":3.50,"current":2.99}}}`,
			want:    3.50,
			wantOK:  true,
		},
		{
			name:    "falls back to current",
			term:    "eggs",
			search:  `{"data":[{"productId":"0001"}]}`,
			product: `{"data":{"price":{"current":2.99}}}`,
			want:    2.99,
			wantOK:  true,
		},
		{
			name:    "falls back to national price",
			term:    "milk",
			search:  `{"data":[{"productId":"0002"}]}`,
			product: `{"data":{"nationalPrice":{"regular":4.19}}}`,
			want:    4.19,
			wantOK:  true,
		},
		{
			name:    "falls back to first item price",
			term:    "milk",
			search:  `{"data":[{"productId":"0002"}]}`,
			product: `{"data":{"items":[{"price":{"regular":1.79}},{"price":{"regular":9.99}}]}}`,
			want:    1.79,
			wantOK:  true,
		},
		{
			name:       "catalog miss is zero",
			term:       "UNOBTAINIUM",
			search:     `{"data":[]}`,
			wantReason: ReasonNoMatch,
		},
		{
			name:       "no price object is zero",
			term:       "eggs",
			search:     `{"data":[{"productId":"0001"}]}`,
			product:    `{"data":{"items":[]}}`,
			wantReason: ReasonNoPrice,
		},
		{
			name:       "non numeric price is zero",
			term:       "eggs",
			search:     `{"data":[{"productId":"0001"}]}`,
			product:    `{"data":{"price":{"regular":"n/a"}}}`,
			wantReason: ReasonNoPrice,
		},
		{
			name:       "missing location short circuits",
			term:       "eggs",
			search:     `{"data":[{"productId":"0001"}]}`,
			location:   "-",
			wantReason: ReasonNoLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeKroger{searchBody: tt.search, productBody: tt.product}
			location := "loc-1"
			if tt.location == "-" {
				location = ""
			}
			resolver := newResolver(t, f, location)

			quote, err := resolver.PriceFor(context.Background(), tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.term, quote.Term)
			assert.Equal(t, tt.wantOK, quote.Resolved)
			assert.Equal(t, tt.want, quote.Amount)
			assert.Equal(t, tt.wantReason, quote.Reason)
		})
	}
}

func TestResolver_ReusesTokenAcrossCalls(t *testing.T) {
	f := &fakeKroger{
		searchBody:  `{"data":[{"productId":"0001"}]}`,
		productBody: `{"data":{"price":{"regular":1.00}}}`,
	}
	resolver := newResolver(t, f, "loc-1")

	_, err := resolver.PriceFor(context.Background(), "eggs")
	require.NoError(t, err)
	_, err = resolver.PriceFor(context.Background(), "milk")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))
}

func TestResolver_ProviderErrorDefaultsToZero(t *testing.T) {
	f := &fakeKroger{
		searchBody:   `{"data":[{"productId":"0001"}]}`,
		productState: http.StatusInternalServerError,
	}
	resolver := newResolver(t, f, "loc-1")

	quote, err := resolver.PriceFor(context.Background(), "eggs")
	require.NoError(t, err)
	assert.False(t, quote.Resolved)
	assert.Equal(t, 0.0, quote.Amount)
	assert.Equal(t, ReasonProviderError, quote.Reason)
}

func TestResolver_SlowProviderDefaultsToZero(t *testing.T) {
	f := &fakeKroger{
		searchBody:  `{"data":[{"productId":"0001"}]}`,
		productBody: `{"data":{"price":{"regular":1.00}}}`,
		searchDelay: 500 * time.Millisecond,
	}
	resolver := newResolverWithConfig(t, f, func(cfg *config.KrogerConfig) {
		cfg.Timeout = 100 * time.Millisecond
		cfg.RetryCount = 2
	})

	start := time.Now()
	quote, err := resolver.PriceFor(context.Background(), "eggs")
	require.NoError(t, err)
	assert.Equal(t, Miss("eggs", ReasonProviderError), quote)
	assert.Equal(t, 0.0, quote.Amount)
	assert.Less(t, time.Since(start), 450*time.Millisecond)
}

func TestResolver_MalformedProductDefaultsToZero(t *testing.T) {
	f := &fakeKroger{
		searchBody:  `{"data":[{"productId":"0001"}]}`,
		productBody: `<html>oops`,
	}
	resolver := newResolver(t, f, "loc-1")

	quote, err := resolver.PriceFor(context.Background(), "eggs")
	require.NoError(t, err)
	assert.Equal(t, Miss("eggs", ReasonProviderError), quote)
	assert.Equal(t, 0.0, quote.Amount)
}

func TestResolver_TokenFailurePropagates(t *testing.T) {
	f := &fakeKroger{tokenStatus: http.StatusUnauthorized}
	resolver := newResolver(t, f, "loc-1")

	quote, err := resolver.PriceFor(context.Background(), "eggs")
	require.Error(t, err)

	var authErr *token.ProviderAuthError
	assert.ErrorAs(t, err, &authErr)
	assert.False(t, quote.Resolved)
	assert.Equal(t, ReasonAuthError, quote.Reason)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.searchCalls))
}

func TestResolver_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := &fakeKroger{
		searchBody:        `{"data":[{"productId":"0001"}]}`,
		productBody:       `{"data":{"price":{"regular":2.25}}}`,
		rejectFirstSearch: true,
	}
	resolver := newResolver(t, f, "loc-1")

	quote, err := resolver.PriceFor(context.Background(), "eggs")
	require.NoError(t, err)
	assert.True(t, quote.Resolved)
	assert.Equal(t, 2.25, quote.Amount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.searchCalls))
}

func TestDisabledResolver(t *testing.T) {
	resolver := NewDisabledResolver(nil)

	quote, err := resolver.PriceFor(context.Background(), "eggs")
	require.NoError(t, err)
	assert.Equal(t, Miss("eggs", ReasonDisabled), quote)
}
