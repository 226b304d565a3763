package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PricingMetrics 價格查詢與 token 換新的 Prometheus 指標
type PricingMetrics struct {
	registry       *prometheus.Registry
	lookupsTotal   *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	tokenRefreshes *prometheus.CounterVec
	itemsUpserted  prometheus.Counter
}

// NewPricingMetrics 在獨立 registry 上建立指標
func NewPricingMetrics() *PricingMetrics {
	reg := prometheus.NewRegistry()
	m := &PricingMetrics{
		registry: reg,
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grocery_price_lookups_total",
				Help: "Total number of ingredient price lookups by outcome",
			},
			[]string{"outcome"},
		),
		lookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "grocery_price_lookup_duration_seconds",
				Help:    "Ingredient price lookup duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		tokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grocery_provider_token_refreshes_total",
				Help: "Total number of provider credential exchanges by result",
			},
			[]string{"result"},
		),
		itemsUpserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "grocery_list_items_upserted_total",
				Help: "Total number of grocery list rows written",
			},
		),
	}
	reg.MustRegister(
		m.lookupsTotal,
		m.lookupDuration,
		m.tokenRefreshes,
		m.itemsUpserted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLookup 記錄一次價格查詢
func (m *PricingMetrics) ObserveLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(outcome).Inc()
	m.lookupDuration.Observe(d.Seconds())
}

// ObserveTokenRefresh 記錄一次憑證交換
func (m *PricingMetrics) ObserveTokenRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.tokenRefreshes.WithLabelValues(result).Inc()
}

// ObserveUpsert 記錄寫入的清單項目
func (m *PricingMetrics) ObserveUpsert() {
	if m == nil {
		return
	}
	m.itemsUpserted.Inc()
}

// Registry 取得指標 registry
func (m *PricingMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler Prometheus 指標端點
func (m *PricingMetrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
