package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-share/internal/api"
	"recipe-share/internal/api/handlers/health"
	"recipe-share/internal/core/grocery"
	"recipe-share/internal/core/pricing"
	"recipe-share/internal/core/pricing/kroger"
	"recipe-share/internal/core/pricing/token"
	"recipe-share/internal/infrastructure/config"
	"recipe-share/internal/infrastructure/monitoring"
	"recipe-share/internal/infrastructure/persistence"
	"recipe-share/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("kroger_base_url", cfg.Kroger.BaseURL),
		zap.String("kroger_client_id", config.MaskSecret(cfg.Kroger.ClientID)),
		zap.Bool("kroger_location_configured", cfg.Kroger.LocationID != ""),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	// 初始化資料庫
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		common.LogFatal("Failed to open database", zap.Error(err))
	}
	defer persistence.Close(db)

	checks := []health.Check{{
		Name: "database",
		Ping: func(ctx context.Context) error { return persistence.Ping(ctx, db) },
	}}

	metrics := monitoring.NewPricingMetrics()

	// 初始化查價服務
	resolver, closeResolver := newResolver(cfg, metrics, &checks)
	defer closeResolver()

	groceryService := grocery.NewService(persistence.NewGroceryRepository(db), resolver, cfg.Grocery, metrics)

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Grocery: groceryService,
		Metrics: metrics,
		Checks:  checks,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}

// newResolver 依設定建立查價服務；缺少憑證時所有食材以 0 計價
func newResolver(cfg *config.Config, metrics *monitoring.PricingMetrics, checks *[]health.Check) (*pricing.Resolver, func()) {
	if !cfg.Kroger.PricingEnabled() {
		common.LogWarn("Pricing provider credentials missing, every ingredient will be saved at 0")
		return pricing.NewDisabledResolver(metrics), func() {}
	}
	if cfg.Kroger.LocationID == "" {
		common.LogWarn("Pricing location not configured, every ingredient will be saved at 0")
	}

	client := kroger.NewClient(cfg.Kroger)
	closers := []func(){func() { _ = client.Close() }}

	opts := []token.Option{token.WithMetrics(metrics)}
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := token.NewRedisStore(ctx, cfg.Redis)
		cancel()
		if err != nil {
			// 共用儲存失敗時退回行程內快取
			common.LogWarn("Token store unavailable, using in-process cache", zap.Error(err))
		} else {
			opts = append(opts, token.WithStore(store))
			closers = append(closers, func() { _ = store.Close() })
			*checks = append(*checks, health.Check{Name: "redis", Ping: store.Ping})
		}
	}

	tokens := token.NewCache(pricing.NewCredentialExchanger(client, cfg.Kroger), opts...)
	resolver := pricing.NewResolver(client, tokens, cfg.Kroger.LocationID, metrics)

	return resolver, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
