package api

import (
	"context"
	"errors"
	"time"

	groceryHandler "recipe-share/internal/api/handlers/grocery"
	"recipe-share/internal/api/handlers/health"
	"recipe-share/internal/api/middleware"
	"recipe-share/internal/infrastructure/config"
	"recipe-share/internal/infrastructure/monitoring"
	"recipe-share/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 超時設置，需涵蓋整批食材查價
	timeoutDuration = 60 * time.Second
	// 請求體大小限制 (1MB)
	maxBodySize = 1 << 20
)

// Dependencies 路由所需的服務
type Dependencies struct {
	Grocery groceryHandler.Service
	Metrics *monitoring.PricingMetrics
	Checks  []health.Check
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Grocery == nil {
		return nil, errors.New("grocery service is required")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", middleware.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// 請求超時
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeoutDuration),
			)
			c.AbortWithStatusJSON(common.ErrGatewayTimeout.Status, common.ErrGatewayTimeout.Response(false))
		}
	})

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg, deps.Checks...)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	if deps.Metrics != nil {
		router.GET("/metrics", deps.Metrics.Handler())
	}

	// API 路由組
	api := router.Group("/api/v1")
	{
		groceryHandlerInstance := groceryHandler.NewHandler(deps.Grocery, cfg.App.Debug)

		groceryGroup := api.Group("/grocery", middleware.Session(), middleware.Deduplication(cfg.DedupWindow))
		{
			groceryGroup.GET("", groceryHandlerInstance.HandleGetList)
			groceryGroup.POST("/list", groceryHandlerInstance.HandleCreateList)
			groceryGroup.POST("/items", groceryHandlerInstance.HandleAddItems)
			groceryGroup.DELETE("/items", groceryHandlerInstance.HandleRemoveItem)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("metrics_enabled", deps.Metrics != nil),
		zap.Int("readiness_checks", len(deps.Checks)),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
