package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailalias/backend/internal/config"
	"mailalias/backend/internal/middleware"
	"mailalias/backend/internal/monitoring"
	"mailalias/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	AliasService *service.AliasService
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics.RecordPanic))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	// 请求体大小限制：别名 API 均为小请求
	router.Use(middleware.BodySizeLimit(1 * 1024 * 1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderTenantID, middleware.HeaderUserID},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := NewAliasHandler(deps.AliasService, deps.Metrics)

	// 创建别名限流中间件
	createLimiter := middleware.NewRateLimiter(
		deps.Config.Alias.CreatePerMinute,
		deps.Config.Alias.CreateBurst,
	)
	createThrottle := createLimiter.Middleware(func() {
		deps.Metrics.RecordRateLimitBlock("alias_create")
	})

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// V1 API
	v1 := router.Group("/v1")
	{
		aliasRoutes := v1.Group("/aliases")
		aliasRoutes.Use(middleware.TenantContext())
		{
			aliasRoutes.POST("", createThrottle, handler.createAlias)
			aliasRoutes.GET("", handler.listAliases)

			// 投递服务解析端点（路由需在 :id 之前注册）
			aliasRoutes.GET("/resolve", handler.resolveAlias)

			// 候选地址生成，不落库
			aliasRoutes.POST("/generate", handler.generateAlias)

			aliasRoutes.GET("/:id", handler.getAlias)
			aliasRoutes.PUT("/:id", handler.updateAlias)
			aliasRoutes.DELETE("/:id", handler.deleteAlias)
			aliasRoutes.PUT("/:id/deactivate", handler.deactivateAlias)
			aliasRoutes.POST("/:id/usage", handler.recordUsage)
		}
	}

	return router
}
