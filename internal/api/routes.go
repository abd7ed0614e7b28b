package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/auth"
	"github.com/mautops/procurement-gin/internal/config"
	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/mautops/procurement-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config *config.Config
	DB     *gorm.DB
	Log    logrus.FieldLogger
	// FGA 未启用时为 nil
	FGA HealthChecker
	Hub *websocket.Hub
	// Auth 认证中间件链, 最后一个必须把 actor 放入上下文
	Auth []gin.HandlerFunc

	PurchaseRequests service.PurchaseRequestService
	History          service.HistoryService
	PurchaseOrders   service.PurchaseOrderService
	Projects         service.ProjectService
	Budget           service.BudgetService
	Statistics       service.StatisticsService
	Users            service.UserService
	Store            storage.BlobStore
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	router.Use(I18nMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(), SpanAttributesMiddleware())
	}
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.FGA)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// WebSocket 角标推送
	if deps.Hub != nil {
		upgrader := websocket.NewUpgrader(cfg.CORS.AllowedOrigins)
		ws := router.Group("/ws", deps.Auth...)
		ws.GET("/badges", websocket.WebSocketHandler(deps.Hub, upgrader, func(c *gin.Context) (string, error) {
			actor, ok := auth.ActorFrom(c)
			if !ok {
				return "", nil
			}
			return actor.ID, nil
		}, log))
	}

	prController := NewPurchaseRequestController(deps.PurchaseRequests, deps.History)
	poController := NewPurchaseOrderController(deps.PurchaseOrders)
	projectController := NewProjectController(deps.Projects, deps.Budget)
	statsController := NewStatisticsController(deps.Statistics)
	userController := NewUserController(deps.Users)

	// API v1 路由组
	v1 := router.Group("/api/v1", deps.Auth...)
	{
		requests := v1.Group("/purchase-requests")
		{
			requests.POST("", prController.Create)
			requests.GET("", prController.List)
			requests.GET("/:id", prController.Get)
			requests.PUT("/:id", prController.Update)
			requests.DELETE("/:id", prController.Delete)
			requests.POST("/:id/submit", prController.Submit)
			requests.POST("/:id/approve", prController.Approve)
			requests.POST("/:id/reject", prController.Reject)
			requests.POST("/:id/resubmit", prController.Resubmit)
			requests.GET("/:id/history", prController.History)
			requests.POST("/:id/purchase-orders", poController.Create)
			requests.GET("/:id/purchase-orders", poController.ListByRequest)
		}

		v1.GET("/purchase-orders/:id", poController.Get)

		projects := v1.Group("/projects")
		{
			projects.GET("", projectController.List)
			projects.GET("/:id", projectController.Get)
			projects.GET("/:id/budget", projectController.Budget)
			projects.GET("/:id/items", projectController.Stock)
		}
		v1.GET("/project-items/:id/movements", projectController.Movements)

		users := v1.Group("/users/me")
		{
			users.GET("", userController.Me)
			users.POST("/signature", userController.UploadSignature)
			users.PUT("/password", userController.ChangePassword)
		}

		v1.GET("/badges", statsController.Badges)
		stats := v1.Group("/statistics")
		{
			stats.GET("/status", statsController.ByStatus)
			stats.GET("/time", statsController.ByTime)
			stats.GET("/approvals", statsController.Approvals)
		}
	}

	if deps.Store != nil {
		fileController := NewFileController(deps.Store)
		handlers := append(append([]gin.HandlerFunc{}, deps.Auth...), fileController.Download)
		router.GET("/api/files/:collection/:recordId/:filename", handlers...)
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, T(c, "error.route_not_found"), c.Request.URL.Path)
	})

	return router
}
