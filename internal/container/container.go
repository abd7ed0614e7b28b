package container

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/auth"
	"github.com/mautops/procurement-gin/internal/config"
	"github.com/mautops/procurement-gin/internal/database"
	"github.com/mautops/procurement-gin/internal/integration"
	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/mautops/procurement-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// permissionCacheTTL 权限检查结果缓存时间
const permissionCacheTTL = 5 * time.Minute

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、客户端等
type Container struct {
	cfg *config.Config
	log logrus.FieldLogger

	db           *gorm.DB
	store        *storage.LocalStore
	hub          *websocket.Hub
	eventHandler *integration.EventHandler
	fgaClient    *auth.OpenFGAClient
	collector    *metrics.Collector
	authChain    []gin.HandlerFunc

	purchaseRequests service.PurchaseRequestService
	history          service.HistoryService
	purchaseOrders   service.PurchaseOrderService
	projects         service.ProjectService
	budget           service.BudgetService
	statistics       service.StatisticsService
	users            service.UserService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, log logrus.FieldLogger) (*Container, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Container{cfg: cfg, log: log}

	// 1. 初始化数据库(带重试机制)
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	c.db = db

	// 2. 附件存储
	store, err := storage.NewLocalStore(cfg.Storage.Root, cfg.Storage.BaseURL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.store = store

	// 3. 事件: WebSocket Hub + 持久化事件处理器
	c.hub = websocket.NewHub()
	go c.hub.Run()
	c.eventHandler = integration.NewEventHandler(db, c.hub, integration.Options{
		Workers:   cfg.Events.Workers,
		QueueSize: cfg.Events.QueueSize,
		Webhooks:  cfg.Events.Webhooks,
	}, log.WithField("component", "events"))

	// 4. OpenFGA 客户端(可选)
	var authz service.Authorizer
	if cfg.OpenFGA.Enabled {
		fgaClient, err := auth.NewOpenFGAClientWithRetry(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, 3, time.Second)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize OpenFGA client: %w", err)
		}
		c.fgaClient = fgaClient
		authz = auth.NewCachedOpenFGAClient(fgaClient, auth.NewPermissionCache(permissionCacheTTL))
	}

	// 5. 仓储和服务
	prRepo := repository.NewPurchaseRequestRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	auditLogSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	c.purchaseRequests = service.NewPurchaseRequestService(db, store, auditLogSvc, c.eventHandler, authz, log.WithField("component", "purchase_requests"))
	c.history = service.NewHistoryService(prRepo, repository.NewPRHistoryRepository(db))
	c.purchaseOrders = service.NewPurchaseOrderService(prRepo, repository.NewPurchaseOrderRepository(db), vendorRepo, auditLogSvc, log)
	c.projects = service.NewProjectService(projectRepo, repository.NewProjectItemRepository(db), repository.NewStockMovementRepository(db))
	c.budget = service.NewBudgetService(projectRepo, prRepo)
	c.statistics = service.NewStatisticsService(db)
	c.users = service.NewUserService(userRepo, store, auditLogSvc, log)

	// 6. 认证: 配置了 Keycloak 时校验 JWT, 否则使用本地用户名密码
	if cfg.Keycloak.Issuer != "" {
		validator := auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer, cfg.Keycloak.JWKSURL)
		resolver := auth.NewActorResolver(userRepo, log)
		c.authChain = []gin.HandlerFunc{auth.KeycloakAuthMiddleware(validator), resolver.Middleware()}
	} else {
		log.Warn("keycloak issuer is not configured, falling back to basic auth")
		c.authChain = []gin.HandlerFunc{auth.BasicAuthMiddleware(c.users)}
	}

	// 7. 指标收集器
	if cfg.Budget.RefreshInterval > 0 {
		c.collector = metrics.NewCollector(db, time.Duration(cfg.Budget.RefreshInterval)*time.Second, log,
			&service.BudgetMetricsSource{Projects: projectRepo, Budget: c.budget},
			&service.StatusMetricsSource{Stats: c.statistics},
		)
	}

	return c, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Store 获取附件存储
func (c *Container) Store() storage.BlobStore {
	return c.store
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// EventHandler 获取事件处理器
func (c *Container) EventHandler() *integration.EventHandler {
	return c.eventHandler
}

// OpenFGAClient 获取 OpenFGA 客户端, 未启用时为 nil
func (c *Container) OpenFGAClient() *auth.OpenFGAClient {
	return c.fgaClient
}

// Collector 获取指标收集器, 未配置刷新间隔时为 nil
func (c *Container) Collector() *metrics.Collector {
	return c.collector
}

// AuthChain 认证中间件链
func (c *Container) AuthChain() []gin.HandlerFunc {
	return c.authChain
}

func (c *Container) PurchaseRequestService() service.PurchaseRequestService {
	return c.purchaseRequests
}

func (c *Container) HistoryService() service.HistoryService {
	return c.history
}

func (c *Container) PurchaseOrderService() service.PurchaseOrderService {
	return c.purchaseOrders
}

func (c *Container) ProjectService() service.ProjectService {
	return c.projects
}

func (c *Container) BudgetService() service.BudgetService {
	return c.budget
}

func (c *Container) StatisticsService() service.StatisticsService {
	return c.statistics
}

func (c *Container) UserService() service.UserService {
	return c.users
}

// Close 关闭容器,清理资源
// 先停止事件处理器再关闭数据库, 队列中的事件会在停止前写完
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.eventHandler != nil {
		c.eventHandler.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}
