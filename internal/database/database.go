package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/procurement-gin/internal/config"
	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置, 未设置的字段使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pc := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pc.MaxIdleConns == 0 {
		pc.MaxIdleConns = 10
	}
	if pc.MaxOpenConns == 0 {
		pc.MaxOpenConns = 100
	}
	if pc.ConnMaxLifetime == 0 {
		pc.ConnMaxLifetime = 3600
	}
	if pc.ConnMaxIdleTime == 0 {
		pc.ConnMaxIdleTime = 600
	}
	return pc
}

// dialector 根据驱动选择 gorm 方言
func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(BuildDSN(cfg)), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pc := GetPoolConfig(cfg)
	if d.Name() == "sqlite" {
		// sqlite 只允许一个写连接
		pc.MaxOpenConns = 1
		pc.MaxIdleConns = 1
	}
	sqlDB.SetMaxIdleConns(pc.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pc.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pc.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pc.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.UserModel{},
		&model.ProjectModel{},
		&model.ProjectItemModel{},
		&model.VendorModel{},
		&model.PurchaseRequestModel{},
		&model.PRItemModel{},
		&model.PRHistoryModel{},
		&model.StockMovementModel{},
		&model.PurchaseOrderModel{},
		&model.EventModel{},
		&model.AuditLogModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes 创建组合索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{"idx_pr_status_level", "CREATE INDEX IF NOT EXISTS idx_pr_status_level ON purchase_requests(status, approval_level)"},
		{"idx_pr_project_status", "CREATE INDEX IF NOT EXISTS idx_pr_project_status ON purchase_requests(project_id, status)"},
		{"idx_pr_history_request_created", "CREATE INDEX IF NOT EXISTS idx_pr_history_request_created ON pr_history(request_id, created_at)"},
		{"idx_project_items_project_name", "CREATE INDEX IF NOT EXISTS idx_project_items_project_name ON project_items(project_id, name)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
		{"idx_events_status", "CREATE INDEX IF NOT EXISTS idx_events_status_created ON events(status, created_at)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}
