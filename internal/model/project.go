package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectModel 项目
type ProjectModel struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code      string          `gorm:"type:varchar(64);index" json:"code"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Budget    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"budget"`
	Status    string          `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt time.Time       `gorm:"not null" json:"created"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (ProjectModel) TableName() string {
	return "projects"
}

// ProjectItemModel 项目库存行
type ProjectItemModel struct {
	ID              string              `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID       string              `gorm:"type:varchar(64);not null;index" json:"project_id"`
	Name            string              `gorm:"type:varchar(255);not null;index" json:"name"`
	Unit            string              `gorm:"type:varchar(32)" json:"unit"`
	UnitPrice       decimal.Decimal     `gorm:"type:decimal(15,2);not null;default:0" json:"unit_price"`
	Quantity        decimal.Decimal     `gorm:"type:decimal(15,3);not null;default:0" json:"quantity"` // 当前剩余库存
	InitialQuantity decimal.NullDecimal `gorm:"type:decimal(15,3)" json:"initial_quantity"`
	CreatedAt       time.Time           `gorm:"not null" json:"created"`
	UpdatedAt       time.Time           `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (ProjectItemModel) TableName() string {
	return "project_items"
}

// Baseline 领用统计基数, 没有初始数量时以当前数量为基数
func (pi *ProjectItemModel) Baseline() decimal.Decimal {
	if pi.InitialQuantity.Valid {
		return pi.InitialQuantity.Decimal
	}
	return pi.Quantity
}

// Withdrawn 已领用数量
func (pi *ProjectItemModel) Withdrawn() decimal.Decimal {
	w := pi.Baseline().Sub(pi.Quantity)
	if w.IsNegative() {
		return decimal.Zero
	}
	return w
}

// Validate 验证库存行模型
func (pi *ProjectItemModel) Validate() error {
	if pi.ID == "" {
		return errors.New("project item ID is required")
	}
	if pi.ProjectID == "" {
		return errors.New("project ID is required")
	}
	if pi.Name == "" {
		return errors.New("project item name is required")
	}
	if pi.Quantity.IsNegative() {
		return errors.New("stock quantity cannot be negative")
	}
	return nil
}

// StockMovementModel 库存变动记录
type StockMovementModel struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectItemID string          `gorm:"type:varchar(64);not null;index" json:"project_item_id"`
	RequestID     string          `gorm:"type:varchar(64);index" json:"request_id"`
	OldQuantity   decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"old_quantity"`
	NewQuantity   decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"new_quantity"`
	Delta         decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"delta"`
	Shortfall     decimal.Decimal `gorm:"type:decimal(15,3);not null;default:0" json:"shortfall"` // 扣减不足的数量
	Reason        string          `gorm:"type:varchar(64);not null" json:"reason"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created"`
}

// TableName 指定表名
func (StockMovementModel) TableName() string {
	return "stock_movements"
}
