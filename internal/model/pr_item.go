package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 行项类型
const (
	ItemTypeRegular = "regular"
	ItemTypeReserve = "reserve" // 预留行项, 不扣库存也不计入项目预算
)

// PRItemModel 采购申请行项
type PRItemModel struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RequestID     string          `gorm:"type:varchar(64);not null;index" json:"request_id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit          string          `gorm:"type:varchar(32)" json:"unit"`
	Quantity      decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_price"`
	ProjectItemID *string         `gorm:"type:varchar(64);index" json:"project_item_id,omitempty"` // 关联的项目库存行
	ItemType      string          `gorm:"type:varchar(16);not null;default:'regular'" json:"item_type"`
	SortOrder     int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt     time.Time       `gorm:"not null" json:"created"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (PRItemModel) TableName() string {
	return "pr_items"
}

// IsReserve 是否为预留行项
func (it *PRItemModel) IsReserve() bool {
	return it.ItemType == ItemTypeReserve
}

// Recalculate 重新计算行项总价, 总价只能由数量和单价得出
func (it *PRItemModel) Recalculate() {
	it.TotalPrice = it.Quantity.Mul(it.UnitPrice).Round(2)
}

// IsValid 名称非空且数量大于 0
func (it *PRItemModel) IsValid() bool {
	return strings.TrimSpace(it.Name) != "" && it.Quantity.IsPositive()
}

// Validate 验证行项模型
func (it *PRItemModel) Validate() error {
	if it.RequestID == "" {
		return errors.New("request ID is required")
	}
	if strings.TrimSpace(it.Name) == "" {
		return errors.New("item name is required")
	}
	if !it.Quantity.IsPositive() {
		return errors.New("item quantity must be greater than 0")
	}
	if it.UnitPrice.IsNegative() {
		return errors.New("unit price cannot be negative")
	}
	if it.ItemType != ItemTypeRegular && it.ItemType != ItemTypeReserve {
		return errors.New("invalid item type")
	}
	return nil
}
