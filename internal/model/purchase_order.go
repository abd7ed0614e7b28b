package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 采购订单状态
const (
	POStatusIssued    = "issued"
	POStatusCancelled = "cancelled"
)

// PurchaseOrderModel 采购订单, 由已批准的采购申请生成
type PurchaseOrderModel struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PONumber    string          `gorm:"type:varchar(64);not null;index" json:"po_number"`
	RequestID   string          `gorm:"type:varchar(64);not null;index" json:"request_id"`
	VendorID    string          `gorm:"type:varchar(64);not null;index" json:"vendor_id"`
	VendorName  string          `gorm:"type:varchar(255)" json:"vendor_name"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	Status      string          `gorm:"type:varchar(16);not null" json:"status"`
	CreatedBy   string          `gorm:"type:varchar(64);not null" json:"created_by"`
	CreatedAt   time.Time       `gorm:"not null;index" json:"created"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// Validate 验证采购订单模型
func (po *PurchaseOrderModel) Validate() error {
	if po.ID == "" {
		return errors.New("purchase order ID is required")
	}
	if po.RequestID == "" {
		return errors.New("request ID is required")
	}
	if po.VendorID == "" {
		return errors.New("vendor ID is required")
	}
	return nil
}
